package aggregation

import (
	"context"
	"time"
)

// Backend executes a compiled plan against one store.
type Backend interface {
	Aggregate(ctx context.Context, plan *Plan) (*Page, error)
}

// Engine compiles aggregation requests, runs them on the configured backend
// and normalizes the rows into one output shape.
type Engine struct {
	backend     Backend
	countsTotal bool
}

// NewEngine creates an engine. countsTotal is false for the time-series
// backend, whose results never carry a group total.
func NewEngine(backend Backend, countsTotal bool) *Engine {
	return &Engine{backend: backend, countsTotal: countsTotal}
}

// Aggregate runs req end to end.
func (e *Engine) Aggregate(ctx context.Context, req Request) (*Result, error) {
	plan, err := Compile(req)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan)
}

// Execute runs an already compiled plan. Backend errors are returned as is;
// the adapters log them with the query text.
func (e *Engine) Execute(ctx context.Context, plan *Plan) (*Result, error) {
	page, err := e.backend.Aggregate(ctx, plan)
	if err != nil {
		return nil, err
	}

	return e.Normalize(plan, page), nil
}

// Normalize rounds fractional results, parses discrete group values and
// drops the total when the backend cannot count.
func (e *Engine) Normalize(plan *Plan, page *Page) *Result {
	res := &Result{
		Column:         plan.GroupField,
		Row:            plan.RowField,
		RowAggregation: plan.Function,
		Buckets:        make([]Bucket, 0, len(page.Buckets)),
		NextToken:      page.NextToken,
	}
	if plan.IsTime() {
		res.ColumnAggregation = plan.TimeBucket.Label
	}
	if e.countsTotal && plan.IncludeTotal {
		res.Total = page.Total
	}

	for _, b := range page.Buckets {
		switch g := b.Group.(type) {
		case time.Time:
			b.Group = g.UTC()
		case string:
			b.Group = ParseGroupValue(g)
		}
		if b.Value != nil && roundedFunctions[plan.Function] {
			v := Round(*b.Value, resultPlaces)
			b.Value = &v
		}
		b.TakenAt = b.TakenAt.UTC()
		b.RecordedAt = b.RecordedAt.UTC()
		res.Buckets = append(res.Buckets, b)
	}
	return res
}
