package aggregation

import (
	"strings"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
)

const (
	DefaultLimit = 1000
	MaxLimit     = 1000
)

// Sort keys understood for discrete group columns.
const (
	SortMetricTypeID = "metricTypeId"
	SortGroup        = "group"
	SortCount        = "count"
	SortValue        = "value"
)

var sortKeys = map[string]bool{
	SortMetricTypeID: true,
	SortGroup:        true,
	SortCount:        true,
	SortValue:        true,
}

// OrderTerm orders result buckets by one of the sort keys.
type OrderTerm struct {
	Key  string
	Desc bool
}

// Plan is a validated request ready to be rendered by a backend.
type Plan struct {
	Filters v1.SearchFilters

	// GroupField is the logical field grouped by; takenAt when TimeBucket is set.
	GroupField string
	TimeBucket *BucketWidth

	RowField string
	Function string
	// CountDistinct is set when the row is a dimension rather than value:
	// counts become COUNT(DISTINCT row) instead of COUNT(*).
	CountDistinct bool

	Order     []OrderTerm
	Limit     int
	Offset    int
	NextToken string

	IncludeTotal bool
}

// IsTime reports whether the plan groups by time bucket.
func (p *Plan) IsTime() bool {
	return p.TimeBucket != nil
}

// Compile validates req and turns it into a Plan.
func Compile(req Request) (*Plan, error) {
	if err := req.Filters.Validate(); err != nil {
		return nil, err
	}

	column := strings.TrimSpace(req.Column)
	if column == "time" {
		column = TimeColumn
	}
	if column == "" {
		return nil, v1.NewValidationError("column", "column is required")
	}

	plan := &Plan{
		Filters:      req.Filters,
		GroupField:   column,
		NextToken:    req.NextToken,
		Offset:       req.Offset,
		IncludeTotal: req.IncludeTotal,
	}

	if column == TimeColumn {
		width, err := ParseBucketWidth(req.ColumnAggregation)
		if err != nil {
			return nil, v1.NewValidationError("columnAggregation", err.Error())
		}
		plan.TimeBucket = &width
	} else {
		if !v1.GroupableFields[column] {
			return nil, v1.NewValidationError("column", "unsupported group column "+column)
		}
		if req.ColumnAggregation != "" {
			return nil, v1.NewValidationError("columnAggregation", "columnAggregation only applies to the takenAt column")
		}
	}

	row := strings.TrimSpace(req.Row)
	if row == "" {
		row = v1.FieldValue
	}
	if row != v1.FieldValue && !v1.GroupableFields[row] {
		return nil, v1.NewValidationError("row", "unsupported row "+row)
	}
	plan.RowField = row

	fn := strings.ToLower(strings.TrimSpace(req.RowAggregation))
	if !ValidFunction(fn) {
		return nil, v1.NewValidationError("rowAggregation", "unsupported rowAggregation "+req.RowAggregation)
	}
	if row != v1.FieldValue && fn != FuncCount {
		return nil, v1.NewValidationError("rowAggregation", "only count is supported when row is not value")
	}
	plan.Function = fn
	plan.CountDistinct = row != v1.FieldValue

	order, err := compileOrder(req, plan.IsTime())
	if err != nil {
		return nil, err
	}
	plan.Order = order

	if req.Limit < 0 || req.Offset < 0 {
		return nil, v1.NewValidationError("limit", "limit and offset must be >= 0")
	}
	switch {
	case req.Limit == 0:
		plan.Limit = DefaultLimit
	case req.Limit > MaxLimit:
		plan.Limit = MaxLimit
	default:
		plan.Limit = req.Limit
	}

	return plan, nil
}

func compileOrder(req Request, isTime bool) ([]OrderTerm, error) {
	if isTime {
		var desc bool
		switch strings.ToLower(strings.TrimSpace(req.SortDirection)) {
		case "", "asc":
		case "desc":
			desc = true
		default:
			return nil, v1.NewValidationError("sortDirection", "sortDirection must be asc or desc")
		}
		return []OrderTerm{
			{Key: SortGroup, Desc: desc},
			{Key: SortMetricTypeID},
		}, nil
	}

	fields, err := v1.ParseSort(req.Sort, sortKeys)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return []OrderTerm{{Key: SortMetricTypeID}, {Key: SortGroup}}, nil
	}
	order := make([]OrderTerm, 0, len(fields))
	for _, f := range fields {
		order = append(order, OrderTerm{Key: f.Field, Desc: f.Desc})
	}
	return order, nil
}
