// Package metric coordinates metric writes and reads across the time-series
// store and the relational mirror, and serves the metric HTTP API.
package metric

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
	"github.com/aevon-lab/aevon-metrics/internal/core/aggregation"
	"github.com/aevon-lab/aevon-metrics/internal/core/storage"
	"github.com/aevon-lab/aevon-metrics/internal/reference"
)

// defaultTypeVersion applies when neither the input nor the reference data
// pins a metric type version.
const defaultTypeVersion = 1

// CodeMaps translates stored ids back to the codes clients know.
type CodeMaps struct {
	Types      map[string]string `json:"types"`
	Categories map[string]string `json:"categories"`
}

// Service is the metric coordinator. Reads and searches go to the
// time-series store; every write goes to both stores concurrently.
type Service struct {
	timeseries storage.MetricStore
	mirror     storage.MetricStore
	resolver   *reference.Resolver
	engine     *aggregation.Engine
	metrics    *instruments

	maxBodySizeBytes int

	now   func() time.Time
	newID func() string
}

// NewService wires the coordinator. reg receives the dual-write failure
// counter; pass prometheus.NewRegistry() in tests.
func NewService(
	timeseries, mirror storage.MetricStore,
	resolver *reference.Resolver,
	engine *aggregation.Engine,
	reg prometheus.Registerer,
	maxBodySizeMB int,
) *Service {
	if timeseries == nil {
		panic("metric: time-series store must not be nil")
	}
	if mirror == nil {
		panic("metric: mirror store must not be nil")
	}
	if resolver == nil {
		panic("metric: resolver must not be nil")
	}
	if engine == nil {
		panic("metric: aggregation engine must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1
	}
	return &Service{
		timeseries:       timeseries,
		mirror:           mirror,
		resolver:         resolver,
		engine:           engine,
		metrics:          newInstruments(reg),
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
		now:              func() time.Time { return time.Now().UTC() },
		newID:            uuid.NewString,
	}
}

// RegisterRoutes registers the metric routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/metrics", s.CreateHandler)
	r.PUT("/v1/metrics", s.UpsertHandler)
	r.POST("/v1/metrics/search", s.SearchHandler)
	r.POST("/v1/metrics/aggregate", s.AggregateHandler)
	r.GET("/v1/metrics/:id", s.ReadHandler)
	r.PATCH("/v1/metrics/:id", s.UpdateHandler)
	r.DELETE("/v1/metrics/:id", s.DeleteHandler)
}

// Create validates, resolves and stores a batch of metrics. The returned
// metrics are the time-series view.
func (s *Service) Create(ctx context.Context, inputs []v1.MetricInput) ([]*v1.Metric, error) {
	if len(inputs) == 0 {
		return nil, v1.NewValidationError("metrics", "at least one metric is required")
	}
	for i := range inputs {
		if err := inputs[i].Validate(); err != nil {
			return nil, indexed(i, err)
		}
	}

	metrics, err := s.prepare(ctx, inputs)
	if err != nil {
		return nil, err
	}

	created, err := s.writeBoth(ctx, "create",
		func(ctx context.Context) (interface{}, error) { return s.timeseries.Create(ctx, metrics) },
		func(ctx context.Context) error {
			_, err := s.mirror.Create(ctx, metrics)
			return err
		})
	if err != nil {
		return nil, err
	}

	slog.Info("Created metrics", "count", len(metrics), "org_id", metrics[0].OrgID)
	return created.([]*v1.Metric), nil
}

// Read returns one live metric from the time-series store.
func (s *Service) Read(ctx context.Context, id string) (*v1.Metric, error) {
	m, err := s.timeseries.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.enrich(ctx, []*v1.Metric{m}); err != nil {
		return nil, err
	}
	return m, nil
}

// Search pages through the time-series store. Total is never reported.
func (s *Service) Search(ctx context.Context, filters v1.SearchFilters) (*v1.Page, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	ok, err := s.ResolveFilterCodes(ctx, &filters)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &v1.Page{Items: []*v1.Metric{}}, nil
	}

	page, err := s.timeseries.Search(ctx, filters)
	if err != nil {
		return nil, err
	}
	page.Total = nil
	if err := s.enrich(ctx, page.Items); err != nil {
		return nil, err
	}
	return page, nil
}

// Update applies patch in both stores and returns the time-series view.
func (s *Service) Update(ctx context.Context, id string, patch v1.MetricPatch) (*v1.Metric, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.writeBoth(ctx, "update",
		func(ctx context.Context) (interface{}, error) { return s.timeseries.Update(ctx, id, patch) },
		func(ctx context.Context) error {
			_, err := s.mirror.Update(ctx, id, patch)
			return err
		})
	if err != nil {
		return nil, err
	}
	return updated.(*v1.Metric), nil
}

// Delete flags the metric deleted in both stores. A second delete is
// ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := s.writeBoth(ctx, "delete",
		func(ctx context.Context) (interface{}, error) { return nil, s.timeseries.Delete(ctx, id) },
		func(ctx context.Context) error { return s.mirror.Delete(ctx, id) })
	return err
}

// Upsert updates inputs whose id names a live metric and creates the rest in
// one batch. Results follow input order. Concurrent upserts of the same id
// resolve to the last write.
func (s *Service) Upsert(ctx context.Context, inputs []v1.MetricInput) ([]*v1.Metric, error) {
	if len(inputs) == 0 {
		return nil, v1.NewValidationError("metrics", "at least one metric is required")
	}
	for i := range inputs {
		if err := inputs[i].Validate(); err != nil {
			return nil, indexed(i, err)
		}
	}

	out := make([]*v1.Metric, len(inputs))
	var creates []v1.MetricInput
	var createIdx []int
	for i := range inputs {
		in := &inputs[i]
		if in.ID != "" {
			m, err := s.Update(ctx, in.ID, in.Patch())
			if err == nil {
				out[i] = m
				continue
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return nil, err
			}
		}
		creates = append(creates, *in)
		createIdx = append(createIdx, i)
	}

	if len(creates) > 0 {
		created, err := s.Create(ctx, creates)
		if err != nil {
			return nil, err
		}
		for j, m := range created {
			out[createIdx[j]] = m
		}
	}

	slog.Info("Upserted metrics",
		"count", len(inputs),
		"created", len(creates),
		"updated", len(inputs)-len(creates))
	return out, nil
}

// Aggregate resolves metric type codes in the filters, runs the engine and
// attaches type codes to the result rows.
func (s *Service) Aggregate(ctx context.Context, req aggregation.Request) (*aggregation.Result, error) {
	plan, err := aggregation.Compile(req)
	if err != nil {
		return nil, err
	}
	ok, err := s.ResolveFilterCodes(ctx, &plan.Filters)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.engine.Normalize(plan, &aggregation.Page{}), nil
	}

	res, err := s.engine.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}

	typeIDs := make([]string, 0, len(res.Buckets))
	for _, b := range res.Buckets {
		typeIDs = append(typeIDs, b.MetricTypeID)
	}
	types, err := s.resolver.Types(ctx, typeIDs)
	if err != nil {
		return nil, err
	}
	for i := range res.Buckets {
		res.Buckets[i].MetricTypeCode = types[res.Buckets[i].MetricTypeID].Code
	}
	return res, nil
}

// GetMetricCodeMaps looks up the codes for every type and category id in
// rows with one batched lookup per kind.
func (s *Service) GetMetricCodeMaps(ctx context.Context, rows []*v1.Metric) (CodeMaps, error) {
	typeIDs := make([]string, 0, len(rows))
	categoryIDs := make([]string, 0, len(rows))
	for _, m := range rows {
		typeIDs = append(typeIDs, m.MetricTypeID)
		categoryIDs = append(categoryIDs, m.MetricCategoryID)
	}

	types, err := s.resolver.Types(ctx, typeIDs)
	if err != nil {
		return CodeMaps{}, err
	}
	categories, err := s.resolver.Categories(ctx, categoryIDs)
	if err != nil {
		return CodeMaps{}, err
	}

	maps := CodeMaps{
		Types:      make(map[string]string, len(types)),
		Categories: make(map[string]string, len(categories)),
	}
	for id, t := range types {
		maps.Types[id] = t.Code
	}
	for id, c := range categories {
		maps.Categories[id] = c.Code
	}
	return maps, nil
}

// prepare resolves codes and versions and assigns server-side fields.
// Each distinct code is looked up once per batch.
func (s *Service) prepare(ctx context.Context, inputs []v1.MetricInput) ([]*v1.Metric, error) {
	var typeCodes, categoryCodes, typeIDs []string
	for i := range inputs {
		in := &inputs[i]
		switch {
		case in.MetricTypeCode != "":
			typeCodes = append(typeCodes, in.MetricTypeCode)
		case in.MetricTypeVersion == 0 || in.MetricCategoryID == "":
			typeIDs = append(typeIDs, in.MetricTypeID)
		}
		if in.MetricCategoryCode != "" {
			categoryCodes = append(categoryCodes, in.MetricCategoryCode)
		}
	}

	typesByCode := map[string]reference.MetricType{}
	if len(typeCodes) > 0 {
		var err error
		if typesByCode, err = s.resolver.TypesByCode(ctx, typeCodes); err != nil {
			return nil, err
		}
	}
	categoriesByCode := map[string]reference.MetricCategory{}
	if len(categoryCodes) > 0 {
		var err error
		if categoriesByCode, err = s.resolver.CategoriesByCode(ctx, categoryCodes); err != nil {
			return nil, err
		}
	}
	typesByID := map[string]reference.MetricType{}
	if len(typeIDs) > 0 {
		var err error
		if typesByID, err = s.resolver.Types(ctx, typeIDs); err != nil {
			return nil, err
		}
	}

	now := s.now()
	out := make([]*v1.Metric, 0, len(inputs))
	for i := range inputs {
		in := inputs[i]

		var typ reference.MetricType
		var known bool
		if in.MetricTypeCode != "" {
			typ, known = typesByCode[in.MetricTypeCode]
			if !known {
				return nil, indexed(i, v1.NewValidationError("metricTypeCode",
					fmt.Sprintf("unknown metricTypeCode %q", in.MetricTypeCode)))
			}
			in.MetricTypeID = typ.ID
		} else {
			typ, known = typesByID[in.MetricTypeID]
		}

		if in.MetricCategoryCode != "" {
			cat, ok := categoriesByCode[in.MetricCategoryCode]
			if !ok {
				return nil, indexed(i, v1.NewValidationError("metricCategoryCode",
					fmt.Sprintf("unknown metricCategoryCode %q", in.MetricCategoryCode)))
			}
			in.MetricCategoryID = cat.ID
		}
		if in.MetricCategoryID == "" && known {
			in.MetricCategoryID = typ.CategoryID
		}
		if in.MetricTypeVersion == 0 {
			in.MetricTypeVersion = defaultTypeVersion
			if known && typ.Version > 0 {
				in.MetricTypeVersion = typ.Version
			}
		}
		if in.ID == "" {
			in.ID = s.newID()
		}

		m := in.ToMetric()
		m.RecordedAt = now
		m.IsDeleted = false
		out = append(out, m)
	}
	return out, nil
}

// ResolveFilterCodes replaces MetricTypeCodes with ids, intersected with any
// ids already present. It reports false when nothing can match.
func (s *Service) ResolveFilterCodes(ctx context.Context, f *v1.SearchFilters) (bool, error) {
	if len(f.MetricTypeCodes) == 0 {
		return true, nil
	}
	types, err := s.resolver.TypesByCode(ctx, f.MetricTypeCodes)
	if err != nil {
		return false, err
	}

	explicit := make(map[string]bool, len(f.MetricTypeIDs))
	for _, id := range f.MetricTypeIDs {
		explicit[id] = true
	}
	ids := make([]string, 0, len(types))
	for _, t := range types {
		if len(explicit) == 0 || explicit[t.ID] {
			ids = append(ids, t.ID)
		}
	}
	f.MetricTypeCodes = nil
	f.MetricTypeIDs = ids
	return len(ids) > 0, nil
}

func (s *Service) enrich(ctx context.Context, rows []*v1.Metric) error {
	if len(rows) == 0 {
		return nil
	}
	maps, err := s.GetMetricCodeMaps(ctx, rows)
	if err != nil {
		return err
	}
	for _, m := range rows {
		m.MetricTypeCode = maps.Types[m.MetricTypeID]
		m.MetricCategoryCode = maps.Categories[m.MetricCategoryID]
	}
	return nil
}

// writeBoth runs the time-series and mirror writes concurrently. Neither
// write cancels the other; the first error is returned and nothing is rolled
// back.
func (s *Service) writeBoth(
	ctx context.Context,
	op string,
	timeseries func(context.Context) (interface{}, error),
	mirror func(context.Context) error,
) (interface{}, error) {
	var g errgroup.Group
	var result interface{}

	g.Go(func() error {
		r, err := timeseries(ctx)
		if err != nil {
			s.metrics.recordFailure("timeseries", op, err)
			return err
		}
		result = r
		return nil
	})
	g.Go(func() error {
		if err := mirror(ctx); err != nil {
			s.metrics.recordFailure("mirror", op, err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// indexed prefixes a validation field with the batch position.
func indexed(i int, err error) error {
	var verr *v1.ValidationError
	if errors.As(err, &verr) {
		return v1.NewValidationError(fmt.Sprintf("[%d].%s", i, verr.Field), verr.Message)
	}
	return err
}
