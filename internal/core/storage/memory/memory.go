// Package memory is an in-memory MetricStore. Data is lost on restart.
// Useful for testing and local development without Timestream.
package memory

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
	"github.com/aevon-lab/aevon-metrics/internal/core/aggregation"
	"github.com/aevon-lab/aevon-metrics/internal/core/storage"
)

// Store keeps every metric, deleted or not, keyed by id.
type Store struct {
	mu          sync.RWMutex
	metrics     map[string]*v1.Metric
	countTotals bool
}

// New creates an empty store. countTotals lets Search and Aggregate report
// a requested Total the way the relational mirror does.
func New(countTotals bool) *Store {
	return &Store{
		metrics:     make(map[string]*v1.Metric),
		countTotals: countTotals,
	}
}

// Create stores copies of metrics, overwriting existing ids.
func (s *Store) Create(ctx context.Context, metrics []*v1.Metric) ([]*v1.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*v1.Metric, 0, len(metrics))
	for _, m := range metrics {
		if m.ID == "" {
			return nil, fmt.Errorf("metric id is required")
		}
		s.metrics[m.ID] = m.Clone()
		out = append(out, m.Clone())
	}
	return out, nil
}

func (s *Store) Read(ctx context.Context, id string) (*v1.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.metrics[id]
	if !ok || m.IsDeleted {
		return nil, storage.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *Store) Update(ctx context.Context, id string, patch v1.MetricPatch) (*v1.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.metrics[id]
	if !ok || m.IsDeleted {
		return nil, storage.ErrNotFound
	}
	next := m.Clone()
	v1.ApplyPatch(next, patch)
	s.metrics[id] = next
	return next.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	deleted := true
	_, err := s.Update(ctx, id, v1.MetricPatch{IsDeleted: &deleted})
	return err
}

// Search filters, sorts and pages in process. Both offset and NextToken
// paging are supported; the token is an encoded offset.
func (s *Store) Search(ctx context.Context, filters v1.SearchFilters) (*v1.Page, error) {
	start, err := startOffset(filters.Offset, filters.NextToken)
	if err != nil {
		return nil, err
	}

	matched := s.filter(filters)
	sortMetrics(matched, filters.SortFields())

	limit := filters.PageLimit(v1.DefaultPageLimit)
	page := &v1.Page{Items: make([]*v1.Metric, 0, limit)}
	end := start + limit
	if start < len(matched) {
		if end > len(matched) {
			end = len(matched)
		}
		page.Items = append(page.Items, matched[start:end]...)
	}
	if end < len(matched) {
		page.NextToken = encodeToken(end)
	}
	if s.countTotals && filters.IncludeTotal {
		total := int64(len(matched))
		page.Total = &total
	}
	return page, nil
}

// Aggregate evaluates the plan over the filtered rows.
func (s *Store) Aggregate(ctx context.Context, plan *aggregation.Plan) (*aggregation.Page, error) {
	start, err := startOffset(plan.Offset, plan.NextToken)
	if err != nil {
		return nil, err
	}

	buckets := aggregation.Evaluate(plan, s.filter(plan.Filters))

	page := &aggregation.Page{}
	end := start + plan.Limit
	if start < len(buckets) {
		if end > len(buckets) {
			end = len(buckets)
		}
		page.Buckets = buckets[start:end]
	}
	if end < len(buckets) {
		page.NextToken = encodeToken(end)
	}
	if s.countTotals && plan.IncludeTotal {
		total := int64(len(buckets))
		page.Total = &total
	}
	return page, nil
}

// Len returns the number of stored records including deleted ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.metrics)
}

func (s *Store) filter(f v1.SearchFilters) []*v1.Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*v1.Metric
	for _, m := range s.metrics {
		if Matches(m, f) {
			out = append(out, m.Clone())
		}
	}
	return out
}

// Matches reports whether m satisfies every filter in f.
func Matches(m *v1.Metric, f v1.SearchFilters) bool {
	if m.OrgID != f.OrgID {
		return false
	}
	if m.IsDeleted && !f.IncludeDeleted {
		return false
	}
	if !in(f.IDs, m.ID) ||
		!in(f.AccountIDs, m.AccountID) ||
		!in(f.Regions, m.Region) ||
		!in(f.UserIDs, m.UserID) ||
		!in(f.DeviceIDs, m.DeviceID) ||
		!in(f.RelatedToRns, m.RelatedToRn) ||
		!in(f.MetricCategoryIDs, m.MetricCategoryID) ||
		!in(f.MetricTypeIDs, m.MetricTypeID) ||
		!in(f.BatchIDs, m.BatchID) {
		return false
	}
	if len(f.MetricTypeVersions) > 0 {
		found := false
		for _, v := range f.MetricTypeVersions {
			if v == m.MetricTypeVersion {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ValueMin != nil && m.Value < *f.ValueMin {
		return false
	}
	if f.ValueMax != nil && m.Value > *f.ValueMax {
		return false
	}
	if f.TakenAtFrom != nil && m.TakenAt.Before(*f.TakenAtFrom) {
		return false
	}
	if f.TakenAtTo != nil && m.TakenAt.After(*f.TakenAtTo) {
		return false
	}
	if f.RecordedAtFrom != nil && m.RecordedAt.Before(*f.RecordedAtFrom) {
		return false
	}
	if f.RecordedAtTo != nil && m.RecordedAt.After(*f.RecordedAtTo) {
		return false
	}
	if c := f.Before; c != nil {
		if m.TakenAt.After(c.TakenAt) {
			return false
		}
		if m.TakenAt.Equal(c.TakenAt) && m.ID >= c.ID {
			return false
		}
	}
	return true
}

func in(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// sortMetrics orders by fields, then by id in the direction of the last
// field, matching the SQL and Timestream tie-break.
func sortMetrics(ms []*v1.Metric, fields []v1.SortField) {
	tieDesc := true
	if len(fields) > 0 {
		tieDesc = fields[len(fields)-1].Desc
	}
	sort.SliceStable(ms, func(i, j int) bool {
		for _, f := range fields {
			c := compareField(ms[i], ms[j], f.Field)
			if c == 0 {
				continue
			}
			if f.Desc {
				return c > 0
			}
			return c < 0
		}
		if tieDesc {
			return ms[i].ID > ms[j].ID
		}
		return ms[i].ID < ms[j].ID
	})
}

func compareField(a, b *v1.Metric, field string) int {
	switch field {
	case v1.FieldTakenAt:
		return a.TakenAt.Compare(b.TakenAt)
	case v1.FieldRecordedAt:
		return a.RecordedAt.Compare(b.RecordedAt)
	case v1.FieldValue:
		switch {
		case a.Value < b.Value:
			return -1
		case a.Value > b.Value:
			return 1
		}
		return 0
	case v1.FieldMetricTypeVersion:
		return a.MetricTypeVersion - b.MetricTypeVersion
	}
	return strings.Compare(aggregation.FieldText(a.Get(field)), aggregation.FieldText(b.Get(field)))
}

func encodeToken(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func startOffset(offset int, token string) (int, error) {
	if token == "" {
		return offset, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, v1.NewValidationError("nextToken", "malformed nextToken")
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0, v1.NewValidationError("nextToken", "malformed nextToken")
	}
	return n, nil
}
