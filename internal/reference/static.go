package reference

import (
	"context"
	"sync"
)

// StaticRepository serves reference rows from memory. It backs local runs
// and tests.
type StaticRepository struct {
	mu         sync.Mutex
	types      []MetricType
	categories []MetricCategory
	calls      int
}

var _ Repository = (*StaticRepository)(nil)

// NewStaticRepository creates a repository holding the given rows.
func NewStaticRepository(types []MetricType, categories []MetricCategory) *StaticRepository {
	return &StaticRepository{types: types, categories: categories}
}

func (r *StaticRepository) FindTypesByCode(ctx context.Context, codes []string) ([]MetricType, error) {
	return r.matchTypes(codes, func(t MetricType) string { return t.Code }), nil
}

func (r *StaticRepository) ReadTypes(ctx context.Context, ids []string) ([]MetricType, error) {
	return r.matchTypes(ids, func(t MetricType) string { return t.ID }), nil
}

func (r *StaticRepository) FindCategoriesByCode(ctx context.Context, codes []string) ([]MetricCategory, error) {
	return r.matchCategories(codes, func(c MetricCategory) string { return c.Code }), nil
}

func (r *StaticRepository) ReadCategories(ctx context.Context, ids []string) ([]MetricCategory, error) {
	return r.matchCategories(ids, func(c MetricCategory) string { return c.ID }), nil
}

// CallCount returns the number of repository calls made so far.
func (r *StaticRepository) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *StaticRepository) matchTypes(keys []string, key func(MetricType) string) []MetricType {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++

	want := toSet(keys)
	var out []MetricType
	for _, t := range r.types {
		if _, ok := want[key(t)]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (r *StaticRepository) matchCategories(keys []string, key func(MetricCategory) string) []MetricCategory {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++

	want := toSet(keys)
	var out []MetricCategory
	for _, c := range r.categories {
		if _, ok := want[key(c)]; ok {
			out = append(out, c)
		}
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
