package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
)

// DefaultCacheCapacity is used when the configured capacity is not positive.
const DefaultCacheCapacity = 4096

// Resolver answers code and id lookups from the cache, fetching misses from
// the repository in one batched call per lookup.
type Resolver struct {
	repo  Repository
	cache *LRUCache
}

// NewResolver creates a resolver with an LRU cache of the given capacity.
func NewResolver(repo Repository, capacity int) *Resolver {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Resolver{repo: repo, cache: NewLRUCache(capacity)}
}

// Cache keys. Entries are tagged with the row id so a deletion evicts both
// the by-id and by-code entries.
func typeIDKey(id string) string { return "type:id:" + id }
func typeCodeKey(code string) string { return "type:code:" + code }
func categoryIDKey(id string) string { return "category:id:" + id }
func categoryCodeKey(code string) string { return "category:code:" + code }
func typeTag(id string) string { return "type:" + id }
func categoryTag(id string) string { return "category:" + id }

// TypesByCode returns the live types for codes, keyed by code.
// Unknown codes are absent from the map.
func (r *Resolver) TypesByCode(ctx context.Context, codes []string) (map[string]MetricType, error) {
	out := make(map[string]MetricType, len(codes))
	var misses []string
	for _, code := range distinct(codes) {
		if v, ok := r.cache.Get(typeCodeKey(code)); ok {
			out[code] = v.(MetricType)
			continue
		}
		misses = append(misses, code)
	}
	if len(misses) == 0 {
		return out, nil
	}

	types, err := r.repo.FindTypesByCode(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("failed to find metric types by code: %w", err)
	}
	for _, t := range types {
		r.putType(t)
		out[t.Code] = t
	}
	return out, nil
}

// CategoriesByCode returns the live categories for codes, keyed by code.
func (r *Resolver) CategoriesByCode(ctx context.Context, codes []string) (map[string]MetricCategory, error) {
	out := make(map[string]MetricCategory, len(codes))
	var misses []string
	for _, code := range distinct(codes) {
		if v, ok := r.cache.Get(categoryCodeKey(code)); ok {
			out[code] = v.(MetricCategory)
			continue
		}
		misses = append(misses, code)
	}
	if len(misses) == 0 {
		return out, nil
	}

	categories, err := r.repo.FindCategoriesByCode(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("failed to find metric categories by code: %w", err)
	}
	for _, c := range categories {
		r.putCategory(c)
		out[c.Code] = c
	}
	return out, nil
}

// Types returns the live types for ids, keyed by id.
func (r *Resolver) Types(ctx context.Context, ids []string) (map[string]MetricType, error) {
	out := make(map[string]MetricType, len(ids))
	var misses []string
	for _, id := range distinct(ids) {
		if v, ok := r.cache.Get(typeIDKey(id)); ok {
			out[id] = v.(MetricType)
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	types, err := r.repo.ReadTypes(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("failed to read metric types: %w", err)
	}
	for _, t := range types {
		r.putType(t)
		out[t.ID] = t
	}
	return out, nil
}

// Categories returns the live categories for ids, keyed by id.
func (r *Resolver) Categories(ctx context.Context, ids []string) (map[string]MetricCategory, error) {
	out := make(map[string]MetricCategory, len(ids))
	var misses []string
	for _, id := range distinct(ids) {
		if v, ok := r.cache.Get(categoryIDKey(id)); ok {
			out[id] = v.(MetricCategory)
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	categories, err := r.repo.ReadCategories(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("failed to read metric categories: %w", err)
	}
	for _, c := range categories {
		r.putCategory(c)
		out[c.ID] = c
	}
	return out, nil
}

// Invalidate evicts every cached entry for the deleted row.
func (r *Resolver) Invalidate(kind, id string) {
	var n int
	switch kind {
	case KindType:
		n = r.cache.InvalidateTag(typeTag(id))
	case KindCategory:
		n = r.cache.InvalidateTag(categoryTag(id))
	default:
		slog.Warn("[Reference] Ignoring invalidation for unknown kind", "kind", kind, "id", id)
		return
	}
	slog.Debug("[Reference] Invalidated cache entries", "kind", kind, "id", id, "evicted", n)
}

// HandleDeletion decodes a DeletionEvent and evicts the row from the cache.
// It is the consumer callback for the reference deletion topic.
func (r *Resolver) HandleDeletion(ctx context.Context, payload []byte) error {
	var evt DeletionEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("failed to decode deletion event: %w", err)
	}
	if evt.ID == "" {
		return fmt.Errorf("deletion event has no id")
	}
	r.Invalidate(evt.Kind, evt.ID)
	return nil
}

func (r *Resolver) putType(t MetricType) {
	tag := typeTag(t.ID)
	r.cache.Put(typeIDKey(t.ID), tag, t)
	r.cache.Put(typeCodeKey(t.Code), tag, t)
}

func (r *Resolver) putCategory(c MetricCategory) {
	tag := categoryTag(c.ID)
	r.cache.Put(categoryIDKey(c.ID), tag, c)
	r.cache.Put(categoryCodeKey(c.Code), tag, c)
}

// distinct drops empty and repeated values and sorts the rest.
func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
