package storage

import (
	"context"
	"errors"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
	"github.com/aevon-lab/aevon-metrics/internal/core/aggregation"
)

// ErrNotFound is returned when an id does not resolve to a live (non-deleted) metric.
var ErrNotFound = errors.New("metric not found")

// MetricStore is the contract shared by the time-series store, the
// relational mirror and the in-memory backend.
type MetricStore interface {
	// Create persists new metrics and returns the store's view of them.
	// Creating an id that already exists overwrites it (idempotent by id).
	Create(ctx context.Context, metrics []*v1.Metric) ([]*v1.Metric, error)

	// Read returns the live metric with id, or ErrNotFound.
	Read(ctx context.Context, id string) (*v1.Metric, error)

	// Search returns one page of live metrics matching filters.
	Search(ctx context.Context, filters v1.SearchFilters) (*v1.Page, error)

	// Update applies patch with v1.ApplyPatch semantics and returns the
	// updated metric. ErrNotFound when id is missing or deleted.
	Update(ctx context.Context, id string, patch v1.MetricPatch) (*v1.Metric, error)

	// Delete flags the metric deleted. ErrNotFound when already deleted.
	Delete(ctx context.Context, id string) error

	aggregation.Backend
}
