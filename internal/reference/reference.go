// Package reference resolves metric type and category codes to ids and back.
// The tables are owned by the category/type CRUD service; this package only
// reads them and keeps a small cache in front.
package reference

import "context"

// MetricType is a versioned unit definition for a metric.
type MetricType struct {
	ID         string  `json:"id"`
	Code       string  `json:"code"`
	CategoryID string  `json:"categoryId"`
	Unit       string  `json:"unit"`
	Factor     float64 `json:"factor"`
	Version    int     `json:"version"`
}

// MetricCategory groups metric types.
type MetricCategory struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// Repository reads reference rows in batches. Unknown keys are simply
// absent from the result; deleted rows are never returned.
type Repository interface {
	FindTypesByCode(ctx context.Context, codes []string) ([]MetricType, error)
	FindCategoriesByCode(ctx context.Context, codes []string) ([]MetricCategory, error)
	ReadTypes(ctx context.Context, ids []string) ([]MetricType, error)
	ReadCategories(ctx context.Context, ids []string) ([]MetricCategory, error)
}

// Kinds carried by deletion events.
const (
	KindType     = "type"
	KindCategory = "category"
)

// DeletionEvent is published by the CRUD service when a type or category is
// deleted.
type DeletionEvent struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}
