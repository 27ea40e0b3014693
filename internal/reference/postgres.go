package reference

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
)

const (
	queryTypesByCode = `
		SELECT id, code, category_id, unit, factor, version
		FROM metric_types
		WHERE code = ANY($1) AND is_deleted = false
	`

	queryTypesByID = `
		SELECT id, code, category_id, unit, factor, version
		FROM metric_types
		WHERE id = ANY($1) AND is_deleted = false
	`

	queryCategoriesByCode = `
		SELECT id, code
		FROM metric_categories
		WHERE code = ANY($1) AND is_deleted = false
	`

	queryCategoriesByID = `
		SELECT id, code
		FROM metric_categories
		WHERE id = ANY($1) AND is_deleted = false
	`
)

// PostgresRepository reads the reference tables with one ANY($1) query per
// batch.
type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a repository on an open pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindTypesByCode(ctx context.Context, codes []string) ([]MetricType, error) {
	return r.queryTypes(ctx, queryTypesByCode, codes)
}

func (r *PostgresRepository) ReadTypes(ctx context.Context, ids []string) ([]MetricType, error) {
	return r.queryTypes(ctx, queryTypesByID, ids)
}

func (r *PostgresRepository) FindCategoriesByCode(ctx context.Context, codes []string) ([]MetricCategory, error) {
	return r.queryCategories(ctx, queryCategoriesByCode, codes)
}

func (r *PostgresRepository) ReadCategories(ctx context.Context, ids []string) ([]MetricCategory, error) {
	return r.queryCategories(ctx, queryCategoriesByID, ids)
}

func (r *PostgresRepository) queryTypes(ctx context.Context, query string, keys []string) ([]MetricType, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, query, pq.Array(keys))
	if err != nil {
		slog.Error("[Reference] Type lookup failed", "query", query, "keys", len(keys), "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []MetricType
	for rows.Next() {
		var t MetricType
		if err := rows.Scan(&t.ID, &t.Code, &t.CategoryID, &t.Unit, &t.Factor, &t.Version); err != nil {
			return nil, fmt.Errorf("failed to scan metric type: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metric types: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) queryCategories(ctx context.Context, query string, keys []string) ([]MetricCategory, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, query, pq.Array(keys))
	if err != nil {
		slog.Error("[Reference] Category lookup failed", "query", query, "keys", len(keys), "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []MetricCategory
	for rows.Next() {
		var c MetricCategory
		if err := rows.Scan(&c.ID, &c.Code); err != nil {
			return nil, fmt.Errorf("failed to scan metric category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metric categories: %w", err)
	}
	return out, nil
}
