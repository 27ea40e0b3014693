package postgres

// SQL for the relational metric mirror. Dynamic search and aggregate
// queries are assembled in filters.go from these fragments.

const (
	metricsTable = "metrics"

	// metricColumns is the canonical column order shared by every SELECT
	// and INSERT; scanMetricRow and metricArgs follow it.
	metricColumns = `id, org_id, account_id, region, user_id, device_id, related_to_rn,
		metric_category_id, metric_type_id, metric_type_version, batch_id,
		value, taken_at, taken_at_offset, recorded_at, metadata, is_deleted`

	metricColumnCount = 17

	// queryReadMetric fetches one live row.
	queryReadMetric = `
		SELECT ` + metricColumns + `
		FROM metrics
		WHERE id = $1 AND is_deleted = false
	`

	// querySelectMetricForUpdate locks one live row for read-modify-write.
	querySelectMetricForUpdate = `
		SELECT ` + metricColumns + `
		FROM metrics
		WHERE id = $1 AND is_deleted = false
		FOR UPDATE
	`

	// queryUpdateMetric writes back the mutable columns only.
	queryUpdateMetric = `
		UPDATE metrics
		SET value = $2, taken_at = $3, taken_at_offset = $4, metadata = $5, is_deleted = $6
		WHERE id = $1
	`

	// insertMetricsPrefix is followed by one VALUES tuple per row.
	insertMetricsPrefix = `INSERT INTO metrics (` + metricColumns + `) VALUES `

	// insertMetricsConflict makes bulk inserts idempotent by id. A reused id
	// replaces the whole row, dimensions included, so the mirror holds the
	// same point the time-series store reads back.
	insertMetricsConflict = `
		ON CONFLICT (id) DO UPDATE SET
			org_id              = EXCLUDED.org_id,
			account_id          = EXCLUDED.account_id,
			region              = EXCLUDED.region,
			user_id             = EXCLUDED.user_id,
			device_id           = EXCLUDED.device_id,
			related_to_rn       = EXCLUDED.related_to_rn,
			metric_category_id  = EXCLUDED.metric_category_id,
			metric_type_id      = EXCLUDED.metric_type_id,
			metric_type_version = EXCLUDED.metric_type_version,
			batch_id            = EXCLUDED.batch_id,
			value               = EXCLUDED.value,
			taken_at            = EXCLUDED.taken_at,
			taken_at_offset     = EXCLUDED.taken_at_offset,
			recorded_at         = EXCLUDED.recorded_at,
			metadata            = EXCLUDED.metadata,
			is_deleted          = EXCLUDED.is_deleted
	`

	queryTableExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = $1
		)
	`
)
