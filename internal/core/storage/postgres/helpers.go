package postgres

import (
	"encoding/json"
	"fmt"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
)

// marshalMetadata marshals metric metadata to JSON.
//
// Nil metadata produces nil (SQL NULL) rather than JSON "null" string.
func marshalMetadata(md map[string]interface{}) ([]byte, error) {
	if md == nil {
		return nil, nil
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return raw, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanMetricRow scans a database row into a Metric. extra receives any
// columns selected after the metric columns (e.g. a window total).
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanMetricRow(row scanner, extra ...interface{}) (*v1.Metric, error) {
	var m v1.Metric
	var metadataJSON []byte

	dest := []interface{}{
		&m.ID,
		&m.OrgID,
		&m.AccountID,
		&m.Region,
		&m.UserID,
		&m.DeviceID,
		&m.RelatedToRn,
		&m.MetricCategoryID,
		&m.MetricTypeID,
		&m.MetricTypeVersion,
		&m.BatchID,
		&m.Value,
		&m.TakenAt,
		&m.TakenAtOffset,
		&m.RecordedAt,
		&metadataJSON,
		&m.IsDeleted,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, fmt.Errorf("failed to scan metric row: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &m.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	m.TakenAt = m.TakenAt.UTC()
	m.RecordedAt = m.RecordedAt.UTC()

	return &m, nil
}

// metricArgs returns the insert arguments for m in metricColumns order.
func metricArgs(m *v1.Metric) ([]interface{}, error) {
	metadataJSON, err := marshalMetadata(m.Metadata)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		m.ID,
		m.OrgID,
		m.AccountID,
		m.Region,
		m.UserID,
		m.DeviceID,
		m.RelatedToRn,
		m.MetricCategoryID,
		m.MetricTypeID,
		m.MetricTypeVersion,
		m.BatchID,
		m.Value,
		m.TakenAt,
		m.TakenAtOffset,
		m.RecordedAt,
		metadataJSON,
		m.IsDeleted,
	}, nil
}
