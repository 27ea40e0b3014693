package timestream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/service/timestreamquery"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
	"github.com/aevon-lab/aevon-metrics/internal/core/aggregation"
)

// timestampLayout is how Timestream renders TIMESTAMP scalars.
const timestampLayout = "2006-01-02 15:04:05.999999999"

type scalarKind int

const (
	kindVarchar scalarKind = iota
	kindDouble
	kindBigint
	kindBoolean
	kindTimestamp
)

// column describes one named result column and where its value goes.
// Rows are matched by column name, never by position.
type column[T any] struct {
	name     string
	kind     scalarKind
	required bool
	set      func(dst *T, v interface{}) error
}

// decodeRow decodes row into dst using the schema. A required column that
// is absent from the result set is an error; NULL values are skipped.
func decodeRow[T any](info []*timestreamquery.ColumnInfo, row *timestreamquery.Row, schema []column[T], dst *T) error {
	index := make(map[string]int, len(info))
	for i, ci := range info {
		if ci != nil && ci.Name != nil {
			index[*ci.Name] = i
		}
	}

	for _, col := range schema {
		i, ok := index[col.name]
		if !ok || i >= len(row.Data) {
			if col.required {
				return fmt.Errorf("result is missing column %q", col.name)
			}
			continue
		}
		d := row.Data[i]
		if d == nil || (d.NullValue != nil && *d.NullValue) || d.ScalarValue == nil {
			if col.required {
				return fmt.Errorf("column %q is null", col.name)
			}
			continue
		}
		v, err := parseScalar(*d.ScalarValue, col.kind)
		if err != nil {
			return fmt.Errorf("column %q: %w", col.name, err)
		}
		if err := col.set(dst, v); err != nil {
			return fmt.Errorf("column %q: %w", col.name, err)
		}
	}
	return nil
}

func parseScalar(raw string, kind scalarKind) (interface{}, error) {
	switch kind {
	case kindDouble:
		return strconv.ParseFloat(raw, 64)
	case kindBigint:
		return strconv.ParseInt(raw, 10, 64)
	case kindBoolean:
		return strconv.ParseBool(raw)
	case kindTimestamp:
		t, err := time.Parse(timestampLayout, raw)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	default:
		return raw, nil
	}
}

func setString(f func(m *v1.Metric) *string) func(*v1.Metric, interface{}) error {
	return func(m *v1.Metric, v interface{}) error {
		*f(m) = v.(string)
		return nil
	}
}

// metricSchema decodes SELECT * rows of the metrics table.
var metricSchema = []column[v1.Metric]{
	{name: v1.FieldID, kind: kindVarchar, required: true, set: setString(func(m *v1.Metric) *string { return &m.ID })},
	{name: v1.FieldOrgID, kind: kindVarchar, required: true, set: setString(func(m *v1.Metric) *string { return &m.OrgID })},
	{name: v1.FieldRegion, kind: kindVarchar, set: setString(func(m *v1.Metric) *string { return &m.Region })},
	{name: v1.FieldAccountID, kind: kindVarchar, set: setString(func(m *v1.Metric) *string { return &m.AccountID })},
	{name: v1.FieldUserID, kind: kindVarchar, set: setString(func(m *v1.Metric) *string { return &m.UserID })},
	{name: v1.FieldRelatedToRn, kind: kindVarchar, set: setString(func(m *v1.Metric) *string { return &m.RelatedToRn })},
	{name: v1.FieldMetricCategoryID, kind: kindVarchar, set: setString(func(m *v1.Metric) *string { return &m.MetricCategoryID })},
	{name: v1.FieldMetricTypeID, kind: kindVarchar, required: true, set: setString(func(m *v1.Metric) *string { return &m.MetricTypeID })},
	{name: v1.FieldMetricTypeVersion, kind: kindVarchar, set: func(m *v1.Metric, v interface{}) error {
		n, err := strconv.Atoi(v.(string))
		if err != nil {
			return err
		}
		m.MetricTypeVersion = n
		return nil
	}},
	{name: v1.FieldDeviceID, kind: kindVarchar, set: setString(func(m *v1.Metric) *string { return &m.DeviceID })},
	{name: v1.FieldBatchID, kind: kindVarchar, set: setString(func(m *v1.Metric) *string { return &m.BatchID })},
	{name: "time", kind: kindTimestamp, required: true, set: func(m *v1.Metric, v interface{}) error {
		m.TakenAt = v.(time.Time)
		return nil
	}},
	{name: measureValue, kind: kindDouble, required: true, set: func(m *v1.Metric, v interface{}) error {
		m.Value = v.(float64)
		return nil
	}},
	{name: measureRecordedAt, kind: kindTimestamp, set: func(m *v1.Metric, v interface{}) error {
		m.RecordedAt = v.(time.Time)
		return nil
	}},
	{name: measureIsDeleted, kind: kindBoolean, set: func(m *v1.Metric, v interface{}) error {
		m.IsDeleted = v.(bool)
		return nil
	}},
	{name: measureTakenAtOffset, kind: kindBigint, set: func(m *v1.Metric, v interface{}) error {
		m.TakenAtOffset = int(v.(int64))
		return nil
	}},
	{name: measureMetadata, kind: kindVarchar, set: func(m *v1.Metric, v interface{}) error {
		return json.Unmarshal([]byte(v.(string)), &m.Metadata)
	}},
}

// bucketSchema decodes aggregate rows. The bucket column is a TIMESTAMP
// for time plans and text otherwise.
func bucketSchema(timeBucket bool) []column[aggregation.Bucket] {
	bucketKind := kindVarchar
	if timeBucket {
		bucketKind = kindTimestamp
	}
	return []column[aggregation.Bucket]{
		{name: aggregation.ColTypeID, kind: kindVarchar, required: true, set: func(b *aggregation.Bucket, v interface{}) error {
			b.MetricTypeID = v.(string)
			return nil
		}},
		{name: aggregation.ColBucket, kind: bucketKind, set: func(b *aggregation.Bucket, v interface{}) error {
			b.Group = v
			return nil
		}},
		{name: aggregation.ColCount, kind: kindBigint, required: true, set: func(b *aggregation.Bucket, v interface{}) error {
			b.Count = v.(int64)
			return nil
		}},
		{name: aggregation.ColAgg, kind: kindDouble, set: func(b *aggregation.Bucket, v interface{}) error {
			f := v.(float64)
			b.Value = &f
			return nil
		}},
		{name: aggregation.ColTakenAt, kind: kindTimestamp, set: func(b *aggregation.Bucket, v interface{}) error {
			b.TakenAt = v.(time.Time)
			return nil
		}},
		{name: aggregation.ColTakenAtOffset, kind: kindBigint, set: func(b *aggregation.Bucket, v interface{}) error {
			b.TakenAtOffset = int(v.(int64))
			return nil
		}},
		{name: aggregation.ColRecordedAt, kind: kindTimestamp, set: func(b *aggregation.Bucket, v interface{}) error {
			b.RecordedAt = v.(time.Time)
			return nil
		}},
	}
}
