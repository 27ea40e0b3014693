package timestream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/timestreamwrite"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
)

// measureName is the single multi-measure record name every metric is written under.
const measureName = "metric"

// Measure names inside the multi-measure record.
const (
	measureValue         = "value"
	measureRecordedAt    = "recordedAt"
	measureIsDeleted     = "isDeleted"
	measureTakenAtOffset = "takenAtOffset"
	measureMetadata      = "metadata"
)

// maxRecordsPerWrite is the WriteRecords batch limit.
const maxRecordsPerWrite = 100

// dimensionFields are written as dimensions, in this order. Empty values
// are omitted because Timestream rejects empty dimension values.
var dimensionFields = []string{
	v1.FieldID,
	v1.FieldOrgID,
	v1.FieldRegion,
	v1.FieldAccountID,
	v1.FieldUserID,
	v1.FieldRelatedToRn,
	v1.FieldMetricCategoryID,
	v1.FieldMetricTypeID,
	v1.FieldMetricTypeVersion,
	v1.FieldDeviceID,
	v1.FieldBatchID,
}

// buildRecord converts a metric into one multi-measure record stamped
// with takenAt. version orders writes to the same point; higher wins.
func buildRecord(m *v1.Metric, version int64) (*timestreamwrite.Record, error) {
	dims := make([]*timestreamwrite.Dimension, 0, len(dimensionFields))
	for _, field := range dimensionFields {
		value := dimensionValue(m, field)
		if value == "" {
			continue
		}
		dims = append(dims, &timestreamwrite.Dimension{
			Name:  aws.String(field),
			Value: aws.String(value),
		})
	}

	measures := []*timestreamwrite.MeasureValue{
		{
			Name:  aws.String(measureValue),
			Type:  aws.String(timestreamwrite.MeasureValueTypeDouble),
			Value: aws.String(strconv.FormatFloat(m.Value, 'f', -1, 64)),
		},
		{
			Name:  aws.String(measureRecordedAt),
			Type:  aws.String(timestreamwrite.MeasureValueTypeTimestamp),
			Value: aws.String(strconv.FormatInt(m.RecordedAt.UnixMilli(), 10)),
		},
		{
			Name:  aws.String(measureIsDeleted),
			Type:  aws.String(timestreamwrite.MeasureValueTypeBoolean),
			Value: aws.String(strconv.FormatBool(m.IsDeleted)),
		},
		{
			Name:  aws.String(measureTakenAtOffset),
			Type:  aws.String(timestreamwrite.MeasureValueTypeBigint),
			Value: aws.String(strconv.Itoa(m.TakenAtOffset)),
		},
	}
	if len(m.Metadata) > 0 {
		raw, err := json.Marshal(m.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		measures = append(measures, &timestreamwrite.MeasureValue{
			Name:  aws.String(measureMetadata),
			Type:  aws.String(timestreamwrite.MeasureValueTypeVarchar),
			Value: aws.String(string(raw)),
		})
	}

	return &timestreamwrite.Record{
		Dimensions:       dims,
		MeasureName:      aws.String(measureName),
		MeasureValueType: aws.String(timestreamwrite.MeasureValueTypeMulti),
		MeasureValues:    measures,
		Time:             aws.String(strconv.FormatInt(m.TakenAt.UnixMilli(), 10)),
		TimeUnit:         aws.String(timestreamwrite.TimeUnitMilliseconds),
		Version:          aws.Int64(version),
	}, nil
}

func dimensionValue(m *v1.Metric, field string) string {
	if field == v1.FieldMetricTypeVersion {
		return strconv.Itoa(m.MetricTypeVersion)
	}
	s, _ := m.Get(field).(string)
	return s
}

// storedView is what a metric looks like after a round trip through the
// store: times at millisecond precision, metadata as decoded JSON.
func storedView(m *v1.Metric) (*v1.Metric, error) {
	out := m.Clone()
	out.TakenAt = out.TakenAt.UTC().Truncate(time.Millisecond)
	out.RecordedAt = out.RecordedAt.UTC().Truncate(time.Millisecond)
	if len(m.Metadata) > 0 {
		raw, err := json.Marshal(m.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		out.Metadata = nil
		if err := json.Unmarshal(raw, &out.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return out, nil
}
