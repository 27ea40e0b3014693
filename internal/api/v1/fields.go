package v1

import "strings"

// Logical field names shared by filters, sorting, aggregation and export.
const (
	FieldID                 = "id"
	FieldOrgID              = "orgId"
	FieldAccountID          = "accountId"
	FieldRegion             = "region"
	FieldUserID             = "userId"
	FieldDeviceID           = "deviceId"
	FieldRelatedToRn        = "relatedToRn"
	FieldMetricCategoryID   = "metricCategoryId"
	FieldMetricCategoryCode = "metricCategoryCode"
	FieldMetricTypeID       = "metricTypeId"
	FieldMetricTypeCode     = "metricTypeCode"
	FieldMetricTypeVersion  = "metricTypeVersion"
	FieldBatchID            = "batchId"
	FieldValue              = "value"
	FieldTakenAt            = "takenAt"
	FieldTakenAtOffset      = "takenAtOffset"
	FieldRecordedAt         = "recordedAt"
	FieldMetadata           = "metadata"
	FieldIsDeleted          = "isDeleted"

	// MetadataFieldPrefix addresses a single metadata key, e.g. "metadata.source".
	MetadataFieldPrefix = "metadata."
)

// StoredFields lists every persisted field in canonical column order.
var StoredFields = []string{
	FieldID,
	FieldOrgID,
	FieldAccountID,
	FieldRegion,
	FieldUserID,
	FieldDeviceID,
	FieldRelatedToRn,
	FieldMetricCategoryID,
	FieldMetricTypeID,
	FieldMetricTypeVersion,
	FieldBatchID,
	FieldValue,
	FieldTakenAt,
	FieldTakenAtOffset,
	FieldRecordedAt,
	FieldMetadata,
	FieldIsDeleted,
}

// GroupableFields are the discrete dimensions an aggregation may group by.
var GroupableFields = map[string]bool{
	FieldOrgID:             true,
	FieldAccountID:         true,
	FieldRegion:            true,
	FieldUserID:            true,
	FieldDeviceID:          true,
	FieldRelatedToRn:       true,
	FieldMetricCategoryID:  true,
	FieldMetricTypeVersion: true,
	FieldBatchID:           true,
	FieldTakenAtOffset:     true,
	FieldValue:             true,
}

// Get returns the value of a logical field, or nil when the field is
// unknown or absent. Metadata keys are addressed with MetadataFieldPrefix.
func (m *Metric) Get(field string) interface{} {
	switch field {
	case FieldID:
		return m.ID
	case FieldOrgID:
		return m.OrgID
	case FieldAccountID:
		return m.AccountID
	case FieldRegion:
		return m.Region
	case FieldUserID:
		return m.UserID
	case FieldDeviceID:
		return m.DeviceID
	case FieldRelatedToRn:
		return m.RelatedToRn
	case FieldMetricCategoryID:
		return m.MetricCategoryID
	case FieldMetricCategoryCode:
		return m.MetricCategoryCode
	case FieldMetricTypeID:
		return m.MetricTypeID
	case FieldMetricTypeCode:
		return m.MetricTypeCode
	case FieldMetricTypeVersion:
		return m.MetricTypeVersion
	case FieldBatchID:
		return m.BatchID
	case FieldValue:
		return m.Value
	case FieldTakenAt:
		return m.TakenAt
	case FieldTakenAtOffset:
		return m.TakenAtOffset
	case FieldRecordedAt:
		return m.RecordedAt
	case FieldMetadata:
		if m.Metadata == nil {
			return nil
		}
		return m.Metadata
	case FieldIsDeleted:
		return m.IsDeleted
	}
	if key, ok := strings.CutPrefix(field, MetadataFieldPrefix); ok && key != "" {
		if v, exists := m.Metadata[key]; exists {
			return v
		}
	}
	return nil
}
