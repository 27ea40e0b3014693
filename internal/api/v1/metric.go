package v1

import (
	"fmt"
	"strings"
	"time"
)

// MaxMetadataEntries bounds the cardinality of Metric.Metadata.
const MaxMetadataEntries = 10

// Metric is a single immutable point-in-time measurement.
// Only Value, TakenAt/TakenAtOffset and Metadata change after ingestion.
type Metric struct {
	// --- Identity & scope ---

	// ID is opaque and may be supplied by the client for idempotent upserts.
	ID        string `json:"id"`
	OrgID     string `json:"orgId"`
	AccountID string `json:"accountId,omitempty"`
	Region    string `json:"region,omitempty"`

	// --- Attribution ---

	UserID   string `json:"userId,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`
	// RelatedToRn is a free-form reference to an external resource.
	RelatedToRn string `json:"relatedToRn,omitempty"`

	// --- Classification ---

	MetricCategoryID string `json:"metricCategoryId"`
	MetricTypeID     string `json:"metricTypeId"`
	// MetricTypeVersion pins the unit/factor the value was captured under.
	// Updates never touch it.
	MetricTypeVersion int    `json:"metricTypeVersion"`
	BatchID           string `json:"batchId,omitempty"`

	// --- Payload ---

	Value float64 `json:"value"`
	// TakenAt is when the measurement happened; TakenAtOffset keeps the
	// capture wall-clock zone in minutes east of UTC.
	TakenAt       time.Time `json:"takenAt"`
	TakenAtOffset int       `json:"takenAtOffset"`
	// RecordedAt is assigned by the server at ingestion.
	RecordedAt time.Time              `json:"recordedAt"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	IsDeleted  bool                   `json:"isDeleted"`

	// --- Enrichment (never persisted) ---

	MetricTypeCode     string `json:"metricTypeCode,omitempty"`
	MetricCategoryCode string `json:"metricCategoryCode,omitempty"`
}

// Clone returns a copy of m that shares no mutable state with it.
func (m *Metric) Clone() *Metric {
	if m == nil {
		return nil
	}
	c := *m
	c.Metadata = cloneMetadata(m.Metadata)
	return &c
}

// MetricInput is the client-facing shape accepted by create and upsert.
// Exactly one of MetricTypeID and MetricTypeCode must be set.
type MetricInput struct {
	ID                 string                 `json:"id,omitempty"`
	OrgID              string                 `json:"orgId"`
	AccountID          string                 `json:"accountId,omitempty"`
	Region             string                 `json:"region,omitempty"`
	UserID             string                 `json:"userId,omitempty"`
	DeviceID           string                 `json:"deviceId,omitempty"`
	RelatedToRn        string                 `json:"relatedToRn,omitempty"`
	MetricCategoryID   string                 `json:"metricCategoryId,omitempty"`
	MetricCategoryCode string                 `json:"metricCategoryCode,omitempty"`
	MetricTypeID       string                 `json:"metricTypeId,omitempty"`
	MetricTypeCode     string                 `json:"metricTypeCode,omitempty"`
	MetricTypeVersion  int                    `json:"metricTypeVersion,omitempty"`
	BatchID            string                 `json:"batchId,omitempty"`
	Value              *float64               `json:"value"`
	TakenAt            time.Time              `json:"takenAt"`
	TakenAtOffset      *int                   `json:"takenAtOffset,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the paired and required fields of an input.
func (in *MetricInput) Validate() error {
	if strings.TrimSpace(in.OrgID) == "" {
		return NewValidationError("orgId", "orgId is required")
	}
	if (in.MetricTypeID == "") == (in.MetricTypeCode == "") {
		return NewValidationError("metricTypeId", "exactly one of metricTypeId or metricTypeCode is required")
	}
	if in.MetricCategoryID != "" && in.MetricCategoryCode != "" {
		return NewValidationError("metricCategoryId", "metricCategoryId and metricCategoryCode are mutually exclusive")
	}
	if in.Value == nil {
		return NewValidationError("value", "value is required")
	}
	if in.TakenAt.IsZero() {
		return NewValidationError("takenAt", "takenAt is required")
	}
	if in.MetricTypeVersion < 0 {
		return NewValidationError("metricTypeVersion", "metricTypeVersion must be >= 0")
	}
	if in.TakenAtOffset != nil {
		if err := validateOffset(*in.TakenAtOffset); err != nil {
			return err
		}
	}
	return ValidateMetadata(in.Metadata)
}

// Patch derives the update half of an upsert from the input.
// Metadata is only carried when the input supplied it.
func (in *MetricInput) Patch() MetricPatch {
	takenAt := in.TakenAt
	return MetricPatch{
		Value:         in.Value,
		TakenAt:       &takenAt,
		TakenAtOffset: in.TakenAtOffset,
		Metadata:      in.Metadata,
	}
}

// ToMetric builds the stored shape from a validated, code-resolved input.
func (in *MetricInput) ToMetric() *Metric {
	m := &Metric{
		ID:                in.ID,
		OrgID:             in.OrgID,
		AccountID:         in.AccountID,
		Region:            in.Region,
		UserID:            in.UserID,
		DeviceID:          in.DeviceID,
		RelatedToRn:       in.RelatedToRn,
		MetricCategoryID:  in.MetricCategoryID,
		MetricTypeID:      in.MetricTypeID,
		MetricTypeVersion: in.MetricTypeVersion,
		BatchID:           in.BatchID,
		TakenAt:           in.TakenAt.UTC(),
		Metadata:          cloneMetadata(in.Metadata),
	}
	if in.Value != nil {
		m.Value = *in.Value
	}
	if in.TakenAtOffset != nil {
		m.TakenAtOffset = *in.TakenAtOffset
	}
	return m
}

// MetricPatch is a partial update. Nil fields are left untouched.
// A non-nil Metadata replaces the stored map wholesale; it is never merged.
type MetricPatch struct {
	Value         *float64               `json:"value,omitempty"`
	TakenAt       *time.Time             `json:"takenAt,omitempty"`
	TakenAtOffset *int                   `json:"takenAtOffset,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`

	// IsDeleted is only set by delete.
	IsDeleted *bool `json:"-"`
}

// Validate checks a patch before it reaches any store.
func (p *MetricPatch) Validate() error {
	if p.TakenAt != nil && p.TakenAt.IsZero() {
		return NewValidationError("takenAt", "takenAt must not be zero")
	}
	if p.TakenAtOffset != nil {
		if err := validateOffset(*p.TakenAtOffset); err != nil {
			return err
		}
	}
	return ValidateMetadata(p.Metadata)
}

// ApplyPatch merges p into m in place and reports whether TakenAt moved.
// This is the only place update semantics live; every store calls it.
func ApplyPatch(m *Metric, p MetricPatch) (takenAtChanged bool) {
	if p.Value != nil {
		m.Value = *p.Value
	}
	if p.TakenAt != nil {
		next := p.TakenAt.UTC()
		takenAtChanged = !next.Equal(m.TakenAt)
		m.TakenAt = next
	}
	if p.TakenAtOffset != nil {
		m.TakenAtOffset = *p.TakenAtOffset
	}
	if p.Metadata != nil {
		m.Metadata = cloneMetadata(p.Metadata)
	}
	if p.IsDeleted != nil {
		m.IsDeleted = *p.IsDeleted
	}
	return takenAtChanged
}

// ValidateMetadata enforces the entry bound and scalar value types.
func ValidateMetadata(md map[string]interface{}) error {
	if len(md) > MaxMetadataEntries {
		return NewValidationError("metadata", fmt.Sprintf("metadata supports at most %d entries", MaxMetadataEntries))
	}
	for k, v := range md {
		if strings.TrimSpace(k) == "" {
			return NewValidationError("metadata", "metadata keys must not be empty")
		}
		switch v.(type) {
		case string, float64, float32, int, int32, int64, bool, time.Time:
		default:
			return NewValidationError("metadata."+k, fmt.Sprintf("unsupported metadata value type %T", v))
		}
	}
	return nil
}

func validateOffset(offset int) error {
	// UTC-14:00 .. UTC+14:00
	if offset < -14*60 || offset > 14*60 {
		return NewValidationError("takenAtOffset", "takenAtOffset must be within ±840 minutes")
	}
	return nil
}

func cloneMetadata(md map[string]interface{}) map[string]interface{} {
	if md == nil {
		return nil
	}
	out := make(map[string]interface{}, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
