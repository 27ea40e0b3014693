package v1

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
	// MaxScanPageLimit bounds server-side bulk scans such as exports.
	MaxScanPageLimit = 10000
)

// SortableFields are the fields search results can be ordered by.
var SortableFields = map[string]bool{
	FieldTakenAt:           true,
	FieldRecordedAt:        true,
	FieldValue:             true,
	FieldMetricTypeID:      true,
	FieldMetricCategoryID:  true,
	FieldUserID:            true,
	FieldDeviceID:          true,
	FieldMetricTypeVersion: true,
	FieldID:                true,
}

// SearchFilters is the structured query understood by every store.
// Slice filters are set-membership (OR within, AND across fields);
// range bounds are inclusive.
type SearchFilters struct {
	OrgID              string   `json:"orgId"`
	IDs                []string `json:"ids,omitempty"`
	AccountIDs         []string `json:"accountIds,omitempty"`
	Regions            []string `json:"regions,omitempty"`
	UserIDs            []string `json:"userIds,omitempty"`
	DeviceIDs          []string `json:"deviceIds,omitempty"`
	RelatedToRns       []string `json:"relatedToRns,omitempty"`
	MetricCategoryIDs  []string `json:"metricCategoryIds,omitempty"`
	MetricTypeIDs      []string `json:"metricTypeIds,omitempty"`
	MetricTypeCodes    []string `json:"metricTypeCodes,omitempty"`
	MetricTypeVersions []int    `json:"metricTypeVersions,omitempty"`
	BatchIDs           []string `json:"batchIds,omitempty"`

	ValueMin       *float64   `json:"valueMin,omitempty"`
	ValueMax       *float64   `json:"valueMax,omitempty"`
	TakenAtFrom    *time.Time `json:"takenAtFrom,omitempty"`
	TakenAtTo      *time.Time `json:"takenAtTo,omitempty"`
	RecordedAtFrom *time.Time `json:"recordedAtFrom,omitempty"`
	RecordedAtTo   *time.Time `json:"recordedAtTo,omitempty"`

	// IncludeDeleted lifts the implicit isDeleted=false filter.
	IncludeDeleted bool `json:"includeDeleted,omitempty"`
	// IncludeTotal asks stores that can count to report Page.Total.
	IncludeTotal bool `json:"includeTotal,omitempty"`

	// Sort entries are "field" or "field:asc|desc". Default takenAt:desc.
	Sort []string `json:"sort,omitempty"`

	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
	NextToken string `json:"nextToken,omitempty"`

	// Before is a keyset cursor: only rows strictly before (TakenAt, ID) in
	// descending (takenAt, id) order match. Set by the export engine.
	Before *Cursor `json:"-"`
	// Scan marks a server-side bulk read; pages may reach MaxScanPageLimit.
	Scan bool `json:"-"`
}

// Cursor is a position in descending (takenAt, id) order.
type Cursor struct {
	TakenAt time.Time
	ID      string
}

// SortField is a parsed sort entry.
type SortField struct {
	Field string
	Desc  bool
}

// Validate checks the filter for caller mistakes.
func (f *SearchFilters) Validate() error {
	if strings.TrimSpace(f.OrgID) == "" {
		return NewValidationError("orgId", "orgId is required")
	}
	if f.Limit < 0 {
		return NewValidationError("limit", "limit must be >= 0")
	}
	if f.Offset < 0 {
		return NewValidationError("offset", "offset must be >= 0")
	}
	if f.ValueMin != nil && f.ValueMax != nil && *f.ValueMin > *f.ValueMax {
		return NewValidationError("valueMin", "valueMin must be <= valueMax")
	}
	if f.TakenAtFrom != nil && f.TakenAtTo != nil && f.TakenAtFrom.After(*f.TakenAtTo) {
		return NewValidationError("takenAtFrom", "takenAtFrom must be <= takenAtTo")
	}
	if f.RecordedAtFrom != nil && f.RecordedAtTo != nil && f.RecordedAtFrom.After(*f.RecordedAtTo) {
		return NewValidationError("recordedAtFrom", "recordedAtFrom must be <= recordedAtTo")
	}
	if _, err := ParseSort(f.Sort, SortableFields); err != nil {
		return err
	}
	return nil
}

// EffectiveLimit clamps Limit into [1, max], defaulting when unset.
func (f *SearchFilters) EffectiveLimit(def, max int) int {
	switch {
	case f.Limit <= 0:
		return def
	case f.Limit > max:
		return max
	default:
		return f.Limit
	}
}

// PageLimit is EffectiveLimit with the cap chosen by Scan.
func (f *SearchFilters) PageLimit(def int) int {
	if f.Scan {
		return f.EffectiveLimit(def, MaxScanPageLimit)
	}
	return f.EffectiveLimit(def, MaxPageLimit)
}

// SortFields returns the parsed sort list, defaulting to takenAt descending.
// Callers must have validated the filter.
func (f *SearchFilters) SortFields() []SortField {
	fields, err := ParseSort(f.Sort, SortableFields)
	if err != nil || len(fields) == 0 {
		return []SortField{{Field: FieldTakenAt, Desc: true}}
	}
	return fields
}

// ParseSort parses "field:dir" entries against an allow-list.
func ParseSort(entries []string, allowed map[string]bool) ([]SortField, error) {
	out := make([]SortField, 0, len(entries))
	for _, entry := range entries {
		name, dir, _ := strings.Cut(strings.TrimSpace(entry), ":")
		if !allowed[name] {
			return nil, NewValidationError("sort", fmt.Sprintf("unsupported sort field %q", name))
		}
		sf := SortField{Field: name}
		switch strings.ToLower(dir) {
		case "", "asc":
		case "desc":
			sf.Desc = true
		default:
			return nil, NewValidationError("sort", fmt.Sprintf("invalid sort direction %q", dir))
		}
		out = append(out, sf)
	}
	return out, nil
}

// Page is one slice of search results. NextToken is empty on the last page.
// Total is only reported by stores that can count cheaply.
type Page struct {
	Items     []*Metric `json:"items"`
	NextToken string    `json:"nextToken,omitempty"`
	Total     *int64    `json:"total,omitempty"`
}
