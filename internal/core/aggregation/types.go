package aggregation

import (
	"time"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
)

// Supported row aggregation functions.
const (
	FuncAvg       = "avg"
	FuncMin       = "min"
	FuncMax       = "max"
	FuncSum       = "sum"
	FuncCount     = "count"
	FuncStddevPop = "stddev_pop"
)

// TimeColumn is the request column that selects time bucketing.
// "time" is accepted as an alias.
const TimeColumn = v1.FieldTakenAt

// Request is the backend-neutral aggregation request shape.
type Request struct {
	Filters v1.SearchFilters `json:"filters"`

	// Column is the grouping dimension; takenAt groups into time buckets.
	Column string `json:"column"`
	// ColumnAggregation is the bucket width when Column is takenAt.
	ColumnAggregation string `json:"columnAggregation,omitempty"`

	// Row is the aggregated value; defaults to "value".
	Row            string `json:"row,omitempty"`
	RowAggregation string `json:"rowAggregation"`

	// Sort applies to discrete columns: "metricTypeId|group|count|value[:dir]".
	Sort []string `json:"sort,omitempty"`
	// SortDirection applies to time columns: asc (default) or desc.
	SortDirection string `json:"sortDirection,omitempty"`

	// Paging over groups. Filters.Limit/Offset/NextToken are ignored.
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
	NextToken string `json:"nextToken,omitempty"`

	// IncludeTotal asks backends that can count groups to report Total.
	IncludeTotal bool `json:"includeTotal,omitempty"`
}

// Page is what a backend returns for a compiled plan: buckets with Group
// still raw (time.Time or text), before normalization.
type Page struct {
	Buckets   []Bucket
	NextToken string
	Total     *int64
}

// Bucket is one normalized aggregate row.
type Bucket struct {
	MetricTypeID   string `json:"metricTypeId"`
	MetricTypeCode string `json:"metricTypeCode,omitempty"`

	// Group is a time.Time for time buckets, a float64 when the discrete
	// group value is numeric, otherwise the raw string.
	Group interface{} `json:"group"`
	Count int64       `json:"count"`
	Value *float64    `json:"value"`

	// Provenance of the latest-taken row in the bucket.
	TakenAt       time.Time `json:"takenAt"`
	TakenAtOffset int       `json:"takenAtOffset"`
	RecordedAt    time.Time `json:"recordedAt"`
}

// Result is the engine's output. Total is nil when the backend cannot count.
type Result struct {
	Column            string   `json:"column"`
	ColumnAggregation string   `json:"columnAggregation,omitempty"`
	Row               string   `json:"row"`
	RowAggregation    string   `json:"rowAggregation"`
	Buckets           []Bucket `json:"buckets"`
	NextToken         string   `json:"nextToken,omitempty"`
	Total             *int64   `json:"total,omitempty"`
}
