package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
	"github.com/aevon-lab/aevon-metrics/internal/core/aggregation"
)

// columns maps logical fields to mirror columns.
var columns = map[string]string{
	v1.FieldID:                "id",
	v1.FieldOrgID:             "org_id",
	v1.FieldAccountID:         "account_id",
	v1.FieldRegion:            "region",
	v1.FieldUserID:            "user_id",
	v1.FieldDeviceID:          "device_id",
	v1.FieldRelatedToRn:       "related_to_rn",
	v1.FieldMetricCategoryID:  "metric_category_id",
	v1.FieldMetricTypeID:      "metric_type_id",
	v1.FieldMetricTypeVersion: "metric_type_version",
	v1.FieldBatchID:           "batch_id",
	v1.FieldValue:             "value",
	v1.FieldTakenAt:           "taken_at",
	v1.FieldTakenAtOffset:     "taken_at_offset",
	v1.FieldRecordedAt:        "recorded_at",
	v1.FieldIsDeleted:         "is_deleted",
}

// pgDialect renders aggregation plans for PostgreSQL 14+.
type pgDialect struct{}

func (pgDialect) Column(field string) (string, bool) {
	c, ok := columns[field]
	return c, ok
}

// TimeBucket bins on the Unix epoch, matching Timestream bin().
func (pgDialect) TimeBucket(col string, w aggregation.BucketWidth) string {
	return fmt.Sprintf("date_bin(INTERVAL '%d seconds', %s, TIMESTAMPTZ '1970-01-01 00:00:00+00')",
		int64(w.Size.Seconds()), col)
}

func (pgDialect) AsText(col string) string {
	return col + "::text"
}

func (pgDialect) LatestBy(expr, orderCol string) string {
	return fmt.Sprintf("(ARRAY_AGG(%s ORDER BY %s DESC))[1]", expr, orderCol)
}

func (pgDialect) Total() string {
	return "COUNT(*) OVER ()"
}

func (pgDialect) Paginate(limit, offset int) string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

// whereBuilder accumulates predicates with positional placeholders.
type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (w *whereBuilder) arg(v interface{}) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereBuilder) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) anyOf(col string, values []string) {
	if len(values) == 0 {
		return
	}
	w.add(fmt.Sprintf("%s = ANY(%s)", col, w.arg(pq.Array(values))))
}

func (w *whereBuilder) String() string {
	return strings.Join(w.conds, " AND ")
}

// buildWhere renders filters as a parameterized predicate. The soft-delete
// filter is implicit unless IncludeDeleted is set.
func buildWhere(f v1.SearchFilters) *whereBuilder {
	w := &whereBuilder{}
	w.add("org_id = " + w.arg(f.OrgID))
	if !f.IncludeDeleted {
		w.add("is_deleted = false")
	}

	w.anyOf("id", f.IDs)
	w.anyOf("account_id", f.AccountIDs)
	w.anyOf("region", f.Regions)
	w.anyOf("user_id", f.UserIDs)
	w.anyOf("device_id", f.DeviceIDs)
	w.anyOf("related_to_rn", f.RelatedToRns)
	w.anyOf("metric_category_id", f.MetricCategoryIDs)
	w.anyOf("metric_type_id", f.MetricTypeIDs)
	w.anyOf("batch_id", f.BatchIDs)
	if len(f.MetricTypeVersions) > 0 {
		versions := make([]int64, 0, len(f.MetricTypeVersions))
		for _, v := range f.MetricTypeVersions {
			versions = append(versions, int64(v))
		}
		w.add("metric_type_version = ANY(" + w.arg(pq.Array(versions)) + ")")
	}

	if f.ValueMin != nil {
		w.add("value >= " + w.arg(*f.ValueMin))
	}
	if f.ValueMax != nil {
		w.add("value <= " + w.arg(*f.ValueMax))
	}
	if f.TakenAtFrom != nil {
		w.add("taken_at >= " + w.arg(*f.TakenAtFrom))
	}
	if f.TakenAtTo != nil {
		w.add("taken_at <= " + w.arg(*f.TakenAtTo))
	}
	if f.RecordedAtFrom != nil {
		w.add("recorded_at >= " + w.arg(*f.RecordedAtFrom))
	}
	if f.RecordedAtTo != nil {
		w.add("recorded_at <= " + w.arg(*f.RecordedAtTo))
	}
	if c := f.Before; c != nil {
		at := w.arg(c.TakenAt)
		id := w.arg(c.ID)
		w.add(fmt.Sprintf("(taken_at, id) < (%s, %s)", at, id))
	}
	return w
}

// orderBy renders the sort list with an id tie-break in the direction of
// the last sort field, so (takenAt desc) pages agree with the keyset cursor.
func orderBy(fields []v1.SortField) string {
	terms := make([]string, 0, len(fields)+1)
	tie := "DESC"
	for _, f := range fields {
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		terms = append(terms, columns[f.Field]+" "+dir)
		tie = dir
	}
	terms = append(terms, "id "+tie)
	return strings.Join(terms, ", ")
}
