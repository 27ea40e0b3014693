package timestream

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
	"github.com/aevon-lab/aevon-metrics/internal/core/aggregation"
)

// columns maps logical fields to Timestream columns. Dimensions and
// measures keep their logical names; takenAt is the record time.
var columns = map[string]string{
	v1.FieldID:                `"id"`,
	v1.FieldOrgID:             `"orgId"`,
	v1.FieldRegion:            `"region"`,
	v1.FieldAccountID:         `"accountId"`,
	v1.FieldUserID:            `"userId"`,
	v1.FieldRelatedToRn:       `"relatedToRn"`,
	v1.FieldMetricCategoryID:  `"metricCategoryId"`,
	v1.FieldMetricTypeID:      `"metricTypeId"`,
	v1.FieldMetricTypeVersion: `"metricTypeVersion"`,
	v1.FieldDeviceID:          `"deviceId"`,
	v1.FieldBatchID:           `"batchId"`,
	v1.FieldValue:             `"value"`,
	v1.FieldTakenAt:           "time",
	v1.FieldTakenAtOffset:     `"takenAtOffset"`,
	v1.FieldRecordedAt:        `"recordedAt"`,
	v1.FieldIsDeleted:         `"isDeleted"`,
}

// dialect renders aggregation plans in the Timestream query language.
type dialect struct{}

func (dialect) Column(field string) (string, bool) {
	c, ok := columns[field]
	return c, ok
}

func (dialect) TimeBucket(col string, w aggregation.BucketWidth) string {
	return fmt.Sprintf("bin(%s, %s)", col, w.Label)
}

func (dialect) AsText(col string) string {
	return fmt.Sprintf("CAST(%s AS VARCHAR)", col)
}

func (dialect) LatestBy(expr, orderCol string) string {
	return fmt.Sprintf("max_by(%s, %s)", expr, orderCol)
}

// Total is unsupported: group counts are not cheap on the time-series path.
func (dialect) Total() string { return "" }

// Paginate is empty: pages are driven by MaxRows and NextToken.
func (dialect) Paginate(limit, offset int) string { return "" }

// quote renders s as a string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func timeLiteral(t time.Time) string {
	return fmt.Sprintf("from_milliseconds(%d)", t.UnixMilli())
}

// renderWhere turns structured filters into a predicate. Sets become OR
// groups, ranges are inclusive, deleted rows are excluded unless asked for.
func renderWhere(f v1.SearchFilters) string {
	conds := []string{
		"measure_name = " + quote(measureName),
		columns[v1.FieldOrgID] + " = " + quote(f.OrgID),
	}
	if !f.IncludeDeleted {
		conds = append(conds, columns[v1.FieldIsDeleted]+" = false")
	}

	sets := []struct {
		field  string
		values []string
	}{
		{v1.FieldID, f.IDs},
		{v1.FieldAccountID, f.AccountIDs},
		{v1.FieldRegion, f.Regions},
		{v1.FieldUserID, f.UserIDs},
		{v1.FieldDeviceID, f.DeviceIDs},
		{v1.FieldRelatedToRn, f.RelatedToRns},
		{v1.FieldMetricCategoryID, f.MetricCategoryIDs},
		{v1.FieldMetricTypeID, f.MetricTypeIDs},
		{v1.FieldBatchID, f.BatchIDs},
	}
	for _, s := range sets {
		if c := orGroup(columns[s.field], s.values); c != "" {
			conds = append(conds, c)
		}
	}
	if len(f.MetricTypeVersions) > 0 {
		versions := make([]string, 0, len(f.MetricTypeVersions))
		for _, v := range f.MetricTypeVersions {
			versions = append(versions, strconv.Itoa(v))
		}
		conds = append(conds, orGroup(columns[v1.FieldMetricTypeVersion], versions))
	}

	if f.ValueMin != nil {
		conds = append(conds, fmt.Sprintf("%s >= %s", columns[v1.FieldValue], formatFloat(*f.ValueMin)))
	}
	if f.ValueMax != nil {
		conds = append(conds, fmt.Sprintf("%s <= %s", columns[v1.FieldValue], formatFloat(*f.ValueMax)))
	}
	if f.TakenAtFrom != nil {
		conds = append(conds, "time >= "+timeLiteral(*f.TakenAtFrom))
	}
	if f.TakenAtTo != nil {
		conds = append(conds, "time <= "+timeLiteral(*f.TakenAtTo))
	}
	if f.RecordedAtFrom != nil {
		conds = append(conds, columns[v1.FieldRecordedAt]+" >= "+timeLiteral(*f.RecordedAtFrom))
	}
	if f.RecordedAtTo != nil {
		conds = append(conds, columns[v1.FieldRecordedAt]+" <= "+timeLiteral(*f.RecordedAtTo))
	}
	if c := f.Before; c != nil {
		at := timeLiteral(c.TakenAt)
		conds = append(conds, fmt.Sprintf("(time < %s OR (time = %s AND %s < %s))",
			at, at, columns[v1.FieldID], quote(c.ID)))
	}

	return strings.Join(conds, " AND ")
}

func orGroup(col string, values []string) string {
	if len(values) == 0 {
		return ""
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, col+" = "+quote(v))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (a *Adapter) from() string {
	return fmt.Sprintf(`"%s"."%s"`, a.database, a.table)
}

// buildSearchQuery renders the search query. An id tie-break keeps the
// order total so continuation pages do not overlap.
func (a *Adapter) buildSearchQuery(f v1.SearchFilters) string {
	order := make([]string, 0, 2)
	tieDesc := true
	for _, sf := range f.SortFields() {
		dir := "ASC"
		if sf.Desc {
			dir = "DESC"
		}
		order = append(order, columns[sf.Field]+" "+dir)
		tieDesc = sf.Desc
	}
	tie := "ASC"
	if tieDesc {
		tie = "DESC"
	}
	order = append(order, columns[v1.FieldID]+" "+tie)

	return fmt.Sprintf("SELECT * FROM %s WHERE %s ORDER BY %s",
		a.from(), renderWhere(f), strings.Join(order, ", "))
}

func (a *Adapter) buildReadQuery(id string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE measure_name = %s AND %s = %s AND %s = false ORDER BY time DESC LIMIT 1",
		a.from(), quote(measureName), columns[v1.FieldID], quote(id), columns[v1.FieldIsDeleted])
}

func (a *Adapter) buildLiveByIDQuery(ids []string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE measure_name = %s AND %s AND %s = false",
		a.from(), quote(measureName), orGroup(columns[v1.FieldID], ids), columns[v1.FieldIsDeleted])
}
