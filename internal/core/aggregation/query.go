package aggregation

import (
	"fmt"
	"strings"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
)

// Output column aliases every backend decodes.
const (
	ColTypeID        = "type_id"
	ColBucket        = "bucket"
	ColCount         = "n"
	ColAgg           = "agg"
	ColTakenAt       = "taken_at"
	ColTakenAtOffset = "taken_at_offset"
	ColRecordedAt    = "recorded_at"
	ColTotal         = "total"
)

// Dialect renders the backend-specific pieces of a grouped query.
type Dialect interface {
	// Column maps a logical field to its column name.
	Column(field string) (string, bool)
	// TimeBucket returns the expression binning col into width-sized buckets.
	TimeBucket(col string, width BucketWidth) string
	// AsText casts col to the backend's string type.
	AsText(col string) string
	// LatestBy returns the value of expr on the row with the greatest orderCol.
	LatestBy(expr, orderCol string) string
	// Total returns a window expression counting all groups, or "" if the
	// backend cannot count.
	Total() string
	// Paginate returns the LIMIT/OFFSET clause, or "" for token-paged backends.
	Paginate(limit, offset int) string
}

// BuildQuery renders plan as a grouped SELECT over from. where is the
// already-rendered filter predicate (without the WHERE keyword).
func BuildQuery(plan *Plan, d Dialect, from, where string) (string, error) {
	typeCol, ok := d.Column(v1.FieldMetricTypeID)
	if !ok {
		return "", fmt.Errorf("dialect has no column for %s", v1.FieldMetricTypeID)
	}
	takenCol, _ := d.Column(v1.FieldTakenAt)
	offsetCol, _ := d.Column(v1.FieldTakenAtOffset)
	recordedCol, _ := d.Column(v1.FieldRecordedAt)

	var groupExpr string
	if plan.IsTime() {
		groupExpr = d.TimeBucket(takenCol, *plan.TimeBucket)
	} else {
		col, ok := d.Column(plan.GroupField)
		if !ok {
			return "", fmt.Errorf("unsupported group column %s", plan.GroupField)
		}
		groupExpr = d.AsText(col)
	}

	countExpr := "COUNT(*)"
	aggExpr := ""
	if plan.CountDistinct {
		rowCol, ok := d.Column(plan.RowField)
		if !ok {
			return "", fmt.Errorf("unsupported row %s", plan.RowField)
		}
		countExpr = fmt.Sprintf("COUNT(DISTINCT %s)", rowCol)
		aggExpr = countExpr
	} else {
		valueCol, _ := d.Column(v1.FieldValue)
		fn, ok := sqlFunctions[plan.Function]
		if !ok {
			return "", fmt.Errorf("unsupported function %s", plan.Function)
		}
		if plan.Function == FuncCount {
			aggExpr = countExpr
		} else {
			aggExpr = fmt.Sprintf("%s(%s)", fn, valueCol)
		}
	}

	selects := []string{
		fmt.Sprintf("%s AS %s", typeCol, ColTypeID),
		fmt.Sprintf("%s AS %s", groupExpr, ColBucket),
		fmt.Sprintf("%s AS %s", countExpr, ColCount),
		fmt.Sprintf("%s AS %s", aggExpr, ColAgg),
		fmt.Sprintf("MAX(%s) AS %s", takenCol, ColTakenAt),
		fmt.Sprintf("%s AS %s", d.LatestBy(offsetCol, takenCol), ColTakenAtOffset),
		fmt.Sprintf("MAX(%s) AS %s", recordedCol, ColRecordedAt),
	}
	if plan.IncludeTotal {
		if total := d.Total(); total != "" {
			selects = append(selects, fmt.Sprintf("%s AS %s", total, ColTotal))
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(selects, ", "))
	b.WriteString(" FROM ")
	b.WriteString(from)
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	fmt.Fprintf(&b, " GROUP BY %s, %s", typeCol, groupExpr)
	b.WriteString(" ORDER BY ")
	b.WriteString(orderClause(plan.Order))
	if page := d.Paginate(plan.Limit, plan.Offset); page != "" {
		b.WriteString(" ")
		b.WriteString(page)
	}
	return b.String(), nil
}

var orderColumns = map[string]string{
	SortMetricTypeID: ColTypeID,
	SortGroup:        ColBucket,
	SortCount:        ColCount,
	SortValue:        ColAgg,
}

func orderClause(order []OrderTerm) string {
	terms := make([]string, 0, len(order))
	for _, o := range order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		terms = append(terms, orderColumns[o.Key]+" "+dir)
	}
	return strings.Join(terms, ", ")
}
