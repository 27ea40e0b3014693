package aggregation

import (
	"errors"
	"testing"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
	"github.com/stretchr/testify/require"
)

func baseRequest() Request {
	return Request{
		Filters:        v1.SearchFilters{OrgID: "org-1"},
		Column:         "takenAt",
		RowAggregation: FuncAvg,
	}
}

func TestCompile_TimeColumn(t *testing.T) {
	req := baseRequest()
	req.Column = "time"
	req.ColumnAggregation = "1d"
	req.SortDirection = "desc"

	plan, err := Compile(req)
	require.NoError(t, err)
	require.True(t, plan.IsTime())
	require.Equal(t, v1.FieldTakenAt, plan.GroupField)
	require.Equal(t, "1d", plan.TimeBucket.Label)
	require.Equal(t, v1.FieldValue, plan.RowField)
	require.False(t, plan.CountDistinct)
	require.Equal(t, []OrderTerm{{Key: SortGroup, Desc: true}, {Key: SortMetricTypeID}}, plan.Order)
	require.Equal(t, DefaultLimit, plan.Limit)
}

func TestCompile_DiscreteColumn(t *testing.T) {
	req := baseRequest()
	req.Column = v1.FieldDeviceID
	req.RowAggregation = "SUM"
	req.Sort = []string{"value:desc", "group"}
	req.Limit = 5000

	plan, err := Compile(req)
	require.NoError(t, err)
	require.False(t, plan.IsTime())
	require.Equal(t, FuncSum, plan.Function)
	require.Equal(t, []OrderTerm{{Key: SortValue, Desc: true}, {Key: SortGroup}}, plan.Order)
	require.Equal(t, MaxLimit, plan.Limit)
}

func TestCompile_DiscreteDefaultOrder(t *testing.T) {
	req := baseRequest()
	req.Column = v1.FieldRegion

	plan, err := Compile(req)
	require.NoError(t, err)
	require.Equal(t, []OrderTerm{{Key: SortMetricTypeID}, {Key: SortGroup}}, plan.Order)
}

func TestCompile_DimensionRowCountsDistinct(t *testing.T) {
	req := baseRequest()
	req.ColumnAggregation = "1h"
	req.Row = v1.FieldUserID
	req.RowAggregation = FuncCount

	plan, err := Compile(req)
	require.NoError(t, err)
	require.True(t, plan.CountDistinct)
	require.Equal(t, v1.FieldUserID, plan.RowField)
}

func TestCompile_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(r *Request)
		field string
	}{
		{name: "missing org", mod: func(r *Request) { r.Filters.OrgID = ""; r.ColumnAggregation = "1d" }, field: "orgId"},
		{name: "missing column", mod: func(r *Request) { r.Column = "" }, field: "column"},
		{name: "missing width", mod: func(r *Request) {}, field: "columnAggregation"},
		{name: "off-list width", mod: func(r *Request) { r.ColumnAggregation = "2d" }, field: "columnAggregation"},
		{name: "width on discrete column", mod: func(r *Request) { r.Column = v1.FieldUserID; r.ColumnAggregation = "1d" }, field: "columnAggregation"},
		{name: "unknown column", mod: func(r *Request) { r.Column = "metadata" }, field: "column"},
		{name: "unknown function", mod: func(r *Request) { r.ColumnAggregation = "1d"; r.RowAggregation = "median" }, field: "rowAggregation"},
		{name: "avg over dimension", mod: func(r *Request) { r.ColumnAggregation = "1d"; r.Row = v1.FieldUserID }, field: "rowAggregation"},
		{name: "unknown row", mod: func(r *Request) { r.ColumnAggregation = "1d"; r.Row = "nope" }, field: "row"},
		{name: "bad direction", mod: func(r *Request) { r.ColumnAggregation = "1d"; r.SortDirection = "up" }, field: "sortDirection"},
		{name: "bad sort key", mod: func(r *Request) { r.Column = v1.FieldUserID; r.Sort = []string{"takenAt"} }, field: "sort"},
		{name: "negative limit", mod: func(r *Request) { r.ColumnAggregation = "1d"; r.Limit = -1 }, field: "limit"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := baseRequest()
			tc.mod(&req)
			_, err := Compile(req)
			require.Error(t, err)

			var verr *v1.ValidationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, tc.field, verr.Field)
		})
	}
}
