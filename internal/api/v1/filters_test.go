package v1

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSearchFilters_Validate(t *testing.T) {
	low, high := 1.0, 2.0
	from := time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)

	tests := []struct {
		name    string
		filters SearchFilters
		field   string
	}{
		{name: "valid", filters: SearchFilters{OrgID: "org-1", Sort: []string{"value:asc", "takenAt:desc"}}},
		{name: "missing org", filters: SearchFilters{}, field: "orgId"},
		{name: "negative limit", filters: SearchFilters{OrgID: "org-1", Limit: -1}, field: "limit"},
		{name: "negative offset", filters: SearchFilters{OrgID: "org-1", Offset: -1}, field: "offset"},
		{name: "inverted value range", filters: SearchFilters{OrgID: "org-1", ValueMin: &high, ValueMax: &low}, field: "valueMin"},
		{name: "inverted takenAt range", filters: SearchFilters{OrgID: "org-1", TakenAtFrom: &from, TakenAtTo: &to}, field: "takenAtFrom"},
		{name: "unknown sort field", filters: SearchFilters{OrgID: "org-1", Sort: []string{"metadata"}}, field: "sort"},
		{name: "bad sort direction", filters: SearchFilters{OrgID: "org-1", Sort: []string{"value:up"}}, field: "sort"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filters.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSearchFilters_PageLimit(t *testing.T) {
	tests := []struct {
		name    string
		filters SearchFilters
		want    int
	}{
		{name: "default", filters: SearchFilters{}, want: DefaultPageLimit},
		{name: "within bounds", filters: SearchFilters{Limit: 250}, want: 250},
		{name: "capped", filters: SearchFilters{Limit: 5000}, want: MaxPageLimit},
		{name: "scan raises cap", filters: SearchFilters{Limit: 5000, Scan: true}, want: 5000},
		{name: "scan capped", filters: SearchFilters{Limit: 50000, Scan: true}, want: MaxScanPageLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.filters.PageLimit(DefaultPageLimit))
		})
	}
}

func TestSearchFilters_SortFieldsDefault(t *testing.T) {
	f := SearchFilters{OrgID: "org-1"}
	require.Equal(t, []SortField{{Field: FieldTakenAt, Desc: true}}, f.SortFields())
}
