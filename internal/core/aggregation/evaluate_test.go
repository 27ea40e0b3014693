package aggregation

import (
	"testing"
	"time"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
	"github.com/stretchr/testify/require"
)

func metricAt(typeID, user string, value float64, takenAt time.Time) *v1.Metric {
	return &v1.Metric{
		OrgID:        "org-1",
		MetricTypeID: typeID,
		UserID:       user,
		Value:        value,
		TakenAt:      takenAt,
		RecordedAt:   takenAt.Add(time.Minute),
	}
}

func TestEvaluate_DailyAverage(t *testing.T) {
	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	day3 := day2.Add(24 * time.Hour)

	rows := []*v1.Metric{
		metricAt("t1", "u1", 10, day1.Add(1*time.Hour)),
		metricAt("t1", "u1", 20, day1.Add(23*time.Hour)),
		metricAt("t1", "u2", 5, day2.Add(12*time.Hour)),
		metricAt("t1", "u1", 1, day3),
		metricAt("t1", "u2", 2, day3.Add(time.Hour)),
		metricAt("t1", "u3", 4, day3.Add(2*time.Hour)),
	}

	plan, err := Compile(Request{
		Filters:           v1.SearchFilters{OrgID: "org-1"},
		Column:            "time",
		ColumnAggregation: "1d",
		RowAggregation:    FuncAvg,
	})
	require.NoError(t, err)

	buckets := Evaluate(plan, rows)
	require.Len(t, buckets, 3)

	require.Equal(t, day1, buckets[0].Group)
	require.Equal(t, int64(2), buckets[0].Count)
	require.InDelta(t, 15, *buckets[0].Value, 1e-9)
	require.Equal(t, day1.Add(23*time.Hour), buckets[0].TakenAt)

	require.Equal(t, day2, buckets[1].Group)
	require.Equal(t, int64(1), buckets[1].Count)
	require.InDelta(t, 5, *buckets[1].Value, 1e-9)

	require.Equal(t, day3, buckets[2].Group)
	require.Equal(t, int64(3), buckets[2].Count)
	require.InDelta(t, 7.0/3.0, *buckets[2].Value, 1e-9)
}

func TestEvaluate_CountSemantics(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []*v1.Metric{
		metricAt("t1", "u1", 1, base),
		metricAt("t1", "u1", 2, base.Add(time.Minute)),
		metricAt("t1", "u2", 3, base.Add(2*time.Minute)),
		metricAt("t1", "u1", 4, base.Add(3*time.Minute)),
	}

	byValue, err := Compile(Request{
		Filters:           v1.SearchFilters{OrgID: "org-1"},
		Column:            "takenAt",
		ColumnAggregation: "1h",
		RowAggregation:    FuncCount,
	})
	require.NoError(t, err)
	buckets := Evaluate(byValue, rows)
	require.Len(t, buckets, 1)
	require.Equal(t, int64(4), buckets[0].Count)

	byUser, err := Compile(Request{
		Filters:           v1.SearchFilters{OrgID: "org-1"},
		Column:            "takenAt",
		ColumnAggregation: "1h",
		Row:               v1.FieldUserID,
		RowAggregation:    FuncCount,
	})
	require.NoError(t, err)
	buckets = Evaluate(byUser, rows)
	require.Len(t, buckets, 1)
	require.Equal(t, int64(2), buckets[0].Count)
	require.Equal(t, float64(2), *buckets[0].Value)
}

func TestEvaluate_DiscreteSort(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []*v1.Metric{
		metricAt("t1", "u1", 1, base),
		metricAt("t1", "u2", 10, base),
		metricAt("t1", "u2", 10, base),
		metricAt("t2", "u1", 100, base),
	}

	plan, err := Compile(Request{
		Filters:        v1.SearchFilters{OrgID: "org-1"},
		Column:         v1.FieldUserID,
		RowAggregation: FuncSum,
		Sort:           []string{"value:desc"},
	})
	require.NoError(t, err)

	buckets := Evaluate(plan, rows)
	require.Len(t, buckets, 3)
	require.Equal(t, "t2", buckets[0].MetricTypeID)
	require.Equal(t, float64(100), *buckets[0].Value)
	require.Equal(t, "u2", buckets[1].Group)
	require.Equal(t, float64(20), *buckets[1].Value)
	require.Equal(t, "u1", buckets[2].Group)
}

func TestFieldText(t *testing.T) {
	require.Equal(t, "", FieldText(nil))
	require.Equal(t, "1.5", FieldText(1.5))
	require.Equal(t, "3", FieldText(float64(3)))
	require.Equal(t, "-60", FieldText(-60))
	require.Equal(t, "true", FieldText(true))
}
