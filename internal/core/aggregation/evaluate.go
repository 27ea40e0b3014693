package aggregation

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
)

type groupKey struct {
	typeID string
	group  string
}

type groupState struct {
	bucket   Bucket
	values   []float64
	distinct map[string]struct{}
}

// Evaluate runs plan over already-filtered rows in process and returns every
// bucket in plan order. Used by backends without a query engine.
func Evaluate(plan *Plan, rows []*v1.Metric) []Bucket {
	groups := make(map[groupKey]*groupState)
	var keys []groupKey

	for _, m := range rows {
		var group interface{}
		var text string
		if plan.IsTime() {
			start := BucketFor(m.TakenAt, plan.TimeBucket.Size)
			group = start
			text = start.Format(time.RFC3339Nano)
		} else {
			text = FieldText(m.Get(plan.GroupField))
			group = text
		}

		key := groupKey{typeID: m.MetricTypeID, group: text}
		st, ok := groups[key]
		if !ok {
			st = &groupState{
				bucket:   Bucket{MetricTypeID: m.MetricTypeID, Group: group},
				distinct: make(map[string]struct{}),
			}
			groups[key] = st
			keys = append(keys, key)
		}

		if plan.CountDistinct {
			st.distinct[FieldText(m.Get(plan.RowField))] = struct{}{}
		} else {
			st.values = append(st.values, m.Value)
		}
		if m.TakenAt.After(st.bucket.TakenAt) || st.bucket.TakenAt.IsZero() {
			st.bucket.TakenAt = m.TakenAt
			st.bucket.TakenAtOffset = m.TakenAtOffset
		}
		if m.RecordedAt.After(st.bucket.RecordedAt) {
			st.bucket.RecordedAt = m.RecordedAt
		}
	}

	out := make([]Bucket, 0, len(keys))
	for _, key := range keys {
		st := groups[key]
		b := st.bucket
		var v float64
		if plan.CountDistinct {
			b.Count = int64(len(st.distinct))
			v = float64(b.Count)
		} else {
			b.Count = int64(len(st.values))
			v = Functions[plan.Function].Reduce(st.values)
		}
		b.Value = &v
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range plan.Order {
			c := compareBuckets(out[i], out[j], o.Key)
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out
}

// FieldText renders a field value the way SQL backends cast it to text.
func FieldText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}

func compareBuckets(a, b Bucket, key string) int {
	switch key {
	case SortMetricTypeID:
		return compareStrings(a.MetricTypeID, b.MetricTypeID)
	case SortCount:
		return compareFloats(float64(a.Count), float64(b.Count))
	case SortValue:
		return compareFloats(deref(a.Value), deref(b.Value))
	case SortGroup:
		at, aok := a.Group.(time.Time)
		bt, bok := b.Group.(time.Time)
		if aok && bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			}
			return 0
		}
		as, bs := FieldText(a.Group), FieldText(b.Group)
		af, aerr := strconv.ParseFloat(as, 64)
		bf, berr := strconv.ParseFloat(bs, 64)
		if aerr == nil && berr == nil {
			return compareFloats(af, bf)
		}
		return compareStrings(as, bs)
	}
	return 0
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
