package metric

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
	"github.com/aevon-lab/aevon-metrics/internal/core/aggregation"
	"github.com/aevon-lab/aevon-metrics/internal/core/storage"
	"github.com/aevon-lab/aevon-metrics/internal/core/storage/memory"
	storagemocks "github.com/aevon-lab/aevon-metrics/internal/mocks/storage"
	"github.com/aevon-lab/aevon-metrics/internal/reference"
)

var testNow = time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	svc        *Service
	timeseries *memory.Store
	mirror     *memory.Store
	repo       *reference.StaticRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ts := memory.New(false)
	mirror := memory.New(true)
	repo := reference.NewStaticRepository(
		[]reference.MetricType{
			{ID: "type-steps", Code: "steps", CategoryID: "cat-activity", Unit: "count", Factor: 1, Version: 2},
			{ID: "type-hr", Code: "heart_rate", CategoryID: "cat-vitals", Unit: "bpm", Factor: 1, Version: 1},
		},
		[]reference.MetricCategory{
			{ID: "cat-activity", Code: "activity"},
			{ID: "cat-vitals", Code: "vitals"},
		},
	)

	svc := NewService(ts, mirror, reference.NewResolver(repo, 64), aggregation.NewEngine(ts, false), prometheus.NewRegistry(), 1)
	svc.now = func() time.Time { return testNow }
	seq := 0
	var mu sync.Mutex
	svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("gen-%d", seq)
	}
	return &testEnv{svc: svc, timeseries: ts, mirror: mirror, repo: repo}
}

func input(code string, value float64, takenAt time.Time) v1.MetricInput {
	return v1.MetricInput{
		OrgID:          "org-1",
		UserID:         "user-1",
		MetricTypeCode: code,
		Value:          &value,
		TakenAt:        takenAt,
	}
}

func TestService_CreateResolvesCodesOncePerBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	at := testNow.Add(-time.Hour)
	created, err := env.svc.Create(ctx, []v1.MetricInput{
		input("steps", 100, at),
		input("steps", 200, at.Add(time.Minute)),
		input("heart_rate", 61, at),
	})
	require.NoError(t, err)
	require.Len(t, created, 3)
	require.Equal(t, 1, env.repo.CallCount(), "one batched code lookup")

	m := created[0]
	require.Equal(t, "gen-1", m.ID)
	require.Equal(t, "type-steps", m.MetricTypeID)
	require.Equal(t, 2, m.MetricTypeVersion)
	require.Equal(t, "cat-activity", m.MetricCategoryID)
	require.Equal(t, testNow, m.RecordedAt)
	require.False(t, m.IsDeleted)

	require.Equal(t, 3, env.timeseries.Len())
	require.Equal(t, 3, env.mirror.Len())
}

func TestService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		inputs []v1.MetricInput
		field  string
	}{
		{name: "empty batch", inputs: nil, field: "metrics"},
		{
			name: "type id and code both set",
			inputs: []v1.MetricInput{func() v1.MetricInput {
				in := input("steps", 1, testNow)
				in.MetricTypeID = "type-steps"
				return in
			}()},
			field: "[0].metricTypeId",
		},
		{name: "unknown code", inputs: []v1.MetricInput{input("steps", 1, testNow), input("nope", 1, testNow)}, field: "[1].metricTypeCode"},
		{
			name: "too much metadata",
			inputs: []v1.MetricInput{func() v1.MetricInput {
				in := input("steps", 1, testNow)
				in.Metadata = map[string]interface{}{}
				for i := 0; i <= v1.MaxMetadataEntries; i++ {
					in.Metadata[fmt.Sprintf("k%d", i)] = "v"
				}
				return in
			}()},
			field: "[0].metadata",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Create(ctx, tt.inputs)
			var verr *v1.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tt.field, verr.Field)
		})
	}
	require.Equal(t, 0, env.timeseries.Len())
	require.Equal(t, 0, env.mirror.Len())
}

func TestService_UpdateReplacesMetadataWholesale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := input("steps", 5, testNow)
	in.ID = "m-1"
	in.Metadata = map[string]interface{}{"source": "watch", "battery": 80.0}
	_, err := env.svc.Create(ctx, []v1.MetricInput{in})
	require.NoError(t, err)

	v := 6.0
	m, err := env.svc.Update(ctx, "m-1", v1.MetricPatch{Value: &v})
	require.NoError(t, err)
	require.Equal(t, in.Metadata, m.Metadata, "nil metadata leaves the map untouched")

	m, err = env.svc.Update(ctx, "m-1", v1.MetricPatch{Metadata: map[string]interface{}{"source": "phone"}})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"source": "phone"}, m.Metadata)

	mirrored, err := env.mirror.Read(ctx, "m-1")
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"source": "phone"}, mirrored.Metadata)
	require.Equal(t, 6.0, mirrored.Value)

	m, err = env.svc.Update(ctx, "m-1", v1.MetricPatch{Metadata: map[string]interface{}{}})
	require.NoError(t, err)
	require.Empty(t, m.Metadata)
}

func TestService_UpsertIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := input("steps", 10, testNow)
	in.ID = "m-1"
	_, err := env.svc.Upsert(ctx, []v1.MetricInput{in})
	require.NoError(t, err)

	v := 11.0
	in.Value = &v
	out, err := env.svc.Upsert(ctx, []v1.MetricInput{in, input("steps", 3, testNow)})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "m-1", out[0].ID)
	require.Equal(t, 11.0, out[0].Value)
	require.Equal(t, 2, out[0].MetricTypeVersion, "update never rewrites the pinned version")

	require.Equal(t, 2, env.timeseries.Len())
	require.Equal(t, 2, env.mirror.Len())
}

func TestService_ConcurrentUpsertLastWriteWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	errs := make(chan error, 16)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := input("steps", float64(i), testNow)
			in.ID = "m-shared"
			in.Metadata = map[string]interface{}{"writer": float64(i)}
			_, err := env.svc.Upsert(ctx, []v1.MetricInput{in})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, 1, env.timeseries.Len())
	require.Equal(t, 1, env.mirror.Len())

	m, err := env.svc.Read(ctx, "m-shared")
	require.NoError(t, err)
	require.GreaterOrEqual(t, m.Value, 0.0)
	require.Less(t, m.Value, 16.0)
	// Metadata comes whole from a single writer, never a merge.
	require.Equal(t, map[string]interface{}{"writer": m.Value}, m.Metadata)
}

func TestService_SoftDeleteVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := input("heart_rate", 70, testNow)
	in.ID = "m-1"
	_, err := env.svc.Create(ctx, []v1.MetricInput{in, input("heart_rate", 72, testNow)})
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, "m-1"))

	_, err = env.svc.Read(ctx, "m-1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	page, err := env.svc.Search(ctx, v1.SearchFilters{OrgID: "org-1"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	require.ErrorIs(t, env.svc.Delete(ctx, "m-1"), storage.ErrNotFound)

	// Nothing is hard-deleted.
	require.Equal(t, 2, env.timeseries.Len())
	require.Equal(t, 2, env.mirror.Len())
}

func TestService_UpsertReusedIDAfterDeleteAgreesAcrossStores(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := input("steps", 100, testNow.Add(-time.Hour))
	first.ID = "m-1"
	_, err := env.svc.Upsert(ctx, []v1.MetricInput{first})
	require.NoError(t, err)
	require.NoError(t, env.svc.Delete(ctx, "m-1"))

	second := input("heart_rate", 64, testNow)
	second.ID = "m-1"
	second.OrgID = "org-2"
	out, err := env.svc.Upsert(ctx, []v1.MetricInput{second})
	require.NoError(t, err)
	require.Equal(t, "type-hr", out[0].MetricTypeID)

	ts, err := env.timeseries.Read(ctx, "m-1")
	require.NoError(t, err)
	mirrored, err := env.mirror.Read(ctx, "m-1")
	require.NoError(t, err)
	require.Equal(t, ts, mirrored)
	require.Equal(t, "org-2", mirrored.OrgID)
	require.Equal(t, "type-hr", mirrored.MetricTypeID)
	require.Equal(t, "cat-vitals", mirrored.MetricCategoryID)
	require.Equal(t, 1, mirrored.MetricTypeVersion)

	// The old org no longer sees the id in either store.
	for _, store := range []*memory.Store{env.timeseries, env.mirror} {
		page, err := store.Search(ctx, v1.SearchFilters{OrgID: "org-1"})
		require.NoError(t, err)
		require.Empty(t, page.Items)
	}
}

func TestService_SearchResolvesCodesAndEnriches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, []v1.MetricInput{
		input("steps", 1, testNow),
		input("heart_rate", 60, testNow),
	})
	require.NoError(t, err)

	page, err := env.svc.Search(ctx, v1.SearchFilters{OrgID: "org-1", MetricTypeCodes: []string{"heart_rate"}, IncludeTotal: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Nil(t, page.Total)
	require.Equal(t, "heart_rate", page.Items[0].MetricTypeCode)
	require.Equal(t, "vitals", page.Items[0].MetricCategoryCode)

	page, err = env.svc.Search(ctx, v1.SearchFilters{
		OrgID:           "org-1",
		MetricTypeCodes: []string{"heart_rate"},
		MetricTypeIDs:   []string{"type-steps"},
	})
	require.NoError(t, err)
	require.Empty(t, page.Items, "codes and ids intersect")

	_, err = env.svc.Search(ctx, v1.SearchFilters{})
	var verr *v1.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestService_AggregateAttachesTypeCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	_, err := env.svc.Create(ctx, []v1.MetricInput{
		input("steps", 1, day.Add(time.Hour)),
		input("steps", 2, day.Add(2*time.Hour)),
		input("steps", 4, day.Add(26*time.Hour)),
	})
	require.NoError(t, err)

	res, err := env.svc.Aggregate(ctx, aggregation.Request{
		Filters:           v1.SearchFilters{OrgID: "org-1", MetricTypeCodes: []string{"steps"}},
		Column:            v1.FieldTakenAt,
		ColumnAggregation: "1d",
		RowAggregation:    aggregation.FuncAvg,
	})
	require.NoError(t, err)
	require.Len(t, res.Buckets, 2)
	require.Equal(t, "steps", res.Buckets[0].MetricTypeCode)
	require.Equal(t, day, res.Buckets[0].Group)
	require.Equal(t, 1.5, *res.Buckets[0].Value)
	require.Equal(t, int64(2), res.Buckets[0].Count)

	res, err = env.svc.Aggregate(ctx, aggregation.Request{
		Filters:        v1.SearchFilters{OrgID: "org-1", MetricTypeCodes: []string{"unknown"}},
		Column:         v1.FieldUserID,
		RowAggregation: aggregation.FuncCount,
	})
	require.NoError(t, err)
	require.Empty(t, res.Buckets)
	require.Equal(t, v1.FieldUserID, res.Column)
}

func TestService_GetMetricCodeMaps(t *testing.T) {
	env := newTestEnv(t)

	maps, err := env.svc.GetMetricCodeMaps(context.Background(), []*v1.Metric{
		{MetricTypeID: "type-steps", MetricCategoryID: "cat-activity"},
		{MetricTypeID: "type-hr", MetricCategoryID: "cat-vitals"},
		{MetricTypeID: "type-steps", MetricCategoryID: "cat-activity"},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"type-steps": "steps", "type-hr": "heart_rate"}, maps.Types)
	require.Equal(t, map[string]string{"cat-activity": "activity", "cat-vitals": "vitals"}, maps.Categories)
	require.Equal(t, 2, env.repo.CallCount())
}

func TestService_MirrorFailureIsNotRolledBack(t *testing.T) {
	ts := memory.New(false)
	mirror := storagemocks.NewMetricStore(t)
	mirror.EXPECT().
		Create(mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused")).
		Once()

	reg := prometheus.NewRegistry()
	repo := reference.NewStaticRepository([]reference.MetricType{{ID: "type-steps", Code: "steps", Version: 1}}, nil)
	svc := NewService(ts, mirror, reference.NewResolver(repo, 8), aggregation.NewEngine(ts, false), reg, 1)

	_, err := svc.Create(context.Background(), []v1.MetricInput{input("steps", 1, testNow)})
	require.EqualError(t, err, "connection refused")
	require.Equal(t, 1, ts.Len(), "time-series write is kept")
	require.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.writeFailures.WithLabelValues("mirror", "create")))
	require.Equal(t, 0.0, testutil.ToFloat64(svc.metrics.writeFailures.WithLabelValues("timeseries", "create")))
}

func TestService_NotFoundIsNotCountedAsFailure(t *testing.T) {
	env := newTestEnv(t)
	v := 1.0
	_, err := env.svc.Update(context.Background(), "missing", v1.MetricPatch{Value: &v})
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.Equal(t, 0.0, testutil.ToFloat64(env.svc.metrics.writeFailures.WithLabelValues("timeseries", "update")))
}
