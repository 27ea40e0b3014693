package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testRepository() *StaticRepository {
	return NewStaticRepository(
		[]MetricType{
			{ID: "type-steps", Code: "steps", CategoryID: "cat-activity", Unit: "count", Factor: 1, Version: 2},
			{ID: "type-hr", Code: "heart_rate", CategoryID: "cat-vitals", Unit: "bpm", Factor: 1, Version: 1},
		},
		[]MetricCategory{
			{ID: "cat-activity", Code: "activity"},
			{ID: "cat-vitals", Code: "vitals"},
		},
	)
}

func TestResolver_TypesByCodeBatchesAndCaches(t *testing.T) {
	ctx := context.Background()
	repo := testRepository()
	r := NewResolver(repo, 16)

	got, err := r.TypesByCode(ctx, []string{"steps", "heart_rate", "steps", "", "unknown"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "type-steps", got["steps"].ID)
	require.Equal(t, 1, repo.CallCount())

	// Cached by code and by id.
	_, err = r.TypesByCode(ctx, []string{"steps"})
	require.NoError(t, err)
	byID, err := r.Types(ctx, []string{"type-hr"})
	require.NoError(t, err)
	require.Equal(t, "heart_rate", byID["type-hr"].Code)
	require.Equal(t, 1, repo.CallCount())

	// Unknown codes are not negatively cached.
	_, err = r.TypesByCode(ctx, []string{"unknown"})
	require.NoError(t, err)
	require.Equal(t, 2, repo.CallCount())
}

func TestResolver_Categories(t *testing.T) {
	ctx := context.Background()
	repo := testRepository()
	r := NewResolver(repo, 16)

	byCode, err := r.CategoriesByCode(ctx, []string{"vitals"})
	require.NoError(t, err)
	require.Equal(t, "cat-vitals", byCode["vitals"].ID)

	byID, err := r.Categories(ctx, []string{"cat-vitals", "cat-activity"})
	require.NoError(t, err)
	require.Len(t, byID, 2)
	require.Equal(t, 2, repo.CallCount())
}

func TestResolver_HandleDeletionEvictsByIDAndCode(t *testing.T) {
	ctx := context.Background()
	repo := testRepository()
	r := NewResolver(repo, 16)

	_, err := r.TypesByCode(ctx, []string{"steps"})
	require.NoError(t, err)
	require.Equal(t, 1, repo.CallCount())

	require.NoError(t, r.HandleDeletion(ctx, []byte(`{"kind":"type","id":"type-steps"}`)))

	_, err = r.Types(ctx, []string{"type-steps"})
	require.NoError(t, err)
	_, err = r.TypesByCode(ctx, []string{"steps"})
	require.NoError(t, err)
	require.Equal(t, 2, repo.CallCount(), "by-id miss refills both keys")

	require.Error(t, r.HandleDeletion(ctx, []byte(`{`)))
	require.Error(t, r.HandleDeletion(ctx, []byte(`{"kind":"type"}`)))
}

type failingRepository struct{ StaticRepository }

func (*failingRepository) FindTypesByCode(ctx context.Context, codes []string) ([]MetricType, error) {
	return nil, errors.New("connection refused")
}

func TestResolver_RepositoryErrorIsWrapped(t *testing.T) {
	r := NewResolver(&failingRepository{}, 16)
	_, err := r.TypesByCode(context.Background(), []string{"steps"})
	require.ErrorContains(t, err, "failed to find metric types by code: connection refused")
}
