package reference

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepository_FindTypesByCode(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryTypesByCode)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "category_id", "unit", "factor", "version"}).
			AddRow("type-steps", "steps", "cat-activity", "count", 1.0, 2))

	repo := NewPostgresRepository(db)
	types, err := repo.FindTypesByCode(context.Background(), []string{"steps"})
	require.NoError(t, err)
	require.Equal(t, []MetricType{{
		ID: "type-steps", Code: "steps", CategoryID: "cat-activity", Unit: "count", Factor: 1, Version: 2,
	}}, types)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ReadCategories(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryCategoriesByID)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).
			AddRow("cat-1", "activity").
			AddRow("cat-2", "vitals"))

	repo := NewPostgresRepository(db)
	categories, err := repo.ReadCategories(context.Background(), []string{"cat-1", "cat-2"})
	require.NoError(t, err)
	require.Len(t, categories, 2)
	require.Equal(t, "vitals", categories[1].Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_EmptyKeysSkipQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepository(db)
	types, err := repo.ReadTypes(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, types)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryCategoriesByCode)).
		WillReturnError(errors.New("relation \"metric_categories\" does not exist"))

	repo := NewPostgresRepository(db)
	_, err = repo.FindCategoriesByCode(context.Background(), []string{"x"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
