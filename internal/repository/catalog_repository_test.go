package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCatalogRepositoryGroup(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "level_id"}).
		AddRow("G-L3-A", "L3 Group A", "L3")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, level_id FROM groups WHERE id = $1")).
		WithArgs("G-L3-A").
		WillReturnRows(rows)

	group, err := repo.Group(context.Background(), "G-L3-A")
	require.NoError(t, err)
	assert.Equal(t, "L3 Group A", group.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryGroupDepartment(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery("SELECT s.department_id").
		WithArgs("G-L3-A").
		WillReturnRows(sqlmock.NewRows([]string{"department_id"}).AddRow("D1"))

	departmentID, err := repo.GroupDepartment(context.Background(), "G-L3-A")
	require.NoError(t, err)
	assert.Equal(t, "D1", departmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryGroupIDsByDepartment(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	rows := sqlmock.NewRows([]string{"id"}).AddRow("G-L3-A").AddRow("G-L3-B")
	mock.ExpectQuery("SELECT g.id").
		WithArgs("D1").
		WillReturnRows(rows)

	ids, err := repo.GroupIDsByDepartment(context.Background(), "D1")
	require.NoError(t, err)
	assert.Equal(t, []string{"G-L3-A", "G-L3-B"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
