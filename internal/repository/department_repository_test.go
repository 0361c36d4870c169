package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func departmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "active", "created_at"})
}

func TestDepartmentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDepartmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, active, created_at FROM departments WHERE id = $1")).
		WithArgs("d1").
		WillReturnRows(departmentRows().AddRow("d1", "Engineering", true, time.Now()))

	department, err := repo.FindByID(context.Background(), "d1")
	require.NoError(t, err)
	require.Equal(t, "Engineering", department.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDepartmentRepository(db)
	mock.ExpectQuery("FROM departments WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryListActiveOnly(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDepartmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM departments WHERE active = true ORDER BY id ASC")).
		WillReturnRows(departmentRows().AddRow("d1", "Engineering", true, time.Now()))

	departments, err := repo.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, departments, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDepartmentRepository(db)
	rows := departmentRows().
		AddRow("d1", "Engineering", true, time.Now()).
		AddRow("d2", "Closed Faculty", false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM departments ORDER BY id ASC")).
		WillReturnRows(rows)

	departments, err := repo.List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, departments, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}
