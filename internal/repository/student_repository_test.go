package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

var studentRowColumns = []string{"id", "code", "name", "course", "year", "adviser", "created_at", "updated_at"}

func TestStudentRepositoryListWithSearch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(studentRowColumns).
		AddRow("1", "S-001", "Ana Cruz", "BSIT", "1st year", "Mr. Reyes", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + studentColumns + " FROM students WHERE (LOWER(name) LIKE $1 OR LOWER(code) LIKE $1) ORDER BY year DESC")).
		WithArgs("%ana%").
		WillReturnRows(rows)

	students, err := repo.List(context.Background(), models.StudentFilter{Search: "Ana", SortBy: "year", SortOrder: "desc"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "S-001", students[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListDefaultsSort(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + studentColumns + " FROM students ORDER BY name ASC")).
		WillReturnRows(sqlmock.NewRows(studentRowColumns))

	students, err := repo.List(context.Background(), models.StudentFilter{SortBy: "id; DROP TABLE students"})
	require.NoError(t, err)
	assert.Empty(t, students)
	assert.NotNil(t, students)
}

func TestStudentRepositoryFindByCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE code = $1")).
		WithArgs("S-404").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByCode(context.Background(), "S-404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), "S-001", "Ana Cruz", "BSIT", "1st year", "Mr. Reyes", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{Code: "S-001", Name: "Ana Cruz", Course: "BSIT", Year: "1st year", Adviser: "Mr. Reyes"}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateDuplicateCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Student{Code: "S-001"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestStudentRepositoryExistsByCodeExcludingSelf(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE code = $1 AND id <> $2 LIMIT 1")).
		WithArgs("S-001", "1").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByCode(context.Background(), "S-001", "1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStudentRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM students WHERE LOWER(name) = LOWER($1))")).
		WithArgs("ana cruz").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByName(context.Background(), "ana cruz")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStudentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE id = $1")).
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "nope"), sql.ErrNoRows)
}
