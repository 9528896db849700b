package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

func newAttendanceRepo(t *testing.T) (*AttendanceRepository, sqlmock.Sqlmock, func()) {
	db, mock, cleanup := newMock(t)
	repo := NewAttendanceRepository(db)
	repo.now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	return repo, mock, cleanup
}

func TestInsertOpenCreatesRow(t *testing.T) {
	repo, mock, cleanup := newAttendanceRepo(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO attendances .* ON CONFLICT \\(student_id, date\\) DO NOTHING").
		WithArgs(sqlmock.AnyArg(), "s1", "2024-05-01", "08:00:00", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))

	inserted, err := repo.InsertOpen(context.Background(), "s1", "2024-05-01", "08:00:00")
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOpenConflict(t *testing.T) {
	repo, mock, cleanup := newAttendanceRepo(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO attendances").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("INSERT INTO attendances").
		WillReturnError(&pq.Error{Code: "23505"})

	inserted, err := repo.InsertOpen(context.Background(), "s1", "2024-05-01", "08:00:00")
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = repo.InsertOpen(context.Background(), "s1", "2024-05-01", "08:00:01")
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestInsertOpenFailure(t *testing.T) {
	repo, mock, cleanup := newAttendanceRepo(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO attendances").WillReturnError(errors.New("connection reset"))

	_, err := repo.InsertOpen(context.Background(), "s1", "2024-05-01", "08:00:00")
	assert.Error(t, err)
}

func TestCloseOpen(t *testing.T) {
	repo, mock, cleanup := newAttendanceRepo(t)
	defer cleanup()

	query := "UPDATE attendances SET time_out = $3, updated_at = $4\n        WHERE student_id = $1 AND date = $2 AND time_out IS NULL"
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("s1", "2024-05-01", "12:00:00", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("s1", "2024-05-01", "12:00:05", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	closed, err := repo.CloseOpen(context.Background(), "s1", "2024-05-01", "12:00:00")
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = repo.CloseOpen(context.Background(), "s1", "2024-05-01", "12:00:05")
	require.NoError(t, err)
	assert.False(t, closed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAttendanceWithRange(t *testing.T) {
	repo, mock, cleanup := newAttendanceRepo(t)
	defer cleanup()

	out := "12:00:00"
	rows := sqlmock.NewRows([]string{"name", "year", "course", "date", "time_in", "time_out"}).
		AddRow("Ana Cruz", "1st year", "BSIT", "2024-05-01", "08:00:00", out).
		AddRow("Ben Lim", "Grade 7", "JHS", "2024-05-01", "08:05:00", nil)
	mock.ExpectQuery("WHERE a.date >= \\$1 AND a.date <= \\$2 ORDER BY a.date DESC, a.time_in DESC").
		WithArgs("2024-05-01", "2024-05-31").
		WillReturnRows(rows)

	entries, err := repo.List(context.Background(), models.AttendanceFilter{From: "2024-05-01", To: "2024-05-31"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].TimeOut)
	assert.Equal(t, out, *entries[0].TimeOut)
	assert.Nil(t, entries[1].TimeOut)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAttendanceUnbounded(t *testing.T) {
	repo, mock, cleanup := newAttendanceRepo(t)
	defer cleanup()

	mock.ExpectQuery("JOIN students s ON s.id = a.student_id ORDER BY a.date DESC").
		WithoutArgs().
		WillReturnRows(sqlmock.NewRows([]string{"name", "year", "course", "date", "time_in", "time_out"}))

	entries, err := repo.List(context.Background(), models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
