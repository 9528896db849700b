package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

// AttendanceRepository persists the attendance ledger. At most one row exists
// per (student_id, date); the unique constraint settles concurrent scans.
type AttendanceRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db, now: time.Now}
}

// InsertOpen records a check-in. It returns false without error when a row
// for the student and date already exists.
func (r *AttendanceRepository) InsertOpen(ctx context.Context, studentID, date, timeIn string) (bool, error) {
	const query = `INSERT INTO attendances (id, student_id, date, time_in, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        ON CONFLICT (student_id, date) DO NOTHING
        RETURNING id`
	var id string
	err := r.db.GetContext(ctx, &id, query, uuid.NewString(), studentID, date, timeIn, r.now().UTC())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows), isUniqueViolation(err):
		return false, nil
	default:
		return false, fmt.Errorf("insert attendance: %w", err)
	}
}

// CloseOpen sets time_out on the student's open row for date. It returns false
// when no open row exists.
func (r *AttendanceRepository) CloseOpen(ctx context.Context, studentID, date, timeOut string) (bool, error) {
	const query = `UPDATE attendances SET time_out = $3, updated_at = $4
        WHERE student_id = $1 AND date = $2 AND time_out IS NULL
        RETURNING id`
	var id string
	err := r.db.GetContext(ctx, &id, query, studentID, date, timeOut, r.now().UTC())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("close attendance: %w", err)
	}
}

// List returns ledger rows joined with their students, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceLogEntry, error) {
	base := `SELECT s.name, s.year, s.course, to_char(a.date, 'YYYY-MM-DD') AS date,
        to_char(a.time_in, 'HH24:MI:SS') AS time_in, to_char(a.time_out, 'HH24:MI:SS') AS time_out
        FROM attendances a JOIN students s ON s.id = a.student_id`
	var conditions []string
	var args []interface{}
	if filter.From != "" {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)))
	}
	if filter.To != "" {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}
	query := base + " ORDER BY a.date DESC, a.time_in DESC"

	entries := make([]models.AttendanceLogEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list attendances: %w", err)
	}
	return entries, nil
}
