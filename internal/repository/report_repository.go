package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

// ReportRepository runs read-only aggregates over the attendance ledger.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs a ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// CountOnDate counts ledger rows for a date.
func (r *ReportRepository) CountOnDate(ctx context.Context, date string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM attendances WHERE date = $1`, date); err != nil {
		return 0, fmt.Errorf("count attendances on date: %w", err)
	}
	return total, nil
}

// CountAll counts every ledger row.
func (r *ReportRepository) CountAll(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM attendances`); err != nil {
		return 0, fmt.Errorf("count attendances: %w", err)
	}
	return total, nil
}

// CountOpen counts rows without time_out. An empty date counts across all dates.
func (r *ReportRepository) CountOpen(ctx context.Context, date string) (int, error) {
	query := `SELECT COUNT(*) FROM attendances WHERE time_out IS NULL`
	var args []interface{}
	if date != "" {
		query += ` AND date = $1`
		args = append(args, date)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count open attendances: %w", err)
	}
	return total, nil
}

// CountByYear groups ledger rows by the student's year label. An empty date
// aggregates across all dates.
func (r *ReportRepository) CountByYear(ctx context.Context, date string) ([]models.YearCount, error) {
	query := `SELECT s.year, COUNT(*) AS total FROM attendances a JOIN students s ON s.id = a.student_id`
	var args []interface{}
	if date != "" {
		query += ` WHERE a.date = $1`
		args = append(args, date)
	}
	query += ` GROUP BY s.year`

	counts := make([]models.YearCount, 0)
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count attendances by year: %w", err)
	}
	return counts, nil
}

// CountByDateAndYear groups rows within [from, to] by date and year label.
func (r *ReportRepository) CountByDateAndYear(ctx context.Context, from, to string) ([]models.DayYearCount, error) {
	const query = `SELECT to_char(a.date, 'YYYY-MM-DD') AS date, s.year, COUNT(*) AS total
        FROM attendances a JOIN students s ON s.id = a.student_id
        WHERE a.date BETWEEN $1 AND $2
        GROUP BY a.date, s.year
        ORDER BY a.date`
	counts := make([]models.DayYearCount, 0)
	if err := r.db.SelectContext(ctx, &counts, query, from, to); err != nil {
		return nil, fmt.Errorf("count attendances by date and year: %w", err)
	}
	return counts, nil
}
