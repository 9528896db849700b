package models

import "time"

// Date and time layouts used by the attendance ledger.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Scan statuses reported to the scanning client.
const (
	ScanStatusCheckedIn  = "Checked In"
	ScanStatusCheckedOut = "Checked Out"
)

// ScanOutcome tells the three scan transitions apart.
type ScanOutcome string

const (
	ScanOutcomeCheckedIn         ScanOutcome = "checked_in"
	ScanOutcomeCheckedOut        ScanOutcome = "checked_out"
	ScanOutcomeAlreadyCheckedOut ScanOutcome = "already_checked_out"
)

// AttendanceRecord is one visit of a student on a calendar date.
// A nil TimeOut means the student is still inside.
type AttendanceRecord struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Date      string    `db:"date" json:"date"`
	TimeIn    *string   `db:"time_in" json:"time_in"`
	TimeOut   *string   `db:"time_out" json:"time_out"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AttendanceLogEntry is a ledger row joined with its student.
type AttendanceLogEntry struct {
	Name    string  `db:"name" json:"name"`
	Year    string  `db:"year" json:"year"`
	Course  string  `db:"course" json:"course"`
	Date    string  `db:"date" json:"date"`
	TimeIn  *string `db:"time_in" json:"time_in"`
	TimeOut *string `db:"time_out" json:"time_out"`
}

// AttendanceFilter bounds the attendance log by inclusive dates (YYYY-MM-DD).
type AttendanceFilter struct {
	From string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" validate:"omitempty,datetime=2006-01-02"`
}
