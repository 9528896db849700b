package models

import "time"

// Student is a roster entry. Code is the external identifier printed on the
// QR card and is unique across the roster.
type Student struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"student_id"`
	Name      string    `db:"name" json:"name"`
	Course    string    `db:"course" json:"course"`
	Year      string    `db:"year" json:"year"`
	Adviser   string    `db:"adviser" json:"adviser"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	SortBy    string
	SortOrder string
}
