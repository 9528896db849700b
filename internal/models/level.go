package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Level is the reporting bucket derived from a student's year label.
type Level string

const (
	LevelCollege Level = "college"
	LevelJHS     Level = "jhs"
)

var collegeYears = map[string]struct{}{
	"1st year": {},
	"2nd year": {},
	"3rd year": {},
	"4th year": {},
}

// CollegeYears lists the labels classified as college, in display order.
func CollegeYears() []string {
	return []string{"1st year", "2nd year", "3rd year", "4th year"}
}

// LevelOf classifies a year label. Only the exact college labels map to
// LevelCollege; every other label, including malformed ones, is LevelJHS.
func LevelOf(year string) Level {
	if _, ok := collegeYears[year]; ok {
		return LevelCollege
	}
	return LevelJHS
}

// YearCount is an aggregate of attendance rows for one year label.
type YearCount struct {
	Year  string `db:"year"`
	Total int    `db:"total"`
}

// LevelTotals partitions attendance rows into the two level buckets.
type LevelTotals struct {
	College int `json:"college"`
	JHS     int `json:"jhs"`
}

// Add counts n rows for the given year label.
func (t *LevelTotals) Add(year string, n int) {
	if LevelOf(year) == LevelCollege {
		t.College += n
		return
	}
	t.JHS += n
}

// TallyLevels folds per-year counts into level totals.
func TallyLevels(counts []YearCount) LevelTotals {
	var totals LevelTotals
	for _, c := range counts {
		totals.Add(c.Year, c.Total)
	}
	return totals
}

// DayYearCount is an aggregate of attendance rows for one date and year label.
type DayYearCount struct {
	Date  string `db:"date"`
	Year  string `db:"year"`
	Total int    `db:"total"`
}

// WeekdayTotals holds both level buckets for one weekday.
type WeekdayTotals struct {
	College int `json:"College"`
	JHS     int `json:"JHS"`
}

// WeeklyBreakdown is indexed Monday (0) through Sunday (6). It encodes as a
// JSON object whose keys always appear in that order.
type WeeklyBreakdown [7]WeekdayTotals

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeekdayIndex maps a time.Weekday onto the Monday-first index.
func WeekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// Add counts n rows for the year label on weekday d.
func (w *WeeklyBreakdown) Add(d time.Weekday, year string, n int) {
	cell := &w[WeekdayIndex(d)]
	if LevelOf(year) == LevelCollege {
		cell.College += n
		return
	}
	cell.JHS += n
}

// Day returns the totals for weekday d.
func (w WeeklyBreakdown) Day(d time.Weekday) WeekdayTotals {
	return w[WeekdayIndex(d)]
}

// MarshalJSON implements json.Marshaler.
func (w WeeklyBreakdown) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, name := range weekdayNames {
		if i > 0 {
			buf.WriteByte(',')
		}
		cell, err := json.Marshal(w[i])
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(buf, "%q:%s", name, cell)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (w *WeeklyBreakdown) UnmarshalJSON(data []byte) error {
	var raw map[string]WeekdayTotals
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out WeeklyBreakdown
	for i, name := range weekdayNames {
		out[i] = raw[name]
	}
	*w = out
	return nil
}
