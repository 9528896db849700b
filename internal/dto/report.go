package dto

// VisitorCount is the number of visits recorded today.
type VisitorCount struct {
	VisitorCount int `json:"visitor_count"`
}

// TotalVisitors is the number of visits recorded across all dates.
type TotalVisitors struct {
	TotalVisitors int `json:"total_visitors"`
}

// CurrentlyInside is the number of open visits.
type CurrentlyInside struct {
	CurrentlyInside int `json:"currently_inside"`
}

// TotalStudents is the roster size.
type TotalStudents struct {
	TotalStudents int `json:"total_students"`
}

// LevelScope restricts level totals to today or all dates.
type LevelScope string

const (
	LevelScopeToday LevelScope = "today"
	LevelScopeAll   LevelScope = "all"
)
