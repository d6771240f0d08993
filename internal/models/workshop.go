package models

import "time"

// Workshop is a recurring course offering with a weekly schedule.
type Workshop struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Discipline   string    `db:"discipline" json:"discipline"`
	DayOfWeek    int       `db:"day_of_week" json:"day_of_week"`
	StartTime    string    `db:"start_time" json:"start_time"`
	EndTime      string    `db:"end_time" json:"end_time"`
	Capacity     int       `db:"capacity" json:"capacity"`
	MonthlyPrice float64   `db:"monthly_price" json:"monthly_price"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// WorkshopAvailability reports computed seat usage for a workshop.
// Enrolled counts ACTIVE enrollments at read time; there is no stored
// running counter to drift.
type WorkshopAvailability struct {
	Workshop
	Enrolled  int `db:"enrolled" json:"enrolled"`
	Available int `json:"available"`
}

// WorkshopFilter provides filters for listing workshops.
type WorkshopFilter struct {
	Search    string
	Discipline string
	DayOfWeek *int
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
