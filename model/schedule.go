package model

import "time"

// ReturnSchedule is a proposed return appointment. Superseded rows are
// deselected, never deleted; at most one row per rental is selected.
type ReturnSchedule struct {
	ID             int64     `json:"id"`
	RentalID       int64     `json:"rental_id"`
	ReturnDatetime time.Time `json:"return_datetime"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	IsSelected     bool      `json:"is_selected"`
	IsConfirmed    bool      `json:"is_confirmed"`
	CreatedAt      time.Time `json:"created_at"`
}
