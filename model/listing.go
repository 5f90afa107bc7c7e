package model

import "time"

// Listing is owned by the listings workflow; this service reads the
// owner and flips the availability flag on handover and completion.
type Listing struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
}
