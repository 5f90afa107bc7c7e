package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Timeline event types written by rental lifecycle transitions.
const (
	EventReturnInitiated         = "return_initiated"
	EventReturnScheduleSelected  = "return_schedule_selected"
	EventReturnScheduleConfirmed = "return_schedule_confirmed"
	EventReturnSubmitted         = "return_submitted"
	EventReturnConfirmed         = "return_confirmed"
	EventPickupSubmitted         = "pickup_submitted"
	EventHandoverConfirmed       = "handover_confirmed"
)

// Metadata is the free-form JSONB payload attached to a timeline event.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	case nil:
		*m = nil
		return nil
	}
	return errors.New("metadata: unsupported scan source")
}

// TimelineEvent is one immutable audit entry for a rental. Rows are
// append-only; nothing updates or deletes them.
type TimelineEvent struct {
	ID        int64     `json:"id"`
	RentalID  int64     `json:"rental_id"`
	EventType string    `json:"event_type"`
	ActorID   int64     `json:"actor_id"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}
