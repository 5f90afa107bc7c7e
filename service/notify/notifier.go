package notify

import (
	"context"
	"log/slog"
)

// Event kinds pushed to users when a lifecycle transition commits.
const (
	KindReturnInitiated         = "return_initiated"
	KindReturnScheduleSelected  = "return_schedule_selected"
	KindReturnScheduleConfirmed = "return_schedule_confirmed"
	KindReturnSubmitted         = "return_submitted"
	KindReturnConfirmed         = "return_confirmed"
	KindPickupSubmitted         = "pickup_submitted"
	KindHandoverConfirmed       = "handover_confirmed"
	KindRentalOverdue           = "rental_overdue"
)

// Notifier is a fire-and-forget side channel. Implementations must not
// return errors to the caller; a failed delivery never affects the
// transition that triggered it.
type Notifier interface {
	Notify(ctx context.Context, recipientID int64, eventKind string, rentalID int64)
}

type logNotifier struct {
	log *slog.Logger
}

// NewLog returns a notifier that only records deliveries in the log.
// Used when no delivery channel is configured.
func NewLog(log *slog.Logger) Notifier { return &logNotifier{log: log} }

func (n *logNotifier) Notify(ctx context.Context, recipientID int64, eventKind string, rentalID int64) {
	n.log.Info("notify",
		"recipient_id", recipientID,
		"event_kind", eventKind,
		"rental_id", rentalID,
	)
}
