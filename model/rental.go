// model/rental.go
package model

import "time"

type RentalStatus string

const (
	RentalPending                   RentalStatus = "pending"
	RentalApproved                  RentalStatus = "approved"
	RentalToHandover                RentalStatus = "to_handover"
	RentalPendingProof              RentalStatus = "pending_proof"
	RentalActive                    RentalStatus = "active"
	RentalPendingReturn             RentalStatus = "pending_return"
	RentalReturnScheduled           RentalStatus = "return_scheduled"
	RentalPendingReturnConfirmation RentalStatus = "pending_return_confirmation"
	RentalCompleted                 RentalStatus = "completed"
	RentalCompletedPendingPayments  RentalStatus = "completed_pending_payments"
	RentalCompletedWithPayments     RentalStatus = "completed_with_payments"
	RentalRejected                  RentalStatus = "rejected"
	RentalCancelled                 RentalStatus = "cancelled"
	RentalDisputed                  RentalStatus = "disputed"
)

// transitions is the closed set of legal status changes. Anything not
// listed here is rejected, there is no ad-hoc status write path.
var transitions = map[RentalStatus][]RentalStatus{
	RentalPending:                   {RentalApproved, RentalRejected, RentalCancelled},
	RentalApproved:                  {RentalToHandover, RentalCancelled},
	RentalToHandover:                {RentalPendingProof, RentalCancelled},
	RentalPendingProof:              {RentalActive, RentalCancelled},
	RentalActive:                    {RentalPendingReturn, RentalDisputed},
	RentalPendingReturn:             {RentalReturnScheduled, RentalPendingReturnConfirmation, RentalDisputed},
	RentalReturnScheduled:           {RentalReturnScheduled, RentalPendingReturnConfirmation, RentalDisputed},
	RentalPendingReturnConfirmation: {RentalCompleted, RentalCompletedPendingPayments, RentalDisputed},
	RentalCompletedPendingPayments:  {RentalCompletedWithPayments},
	RentalDisputed:                  {RentalCompleted, RentalCancelled},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to RentalStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions leave the status.
func (s RentalStatus) IsTerminal() bool {
	switch s {
	case RentalCompleted, RentalCompletedWithPayments, RentalRejected, RentalCancelled:
		return true
	}
	return false
}

// IsCompleted reports whether the status is a completed variant,
// regardless of outstanding payments.
func (s RentalStatus) IsCompleted() bool {
	switch s {
	case RentalCompleted, RentalCompletedPendingPayments, RentalCompletedWithPayments:
		return true
	}
	return false
}

type Rental struct {
	ID           int64        `json:"id"`
	ListingID    int64        `json:"listing_id"`
	RenterID     int64        `json:"renter_id"`
	Status       RentalStatus `json:"status"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      time.Time    `json:"end_date"`
	ReturnAt     *time.Time   `json:"return_at,omitempty"`
	ReasonID     *int64       `json:"reason_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	ListingTitle string       `json:"listing_title,omitempty"`
	LenderID     int64        `json:"lender_id,omitempty"`
}
