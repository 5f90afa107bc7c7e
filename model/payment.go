package model

import "time"

type PaymentType string

const (
	PaymentRental  PaymentType = "rental"
	PaymentOverdue PaymentType = "overdue"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentRejected PaymentStatus = "rejected"
)

// PaymentRequest rows are created and verified by the payments
// workflow; this service only reads them.
type PaymentRequest struct {
	ID        int64         `json:"id"`
	RentalID  int64         `json:"rental_id"`
	Type      PaymentType   `json:"type"`
	Status    PaymentStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// IsVerifiedOverdue reports whether the request settles an overdue fee.
func (p PaymentRequest) IsVerifiedOverdue() bool {
	return p.Type == PaymentOverdue && p.Status == PaymentVerified
}
