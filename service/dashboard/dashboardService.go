package dashboard

import (
	"context"
	"time"

	"github.com/stevegwapss/lendworks/model"
	"github.com/stevegwapss/lendworks/util/clock"
)

// RentalLister is the slice of the rental repository this read model needs.
type RentalLister interface {
	ListForLender(ctx context.Context, lenderID int64) ([]model.Rental, error)
}

// PaymentLister returns a lender's payment requests keyed by rental ID.
type PaymentLister interface {
	ListForLender(ctx context.Context, lenderID int64) (map[int64][]model.PaymentRequest, error)
}

// Bucket is a derived, read-only classification of a rental. It is
// never persisted; dashboards recompute it on every read.
type Bucket string

const (
	BucketCompleted   Bucket = "completed"
	BucketOverdue     Bucket = "overdue"
	BucketPaidOverdue Bucket = "paid_overdue"
	BucketPayments    Bucket = "payments"
	BucketApproved    Bucket = "approved"
	BucketToHandover  Bucket = "to_handover"
)

// Classify maps one rental to exactly one bucket. First match wins:
// completed variants, then overdue split on a verified overdue
// payment, then approved split on any payment request, then the
// handover pair, otherwise the raw status. Listing and counting both
// go through this function so they can never drift apart.
func Classify(r model.Rental, payments []model.PaymentRequest, now time.Time) Bucket {
	if r.Status.IsCompleted() {
		return BucketCompleted
	}

	if r.Status == model.RentalActive && r.EndDate.Before(now) {
		for _, p := range payments {
			if p.IsVerifiedOverdue() {
				return BucketPaidOverdue
			}
		}
		return BucketOverdue
	}

	if r.Status == model.RentalApproved {
		if len(payments) > 0 {
			return BucketPayments
		}
		return BucketApproved
	}

	if r.Status == model.RentalToHandover || r.Status == model.RentalPendingProof {
		return BucketToHandover
	}

	return Bucket(r.Status)
}

// Entry pairs a rental with its payment requests for the UI.
type Entry struct {
	Rental   model.Rental           `json:"rental_request"`
	Payments []model.PaymentRequest `json:"payment_requests,omitempty"`
}

// View is the lender dashboard payload: rentals grouped by bucket and
// the per-bucket counts, both derived from the same classification.
type View struct {
	Groups map[Bucket][]Entry `json:"grouped_rentals"`
	Counts map[Bucket]int     `json:"rental_stats"`
	Total  int                `json:"total"`
}

type Service interface {
	View(ctx context.Context, lenderID int64) (*View, error)
}

type service struct {
	rentals  RentalLister
	payments PaymentLister
	clk      clock.Clock
}

func New(rentals RentalLister, payments PaymentLister, clk clock.Clock) Service {
	return &service{rentals: rentals, payments: payments, clk: clk}
}

func (s *service) View(ctx context.Context, lenderID int64) (*View, error) {
	rentals, err := s.rentals.ListForLender(ctx, lenderID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListForLender(ctx, lenderID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	view := &View{
		Groups: make(map[Bucket][]Entry),
		Counts: make(map[Bucket]int),
		Total:  len(rentals),
	}
	for _, r := range rentals {
		b := Classify(r, payments[r.ID], now)
		view.Groups[b] = append(view.Groups[b], Entry{Rental: r, Payments: payments[r.ID]})
		view.Counts[b]++
	}
	return view, nil
}
