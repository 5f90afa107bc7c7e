package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stevegwapss/lendworks/model"
	"github.com/stevegwapss/lendworks/util/clock"
)

var now0 = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func rental(id int64, status model.RentalStatus, endDate time.Time) model.Rental {
	return model.Rental{
		ID: id, ListingID: id, RenterID: 1, LenderID: 2,
		Status: status, StartDate: endDate.AddDate(0, 0, -7), EndDate: endDate,
	}
}

func TestClassify_Precedence(t *testing.T) {
	past := now0.AddDate(0, 0, -1)
	future := now0.AddDate(0, 0, 1)
	verifiedOverdue := []model.PaymentRequest{{Type: model.PaymentOverdue, Status: model.PaymentVerified}}
	pendingRental := []model.PaymentRequest{{Type: model.PaymentRental, Status: model.PaymentPending}}

	cases := []struct {
		name     string
		r        model.Rental
		payments []model.PaymentRequest
		want     Bucket
	}{
		{"completed", rental(1, model.RentalCompleted, past), nil, BucketCompleted},
		{"completed pending payments", rental(2, model.RentalCompletedPendingPayments, past), pendingRental, BucketCompleted},
		{"completed with payments", rental(3, model.RentalCompletedWithPayments, past), verifiedOverdue, BucketCompleted},
		{"active overdue unpaid", rental(4, model.RentalActive, past), nil, BucketOverdue},
		{"active overdue paid", rental(5, model.RentalActive, past), verifiedOverdue, BucketPaidOverdue},
		{"active overdue pending payment only", rental(6, model.RentalActive, past), pendingRental, BucketOverdue},
		{"active on time", rental(7, model.RentalActive, future), nil, Bucket("active")},
		{"approved with payment", rental(8, model.RentalApproved, future), pendingRental, BucketPayments},
		{"approved without payment", rental(9, model.RentalApproved, future), nil, BucketApproved},
		{"to_handover", rental(10, model.RentalToHandover, future), nil, BucketToHandover},
		{"pending_proof", rental(11, model.RentalPendingProof, future), nil, BucketToHandover},
		{"pending_return passthrough", rental(12, model.RentalPendingReturn, past), nil, Bucket("pending_return")},
		{"disputed passthrough", rental(13, model.RentalDisputed, past), nil, Bucket("disputed")},
	}
	for _, c := range cases {
		if got := Classify(c.r, c.payments, now0); got != c.want {
			t.Errorf("%s: got %q want %q", c.name, got, c.want)
		}
	}
}

type rentalsStub struct {
	rows []model.Rental
}

func (s *rentalsStub) ListForLender(ctx context.Context, lenderID int64) ([]model.Rental, error) {
	return s.rows, nil
}

type paymentsStub struct {
	byRental map[int64][]model.PaymentRequest
}

func (s *paymentsStub) ListForLender(ctx context.Context, lenderID int64) (map[int64][]model.PaymentRequest, error) {
	return s.byRental, nil
}

func TestView_CountsMatchGroups(t *testing.T) {
	past := now0.AddDate(0, 0, -1)
	future := now0.AddDate(0, 0, 1)

	rows := []model.Rental{
		rental(1, model.RentalActive, past),
		rental(2, model.RentalActive, past),
		rental(3, model.RentalActive, future),
		rental(4, model.RentalApproved, future),
		rental(5, model.RentalApproved, future),
		rental(6, model.RentalToHandover, future),
		rental(7, model.RentalPendingReturn, future),
		rental(8, model.RentalCompleted, past),
		rental(9, model.RentalCompletedWithPayments, past),
		rental(10, model.RentalCancelled, past),
	}
	payments := map[int64][]model.PaymentRequest{
		2: {{RentalID: 2, Type: model.PaymentOverdue, Status: model.PaymentVerified}},
		4: {{RentalID: 4, Type: model.PaymentRental, Status: model.PaymentPending}},
	}

	svc := New(&rentalsStub{rows: rows}, &paymentsStub{byRental: payments}, clock.NewFixed(now0))
	view, err := svc.View(context.Background(), 2)
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	want := map[Bucket]int{
		BucketOverdue:            1,
		BucketPaidOverdue:        1,
		Bucket("active"):         1,
		BucketPayments:           1,
		BucketApproved:           1,
		BucketToHandover:         1,
		Bucket("pending_return"): 1,
		BucketCompleted:          2,
		Bucket("cancelled"):      1,
	}
	for b, n := range want {
		if view.Counts[b] != n {
			t.Errorf("count[%s] = %d, want %d", b, view.Counts[b], n)
		}
		if len(view.Groups[b]) != n {
			t.Errorf("groups[%s] has %d entries, want %d", b, len(view.Groups[b]), n)
		}
	}

	// No rental double-counted or dropped.
	total := 0
	for _, n := range view.Counts {
		total += n
	}
	if total != len(rows) || view.Total != len(rows) {
		t.Errorf("bucket counts sum to %d (view.Total=%d), want %d", total, view.Total, len(rows))
	}
}
