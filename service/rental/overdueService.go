package rental

import (
	"context"
	"log/slog"

	rentalrepo "github.com/stevegwapss/lendworks/repository/rental"
	"github.com/stevegwapss/lendworks/service/notify"
	"github.com/stevegwapss/lendworks/util/clock"
)

// OverdueSweeper nudges lenders about active rentals past their end
// date without a verified overdue payment. Notification only; the
// dashboard derives overdue buckets live and nothing here mutates
// rental state.
type OverdueSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type sweeper struct {
	rentals  rentalrepo.Repo
	clk      clock.Clock
	notifier notify.Notifier
	log      *slog.Logger
}

func NewOverdueSweeper(rentals rentalrepo.Repo, clk clock.Clock, notifier notify.Notifier, log *slog.Logger) OverdueSweeper {
	return &sweeper{rentals: rentals, clk: clk, notifier: notifier, log: log}
}

func (s *sweeper) Sweep(ctx context.Context) (int, error) {
	rows, err := s.rentals.ListOverdueUnpaid(ctx, s.clk.Now())
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		s.notifier.Notify(ctx, r.LenderID, notify.KindRentalOverdue, r.ID)
	}
	if len(rows) > 0 {
		s.log.Info("overdue sweep", "notified", len(rows))
	}
	return len(rows), nil
}
