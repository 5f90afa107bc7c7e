package payment

import (
	"context"
	"database/sql"

	"github.com/stevegwapss/lendworks/model"
)

// Read-only view over payment_requests. Creating and verifying payment
// requests belongs to the payments workflow.
type Repo interface {
	// ListForLender returns every payment request attached to the
	// lender's rentals, keyed by rental ID.
	ListForLender(ctx context.Context, lenderID int64) (map[int64][]model.PaymentRequest, error)
}

type repo struct {
	db *sql.DB
}

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) ListForLender(ctx context.Context, lenderID int64) (map[int64][]model.PaymentRequest, error) {
	const q = `
		SELECT p.id, p.rental_request_id, p.type, p.status, p.created_at
		FROM payment_requests p
		JOIN rental_requests r ON r.id = p.rental_request_id
		JOIN listings l ON l.id = r.listing_id
		WHERE l.user_id = $1`
	rows, err := r.db.QueryContext(ctx, q, lenderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]model.PaymentRequest)
	for rows.Next() {
		var p model.PaymentRequest
		if err := rows.Scan(&p.ID, &p.RentalID, &p.Type, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		out[p.RentalID] = append(out[p.RentalID], p)
	}
	return out, rows.Err()
}
