// repository/rental/repo.go
package rental

import (
	"context"
	"database/sql"
	"time"

	"github.com/stevegwapss/lendworks/model"
)

type Repo interface {
	// GetForUpdate locks the rental row for the duration of the
	// transaction and joins the owning listing. Every state
	// transition starts here, which serializes transitions per rental.
	GetForUpdate(ctx context.Context, tx *sql.Tx, rentalID int64) (*model.Rental, error)

	// Get is the non-locking read used outside transitions.
	Get(ctx context.Context, rentalID int64) (*model.Rental, error)

	UpdateStatus(ctx context.Context, tx *sql.Tx, rentalID int64, status model.RentalStatus) error
	MarkCompleted(ctx context.Context, tx *sql.Tx, rentalID int64, returnAt time.Time) error

	ListForLender(ctx context.Context, lenderID int64) ([]model.Rental, error)
	ListOverdueUnpaid(ctx context.Context, asOf time.Time) ([]model.Rental, error)
}

type repo struct {
	db *sql.DB
}

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) GetForUpdate(ctx context.Context, tx *sql.Tx, rentalID int64) (*model.Rental, error) {
	const q = `
		SELECT r.id, r.listing_id, r.renter_id, r.status,
			r.start_date, r.end_date, r.return_at, r.created_at,
			l.user_id, l.title
		FROM rental_requests r
		JOIN listings l ON l.id = r.listing_id
		WHERE r.id = $1
		FOR UPDATE OF r`
	var m model.Rental
	err := tx.QueryRowContext(ctx, q, rentalID).Scan(
		&m.ID, &m.ListingID, &m.RenterID, &m.Status,
		&m.StartDate, &m.EndDate, &m.ReturnAt, &m.CreatedAt,
		&m.LenderID, &m.ListingTitle,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repo) Get(ctx context.Context, rentalID int64) (*model.Rental, error) {
	const q = `
		SELECT r.id, r.listing_id, r.renter_id, r.status,
			r.start_date, r.end_date, r.return_at, r.created_at,
			l.user_id, l.title
		FROM rental_requests r
		JOIN listings l ON l.id = r.listing_id
		WHERE r.id = $1`
	var m model.Rental
	err := r.db.QueryRowContext(ctx, q, rentalID).Scan(
		&m.ID, &m.ListingID, &m.RenterID, &m.Status,
		&m.StartDate, &m.EndDate, &m.ReturnAt, &m.CreatedAt,
		&m.LenderID, &m.ListingTitle,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repo) UpdateStatus(ctx context.Context, tx *sql.Tx, rentalID int64, status model.RentalStatus) error {
	const q = `
		UPDATE rental_requests
		SET status = $2
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, rentalID, status)
	return err
}

func (r *repo) MarkCompleted(ctx context.Context, tx *sql.Tx, rentalID int64, returnAt time.Time) error {
	const q = `
		UPDATE rental_requests
		SET status = $2,
			return_at = $3
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, rentalID, model.RentalCompleted, returnAt)
	return err
}

func (r *repo) ListForLender(ctx context.Context, lenderID int64) ([]model.Rental, error) {
	const q = `
		SELECT r.id, r.listing_id, r.renter_id, r.status,
			r.start_date, r.end_date, r.return_at, r.created_at,
			l.user_id, l.title
		FROM rental_requests r
		JOIN listings l ON l.id = r.listing_id
		WHERE l.user_id = $1
		ORDER BY r.created_at DESC, r.id DESC`
	return r.scanRentals(ctx, q, lenderID)
}

func (r *repo) ListOverdueUnpaid(ctx context.Context, asOf time.Time) ([]model.Rental, error) {
	const q = `
		SELECT r.id, r.listing_id, r.renter_id, r.status,
			r.start_date, r.end_date, r.return_at, r.created_at,
			l.user_id, l.title
		FROM rental_requests r
		JOIN listings l ON l.id = r.listing_id
		WHERE r.status = 'active'
		AND r.end_date < $1
		AND NOT EXISTS (
			SELECT 1 FROM payment_requests p
			WHERE p.rental_request_id = r.id
			AND p.type = 'overdue'
			AND p.status = 'verified'
		)
		ORDER BY r.end_date`
	return r.scanRentals(ctx, q, asOf)
}

func (r *repo) scanRentals(ctx context.Context, q string, args ...any) ([]model.Rental, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Rental
	for rows.Next() {
		var m model.Rental
		if err := rows.Scan(
			&m.ID, &m.ListingID, &m.RenterID, &m.Status,
			&m.StartDate, &m.EndDate, &m.ReturnAt, &m.CreatedAt,
			&m.LenderID, &m.ListingTitle,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
