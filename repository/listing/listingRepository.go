package listing

import (
	"context"
	"database/sql"
)

// The listings workflow owns these rows; the rental lifecycle only
// flips the availability flag inside its transition transactions.
type Repo interface {
	SetAvailability(ctx context.Context, tx *sql.Tx, listingID int64, available bool) error
}

type repo struct {
	db *sql.DB
}

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) SetAvailability(ctx context.Context, tx *sql.Tx, listingID int64, available bool) error {
	const q = `
		UPDATE listings
		SET is_available = $2
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, listingID, available)
	return err
}
