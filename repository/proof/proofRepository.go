package proof

import (
	"context"
	"database/sql"

	"github.com/stevegwapss/lendworks/model"
)

type Repo interface {
	Insert(ctx context.Context, tx *sql.Tx, rentalID int64, ptype model.ProofType, proofPath string, userID int64) (int64, error)
	ListForRental(ctx context.Context, rentalID int64) ([]model.HandoverProof, error)
}

type repo struct {
	db *sql.DB
}

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) Insert(ctx context.Context, tx *sql.Tx, rentalID int64, ptype model.ProofType, proofPath string, userID int64) (int64, error) {
	const q = `
		INSERT INTO handover_proofs (rental_request_id, type, proof_path, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	var id int64
	err := tx.QueryRowContext(ctx, q, rentalID, ptype, proofPath, userID).Scan(&id)
	return id, err
}

func (r *repo) ListForRental(ctx context.Context, rentalID int64) ([]model.HandoverProof, error) {
	const q = `
		SELECT id, rental_request_id, type, proof_path, user_id, created_at
		FROM handover_proofs
		WHERE rental_request_id = $1
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, rentalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HandoverProof
	for rows.Next() {
		var p model.HandoverProof
		if err := rows.Scan(&p.ID, &p.RentalID, &p.Type, &p.ProofPath, &p.UserID, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
