package model

import "time"

type ProofType string

const (
	ProofPickup             ProofType = "pickup"
	ProofReturn             ProofType = "return"
	ProofReturnConfirmation ProofType = "return_confirmation"
)

// HandoverProof is an evidence image reference, immutable once created.
// ProofPath is the blob store file ID, not a filesystem path.
type HandoverProof struct {
	ID        int64     `json:"id"`
	RentalID  int64     `json:"rental_id"`
	Type      ProofType `json:"type"`
	ProofPath string    `json:"proof_path"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
