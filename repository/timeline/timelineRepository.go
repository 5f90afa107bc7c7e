package timeline

import (
	"context"
	"database/sql"

	"github.com/stevegwapss/lendworks/model"
)

type Repo interface {
	// Insert appends one event. No update or delete path exists.
	Insert(ctx context.Context, tx *sql.Tx, rentalID int64, eventType string, actorID int64, meta model.Metadata) (int64, error)
	ListForRental(ctx context.Context, rentalID int64) ([]model.TimelineEvent, error)
}

type repo struct {
	db *sql.DB
}

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) Insert(ctx context.Context, tx *sql.Tx, rentalID int64, eventType string, actorID int64, meta model.Metadata) (int64, error) {
	const q = `
		INSERT INTO timeline_events (rental_request_id, event_type, actor_id, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	var id int64
	err := tx.QueryRowContext(ctx, q, rentalID, eventType, actorID, meta).Scan(&id)
	return id, err
}

func (r *repo) ListForRental(ctx context.Context, rentalID int64) ([]model.TimelineEvent, error) {
	const q = `
		SELECT id, rental_request_id, event_type, actor_id, metadata, created_at
		FROM timeline_events
		WHERE rental_request_id = $1
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, rentalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimelineEvent
	for rows.Next() {
		var e model.TimelineEvent
		if err := rows.Scan(&e.ID, &e.RentalID, &e.EventType, &e.ActorID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
