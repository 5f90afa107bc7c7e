package schedule

import (
	"context"
	"database/sql"

	"github.com/stevegwapss/lendworks/model"
)

type Repo interface {
	// DeselectAll clears the selected flag on every schedule of the
	// rental. Runs in the same transaction as the insert that follows.
	DeselectAll(ctx context.Context, tx *sql.Tx, rentalID int64) error
	Insert(ctx context.Context, tx *sql.Tx, s *model.ReturnSchedule) (int64, error)

	SelectedForUpdate(ctx context.Context, tx *sql.Tx, rentalID int64) (*model.ReturnSchedule, error)
	Confirm(ctx context.Context, tx *sql.Tx, scheduleID int64) error
}

type repo struct {
	db *sql.DB
}

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) DeselectAll(ctx context.Context, tx *sql.Tx, rentalID int64) error {
	const q = `
		UPDATE return_schedules
		SET is_selected = FALSE
		WHERE rental_request_id = $1
		AND is_selected`
	_, err := tx.ExecContext(ctx, q, rentalID)
	return err
}

func (r *repo) Insert(ctx context.Context, tx *sql.Tx, s *model.ReturnSchedule) (int64, error) {
	const q = `
		INSERT INTO return_schedules
			(rental_request_id, return_datetime, start_time, end_time, is_selected, is_confirmed)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	var id int64
	err := tx.QueryRowContext(ctx, q,
		s.RentalID, s.ReturnDatetime, s.StartTime, s.EndTime, s.IsSelected, s.IsConfirmed,
	).Scan(&id)
	return id, err
}

func (r *repo) SelectedForUpdate(ctx context.Context, tx *sql.Tx, rentalID int64) (*model.ReturnSchedule, error) {
	const q = `
		SELECT id, rental_request_id, return_datetime, start_time, end_time,
			is_selected, is_confirmed, created_at
		FROM return_schedules
		WHERE rental_request_id = $1
		AND is_selected
		FOR UPDATE`
	var s model.ReturnSchedule
	err := tx.QueryRowContext(ctx, q, rentalID).Scan(
		&s.ID, &s.RentalID, &s.ReturnDatetime, &s.StartTime, &s.EndTime,
		&s.IsSelected, &s.IsConfirmed, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repo) Confirm(ctx context.Context, tx *sql.Tx, scheduleID int64) error {
	const q = `
		UPDATE return_schedules
		SET is_confirmed = TRUE
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, scheduleID)
	return err
}
