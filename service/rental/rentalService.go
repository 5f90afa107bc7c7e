package rental

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/stevegwapss/lendworks/model"
	listingrepo "github.com/stevegwapss/lendworks/repository/listing"
	proofrepo "github.com/stevegwapss/lendworks/repository/proof"
	rentalrepo "github.com/stevegwapss/lendworks/repository/rental"
	schedulerepo "github.com/stevegwapss/lendworks/repository/schedule"
	timelinerepo "github.com/stevegwapss/lendworks/repository/timeline"
	"github.com/stevegwapss/lendworks/service/notify"
	"github.com/stevegwapss/lendworks/util/clock"
	"github.com/stevegwapss/lendworks/util/database"
)

// errors used by controllers

type ErrCode string

const (
	ErrForbidden  ErrCode = "FORBIDDEN"
	ErrValidation ErrCode = "VALIDATION"
	ErrNotFound   ErrCode = "NOT_FOUND"
	ErrConflict   ErrCode = "CONFLICT"
)

type codedError struct {
	code ErrCode
	msg  string
}

func (e codedError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return string(e.code)
}
func (e codedError) Code() ErrCode { return e.code }

func makeErr(c ErrCode, msg string) error { return codedError{code: c, msg: msg} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// dto

// Image is an uploaded proof payload. The blob is persisted before the
// transition transaction begins, so transactions stay short.
type Image struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

const maxImageSize = 5 << 20

func (img Image) validate() error {
	if img.Content == nil || img.Size <= 0 {
		return makeErr(ErrValidation, "proof image is required")
	}
	if img.Size > maxImageSize {
		return makeErr(ErrValidation, "proof image exceeds 5MB")
	}
	if !strings.HasPrefix(img.ContentType, "image/") {
		return makeErr(ErrValidation, "proof must be an image")
	}
	return nil
}

// SlotInput is a proposed return appointment.
type SlotInput struct {
	ReturnDatetime time.Time
	StartTime      string
	EndTime        string
}

// BlobStore persists proof images and returns their stable reference.
type BlobStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
}

type Service interface {
	// Handover leg: lender documents the item, renter confirms receipt.
	SubmitHandoverProof(ctx context.Context, actorID, rentalID int64, img Image) error
	ConfirmHandover(ctx context.Context, actorID, rentalID int64) error

	// Return leg.
	InitiateReturn(ctx context.Context, actorID, rentalID int64) error
	ProposeReturnSlot(ctx context.Context, actorID, rentalID int64, slot SlotInput) error
	ConfirmReturnSlot(ctx context.Context, actorID, rentalID int64) error
	SubmitReturnProof(ctx context.Context, actorID, rentalID int64, img Image) error
	ConfirmReturn(ctx context.Context, actorID, rentalID int64, img Image) error

	// Reads, restricted to the rental's renter and lender.
	Timeline(ctx context.Context, actorID, rentalID int64) ([]model.TimelineEvent, error)
	Proofs(ctx context.Context, actorID, rentalID int64) ([]model.HandoverProof, error)
}

// ----- Service implementation -----

type service struct {
	run       database.TxFunc
	rentals   rentalrepo.Repo
	schedules schedulerepo.Repo
	timeline  timelinerepo.Repo
	proofs    proofrepo.Repo
	listings  listingrepo.Repo
	blobs     BlobStore
	clk       clock.Clock
	notifier  notify.Notifier
	log       *slog.Logger
}

func New(
	run database.TxFunc,
	rentals rentalrepo.Repo,
	schedules schedulerepo.Repo,
	timeline timelinerepo.Repo,
	proofs proofrepo.Repo,
	listings listingrepo.Repo,
	blobs BlobStore,
	clk clock.Clock,
	notifier notify.Notifier,
	log *slog.Logger,
) Service {
	return &service{
		run:       run,
		rentals:   rentals,
		schedules: schedules,
		timeline:  timeline,
		proofs:    proofs,
		listings:  listings,
		blobs:     blobs,
		clk:       clk,
		notifier:  notifier,
		log:       log,
	}
}

// inTx runs fn atomically and maps constraint races to CONFLICT.
func (s *service) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	err := s.run(ctx, fn)
	if err != nil && database.IsUniqueViolation(err) {
		return makeErr(ErrConflict, "a concurrent update won; retry the operation")
	}
	return err
}

func (s *service) getForUpdate(ctx context.Context, tx *sql.Tx, rentalID int64) (*model.Rental, error) {
	r, err := s.rentals.GetForUpdate(ctx, tx, rentalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, makeErr(ErrNotFound, "rental not found")
	}
	return r, err
}

// precheck rejects a request on an unlocked read before any durable
// work happens. The transaction repeats the same check on the locked
// row; this one only keeps rejected requests from writing blobs.
func (s *service) precheck(ctx context.Context, rentalID int64, check func(*model.Rental) error) error {
	r, err := s.rentals.Get(ctx, rentalID)
	if errors.Is(err, sql.ErrNoRows) {
		return makeErr(ErrNotFound, "rental not found")
	}
	if err != nil {
		return err
	}
	return check(r)
}

func lenderOnly(actorID int64, msg string, to model.RentalStatus, stageMsg string) func(*model.Rental) error {
	return func(r *model.Rental) error {
		if r.LenderID != actorID {
			return makeErr(ErrForbidden, msg)
		}
		if !model.CanTransition(r.Status, to) {
			return makeErr(ErrValidation, stageMsg)
		}
		return nil
	}
}

func renterOnly(actorID int64, msg string, to model.RentalStatus, stageMsg string) func(*model.Rental) error {
	return func(r *model.Rental) error {
		if r.RenterID != actorID {
			return makeErr(ErrForbidden, msg)
		}
		if !model.CanTransition(r.Status, to) {
			return makeErr(ErrValidation, stageMsg)
		}
		return nil
	}
}

// SubmitHandoverProof records the lender's pickup evidence and moves
// the rental from to_handover to pending_proof.
func (s *service) SubmitHandoverProof(ctx context.Context, actorID, rentalID int64, img Image) error {
	if err := img.validate(); err != nil {
		return err
	}
	check := lenderOnly(actorID, "only the lender can submit handover proof",
		model.RentalPendingProof, "rental is not awaiting handover")
	if err := s.precheck(ctx, rentalID, check); err != nil {
		return err
	}
	path, err := s.blobs.Save(ctx, fmt.Sprintf("rental_%d_pickup_%s", rentalID, img.Filename), img.Content)
	if err != nil {
		return err
	}

	var renterID int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := s.getForUpdate(ctx, tx, rentalID)
		if err != nil {
			return err
		}
		if err := check(r); err != nil {
			return err
		}
		if _, err := s.proofs.Insert(ctx, tx, rentalID, model.ProofPickup, path, actorID); err != nil {
			return err
		}
		if err := s.rentals.UpdateStatus(ctx, tx, rentalID, model.RentalPendingProof); err != nil {
			return err
		}
		if _, err := s.timeline.Insert(ctx, tx, rentalID, model.EventPickupSubmitted, actorID, model.Metadata{
			"proof_path": path,
		}); err != nil {
			return err
		}
		renterID = r.RenterID
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, renterID, notify.KindPickupSubmitted, rentalID)
	return nil
}

// ConfirmHandover is the renter acknowledging receipt: the rental goes
// active and the listing is held until the return completes.
func (s *service) ConfirmHandover(ctx context.Context, actorID, rentalID int64) error {
	var lenderID int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := s.getForUpdate(ctx, tx, rentalID)
		if err != nil {
			return err
		}
		if r.RenterID != actorID {
			return makeErr(ErrForbidden, "only the renter can confirm the handover")
		}
		if !model.CanTransition(r.Status, model.RentalActive) {
			return makeErr(ErrValidation, "rental is not awaiting handover confirmation")
		}
		if err := s.rentals.UpdateStatus(ctx, tx, rentalID, model.RentalActive); err != nil {
			return err
		}
		if err := s.listings.SetAvailability(ctx, tx, r.ListingID, false); err != nil {
			return err
		}
		if _, err := s.timeline.Insert(ctx, tx, rentalID, model.EventHandoverConfirmed, actorID, model.Metadata{
			"confirmed_by": "renter",
		}); err != nil {
			return err
		}
		lenderID = r.LenderID
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, lenderID, notify.KindHandoverConfirmed, rentalID)
	return nil
}

func (s *service) InitiateReturn(ctx context.Context, actorID, rentalID int64) error {
	now := s.clk.Now()

	var lenderID int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := s.getForUpdate(ctx, tx, rentalID)
		if err != nil {
			return err
		}
		if r.RenterID != actorID {
			return makeErr(ErrForbidden, "only the renter can initiate a return")
		}
		if r.Status != model.RentalActive {
			return makeErr(ErrValidation, "rental is not active")
		}
		if err := s.rentals.UpdateStatus(ctx, tx, rentalID, model.RentalPendingReturn); err != nil {
			return err
		}

		early := now.Before(r.EndDate)
		reason := "normal_return"
		if early {
			reason = "early_return"
		}
		if _, err := s.timeline.Insert(ctx, tx, rentalID, model.EventReturnInitiated, actorID, model.Metadata{
			"rental_end_date": r.EndDate.Format("2006-01-02"),
			"is_early_return": early,
			"initiated_by":    "renter",
			"days_from_end":   int(r.EndDate.Sub(now).Hours() / 24),
			"return_reason":   reason,
		}); err != nil {
			return err
		}
		lenderID = r.LenderID
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, lenderID, notify.KindReturnInitiated, rentalID)
	return nil
}

// ProposeReturnSlot replaces any previously selected schedule with a
// fresh unconfirmed one as a single atomic step.
func (s *service) ProposeReturnSlot(ctx context.Context, actorID, rentalID int64, slot SlotInput) error {
	if slot.StartTime == "" || slot.EndTime == "" {
		return makeErr(ErrValidation, "start and end time are required")
	}

	var lenderID int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := s.getForUpdate(ctx, tx, rentalID)
		if err != nil {
			return err
		}
		if r.RenterID != actorID {
			return makeErr(ErrForbidden, "only the renter can propose a return slot")
		}
		if slot.ReturnDatetime.Before(r.EndDate) {
			return makeErr(ErrValidation, "return slot must not be before the rental end date")
		}

		if err := s.schedules.DeselectAll(ctx, tx, rentalID); err != nil {
			return err
		}
		sched := &model.ReturnSchedule{
			RentalID:       rentalID,
			ReturnDatetime: slot.ReturnDatetime,
			StartTime:      slot.StartTime,
			EndTime:        slot.EndTime,
			IsSelected:     true,
		}
		if _, err := s.schedules.Insert(ctx, tx, sched); err != nil {
			return err
		}

		if _, err := s.timeline.Insert(ctx, tx, rentalID, model.EventReturnScheduleSelected, actorID, model.Metadata{
			"datetime":    slot.ReturnDatetime.Format(time.RFC3339),
			"day_of_week": slot.ReturnDatetime.Weekday().String(),
			"start_time":  slot.StartTime,
			"end_time":    slot.EndTime,
		}); err != nil {
			return err
		}
		lenderID = r.LenderID
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, lenderID, notify.KindReturnScheduleSelected, rentalID)
	return nil
}

func (s *service) ConfirmReturnSlot(ctx context.Context, actorID, rentalID int64) error {
	now := s.clk.Now()

	var renterID int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := s.getForUpdate(ctx, tx, rentalID)
		if err != nil {
			return err
		}
		if r.LenderID != actorID {
			return makeErr(ErrForbidden, "only the lender can confirm the return slot")
		}
		if !model.CanTransition(r.Status, model.RentalReturnScheduled) {
			return makeErr(ErrValidation, "rental is not awaiting a return schedule")
		}

		sched, err := s.schedules.SelectedForUpdate(ctx, tx, rentalID)
		if errors.Is(err, sql.ErrNoRows) {
			return makeErr(ErrNotFound, "no selected return schedule")
		}
		if err != nil {
			return err
		}

		if err := s.schedules.Confirm(ctx, tx, sched.ID); err != nil {
			return err
		}
		if err := s.rentals.UpdateStatus(ctx, tx, rentalID, model.RentalReturnScheduled); err != nil {
			return err
		}
		if _, err := s.timeline.Insert(ctx, tx, rentalID, model.EventReturnScheduleConfirmed, actorID, model.Metadata{
			"datetime":              sched.ReturnDatetime.Format(time.RFC3339),
			"day_of_week":           sched.ReturnDatetime.Weekday().String(),
			"date":                  sched.ReturnDatetime.Format("Jan 02, 2006"),
			"start_time":            sched.StartTime,
			"end_time":              sched.EndTime,
			"confirmed_by":          "lender",
			"confirmation_datetime": now.Format("2006-01-02 15:04:05"),
			"is_early_return":       sched.ReturnDatetime.Before(r.EndDate),
		}); err != nil {
			return err
		}
		renterID = r.RenterID
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, renterID, notify.KindReturnScheduleConfirmed, rentalID)
	return nil
}

func (s *service) SubmitReturnProof(ctx context.Context, actorID, rentalID int64, img Image) error {
	if err := img.validate(); err != nil {
		return err
	}
	check := renterOnly(actorID, "only the renter can submit return proof",
		model.RentalPendingReturnConfirmation, "rental is not in the return flow")
	if err := s.precheck(ctx, rentalID, check); err != nil {
		return err
	}
	path, err := s.blobs.Save(ctx, fmt.Sprintf("rental_%d_return_%s", rentalID, img.Filename), img.Content)
	if err != nil {
		return err
	}

	var lenderID int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := s.getForUpdate(ctx, tx, rentalID)
		if err != nil {
			return err
		}
		if err := check(r); err != nil {
			return err
		}
		if _, err := s.proofs.Insert(ctx, tx, rentalID, model.ProofReturn, path, actorID); err != nil {
			return err
		}
		if err := s.rentals.UpdateStatus(ctx, tx, rentalID, model.RentalPendingReturnConfirmation); err != nil {
			return err
		}
		if _, err := s.timeline.Insert(ctx, tx, rentalID, model.EventReturnSubmitted, actorID, model.Metadata{
			"proof_path": path,
		}); err != nil {
			return err
		}
		lenderID = r.LenderID
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, lenderID, notify.KindReturnSubmitted, rentalID)
	return nil
}

// ConfirmReturn completes the rental: confirmation proof, return_at,
// and the listing becoming available again commit as one unit.
func (s *service) ConfirmReturn(ctx context.Context, actorID, rentalID int64, img Image) error {
	if err := img.validate(); err != nil {
		return err
	}
	check := lenderOnly(actorID, "only the lender can confirm the return",
		model.RentalCompleted, "rental is not awaiting return confirmation")
	if err := s.precheck(ctx, rentalID, check); err != nil {
		return err
	}
	path, err := s.blobs.Save(ctx, fmt.Sprintf("rental_%d_return_confirmation_%s", rentalID, img.Filename), img.Content)
	if err != nil {
		return err
	}
	now := s.clk.Now()

	var renterID int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := s.getForUpdate(ctx, tx, rentalID)
		if err != nil {
			return err
		}
		if err := check(r); err != nil {
			return err
		}
		if _, err := s.proofs.Insert(ctx, tx, rentalID, model.ProofReturnConfirmation, path, actorID); err != nil {
			return err
		}
		if err := s.rentals.MarkCompleted(ctx, tx, rentalID, now); err != nil {
			return err
		}
		if err := s.listings.SetAvailability(ctx, tx, r.ListingID, true); err != nil {
			return err
		}
		if _, err := s.timeline.Insert(ctx, tx, rentalID, model.EventReturnConfirmed, actorID, model.Metadata{
			"proof_path": path,
		}); err != nil {
			return err
		}
		renterID = r.RenterID
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, renterID, notify.KindReturnConfirmed, rentalID)
	return nil
}

func (s *service) Timeline(ctx context.Context, actorID, rentalID int64) ([]model.TimelineEvent, error) {
	if err := s.authorizeRead(ctx, actorID, rentalID); err != nil {
		return nil, err
	}
	return s.timeline.ListForRental(ctx, rentalID)
}

func (s *service) Proofs(ctx context.Context, actorID, rentalID int64) ([]model.HandoverProof, error) {
	if err := s.authorizeRead(ctx, actorID, rentalID); err != nil {
		return nil, err
	}
	return s.proofs.ListForRental(ctx, rentalID)
}

func (s *service) authorizeRead(ctx context.Context, actorID, rentalID int64) error {
	r, err := s.rentals.Get(ctx, rentalID)
	if errors.Is(err, sql.ErrNoRows) {
		return makeErr(ErrNotFound, "rental not found")
	}
	if err != nil {
		return err
	}
	if r.RenterID != actorID && r.LenderID != actorID {
		return makeErr(ErrForbidden, "not a party to this rental")
	}
	return nil
}
