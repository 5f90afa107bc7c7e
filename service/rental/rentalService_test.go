package rental

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/stevegwapss/lendworks/model"
	"github.com/stevegwapss/lendworks/util/clock"
)

var now0 = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

// ----- in-memory fakes -----

type memState struct {
	rental    *model.Rental
	schedules []*model.ReturnSchedule
	events    []model.TimelineEvent
	proofs    []model.HandoverProof
	available map[int64]bool

	scheduleInsertErr error
	nextID            int64
}

func (st *memState) id() int64 {
	st.nextID++
	return st.nextID
}

type fakeRentals struct{ st *memState }

func (f *fakeRentals) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Rental, error) {
	return f.get(id)
}

func (f *fakeRentals) Get(ctx context.Context, id int64) (*model.Rental, error) {
	return f.get(id)
}

func (f *fakeRentals) get(id int64) (*model.Rental, error) {
	if f.st.rental == nil || f.st.rental.ID != id {
		return nil, sql.ErrNoRows
	}
	cp := *f.st.rental
	return &cp, nil
}

func (f *fakeRentals) UpdateStatus(ctx context.Context, tx *sql.Tx, id int64, status model.RentalStatus) error {
	f.st.rental.Status = status
	return nil
}

func (f *fakeRentals) MarkCompleted(ctx context.Context, tx *sql.Tx, id int64, returnAt time.Time) error {
	f.st.rental.Status = model.RentalCompleted
	f.st.rental.ReturnAt = &returnAt
	return nil
}

func (f *fakeRentals) ListForLender(ctx context.Context, lenderID int64) ([]model.Rental, error) {
	return nil, nil
}

func (f *fakeRentals) ListOverdueUnpaid(ctx context.Context, asOf time.Time) ([]model.Rental, error) {
	if f.st.rental != nil && f.st.rental.Status == model.RentalActive && f.st.rental.EndDate.Before(asOf) {
		return []model.Rental{*f.st.rental}, nil
	}
	return nil, nil
}

type fakeSchedules struct{ st *memState }

func (f *fakeSchedules) DeselectAll(ctx context.Context, tx *sql.Tx, rentalID int64) error {
	for _, s := range f.st.schedules {
		if s.RentalID == rentalID {
			s.IsSelected = false
		}
	}
	return nil
}

func (f *fakeSchedules) Insert(ctx context.Context, tx *sql.Tx, s *model.ReturnSchedule) (int64, error) {
	if f.st.scheduleInsertErr != nil {
		return 0, f.st.scheduleInsertErr
	}
	cp := *s
	cp.ID = f.st.id()
	f.st.schedules = append(f.st.schedules, &cp)
	return cp.ID, nil
}

func (f *fakeSchedules) SelectedForUpdate(ctx context.Context, tx *sql.Tx, rentalID int64) (*model.ReturnSchedule, error) {
	for _, s := range f.st.schedules {
		if s.RentalID == rentalID && s.IsSelected {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSchedules) Confirm(ctx context.Context, tx *sql.Tx, scheduleID int64) error {
	for _, s := range f.st.schedules {
		if s.ID == scheduleID {
			s.IsConfirmed = true
		}
	}
	return nil
}

type fakeTimeline struct{ st *memState }

func (f *fakeTimeline) Insert(ctx context.Context, tx *sql.Tx, rentalID int64, eventType string, actorID int64, meta model.Metadata) (int64, error) {
	e := model.TimelineEvent{
		ID:        f.st.id(),
		RentalID:  rentalID,
		EventType: eventType,
		ActorID:   actorID,
		Metadata:  meta,
		CreatedAt: now0,
	}
	f.st.events = append(f.st.events, e)
	return e.ID, nil
}

func (f *fakeTimeline) ListForRental(ctx context.Context, rentalID int64) ([]model.TimelineEvent, error) {
	return f.st.events, nil
}

type fakeProofs struct{ st *memState }

func (f *fakeProofs) Insert(ctx context.Context, tx *sql.Tx, rentalID int64, ptype model.ProofType, path string, userID int64) (int64, error) {
	p := model.HandoverProof{
		ID: f.st.id(), RentalID: rentalID, Type: ptype, ProofPath: path, UserID: userID, CreatedAt: now0,
	}
	f.st.proofs = append(f.st.proofs, p)
	return p.ID, nil
}

func (f *fakeProofs) ListForRental(ctx context.Context, rentalID int64) ([]model.HandoverProof, error) {
	return f.st.proofs, nil
}

type fakeListings struct{ st *memState }

func (f *fakeListings) SetAvailability(ctx context.Context, tx *sql.Tx, listingID int64, available bool) error {
	f.st.available[listingID] = available
	return nil
}

type blobMock struct {
	saved   []string
	failErr error
}

func (b *blobMock) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if b.failErr != nil {
		return "", b.failErr
	}
	_, _ = io.Copy(io.Discard, r)
	b.saved = append(b.saved, filename)
	return fmt.Sprintf("blob-%d", len(b.saved)), nil
}

type note struct {
	recipient int64
	kind      string
	rentalID  int64
}

type noteRecorder struct{ sent []note }

func (n *noteRecorder) Notify(ctx context.Context, recipientID int64, eventKind string, rentalID int64) {
	n.sent = append(n.sent, note{recipient: recipientID, kind: eventKind, rentalID: rentalID})
}

type fixture struct {
	st    *memState
	svc   Service
	blobs *blobMock
	notes *noteRecorder
}

const (
	renterID = int64(11)
	lenderID = int64(22)
	otherID  = int64(33)
	listID   = int64(5)
	rentID   = int64(100)
)

func newFixture(status model.RentalStatus, endDate time.Time) *fixture {
	st := &memState{
		rental: &model.Rental{
			ID:        rentID,
			ListingID: listID,
			RenterID:  renterID,
			LenderID:  lenderID,
			Status:    status,
			StartDate: endDate.AddDate(0, 0, -7),
			EndDate:   endDate,
		},
		available: map[int64]bool{},
		nextID:    1000,
	}
	blobs := &blobMock{}
	notes := &noteRecorder{}
	run := func(ctx context.Context, fn func(tx *sql.Tx) error) error { return fn(nil) }
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := New(run,
		&fakeRentals{st}, &fakeSchedules{st}, &fakeTimeline{st}, &fakeProofs{st}, &fakeListings{st},
		blobs, clock.NewFixed(now0), notes, log,
	)
	return &fixture{st: st, svc: svc, blobs: blobs, notes: notes}
}

func img() Image {
	data := []byte("fake-jpeg-bytes")
	return Image{
		Filename:    "proof.jpg",
		ContentType: "image/jpeg",
		Size:        int64(len(data)),
		Content:     bytes.NewReader(data),
	}
}

// ----- tests -----

func TestInitiateReturn_EarlyReturn(t *testing.T) {
	f := newFixture(model.RentalActive, now0.AddDate(0, 0, 3))

	err := f.svc.InitiateReturn(context.Background(), renterID, rentID)
	require.NoError(t, err)
	require.Equal(t, model.RentalPendingReturn, f.st.rental.Status)
	require.Nil(t, f.st.rental.ReturnAt)

	require.Len(t, f.st.events, 1)
	ev := f.st.events[0]
	require.Equal(t, model.EventReturnInitiated, ev.EventType)
	require.Equal(t, renterID, ev.ActorID)
	require.Equal(t, true, ev.Metadata["is_early_return"])
	require.Equal(t, "early_return", ev.Metadata["return_reason"])
	require.Equal(t, 3, ev.Metadata["days_from_end"])
	require.Equal(t, "renter", ev.Metadata["initiated_by"])

	require.Equal(t, []note{{lenderID, "return_initiated", rentID}}, f.notes.sent)
}

func TestInitiateReturn_Overdue(t *testing.T) {
	f := newFixture(model.RentalActive, now0.AddDate(0, 0, -2))

	require.NoError(t, f.svc.InitiateReturn(context.Background(), renterID, rentID))
	ev := f.st.events[0]
	require.Equal(t, false, ev.Metadata["is_early_return"])
	require.Equal(t, "normal_return", ev.Metadata["return_reason"])
	require.Equal(t, -2, ev.Metadata["days_from_end"])
}

func TestInitiateReturn_NotActive(t *testing.T) {
	f := newFixture(model.RentalApproved, now0.AddDate(0, 0, 3))

	err := f.svc.InitiateReturn(context.Background(), renterID, rentID)
	require.Equal(t, ErrValidation, Code(err))
	require.Equal(t, model.RentalApproved, f.st.rental.Status)
	require.Empty(t, f.st.events)
	require.Empty(t, f.notes.sent)
}

func TestInitiateReturn_WrongActor(t *testing.T) {
	f := newFixture(model.RentalActive, now0.AddDate(0, 0, 3))

	err := f.svc.InitiateReturn(context.Background(), lenderID, rentID)
	require.Equal(t, ErrForbidden, Code(err))
	require.Equal(t, model.RentalActive, f.st.rental.Status)
	require.Empty(t, f.st.events)
}

func TestInitiateReturn_NotFound(t *testing.T) {
	f := newFixture(model.RentalActive, now0.AddDate(0, 0, 3))

	err := f.svc.InitiateReturn(context.Background(), renterID, 999)
	require.Equal(t, ErrNotFound, Code(err))
}

func TestProposeSlot_BeforeEndDate(t *testing.T) {
	end := now0.AddDate(0, 0, 3)
	f := newFixture(model.RentalPendingReturn, end)

	err := f.svc.ProposeReturnSlot(context.Background(), renterID, rentID, SlotInput{
		ReturnDatetime: end.AddDate(0, 0, -1),
		StartTime:      "09:00",
		EndTime:        "11:00",
	})
	require.Equal(t, ErrValidation, Code(err))
	require.Empty(t, f.st.schedules)
	require.Empty(t, f.st.events)
}

func TestProposeSlot_SupersedesPrior(t *testing.T) {
	end := now0.AddDate(0, 0, 3)
	f := newFixture(model.RentalPendingReturn, end)

	first := SlotInput{ReturnDatetime: end.AddDate(0, 0, 1), StartTime: "09:00", EndTime: "11:00"}
	second := SlotInput{ReturnDatetime: end.AddDate(0, 0, 2), StartTime: "14:00", EndTime: "16:00"}

	require.NoError(t, f.svc.ProposeReturnSlot(context.Background(), renterID, rentID, first))
	require.NoError(t, f.svc.ProposeReturnSlot(context.Background(), renterID, rentID, second))

	selected := 0
	for _, s := range f.st.schedules {
		if s.IsSelected {
			selected++
			require.Equal(t, "14:00", s.StartTime)
			require.False(t, s.IsConfirmed)
		}
	}
	require.Equal(t, 1, selected)
	require.Len(t, f.st.schedules, 2) // superseded rows kept, not deleted

	ev := f.st.events[len(f.st.events)-1]
	require.Equal(t, model.EventReturnScheduleSelected, ev.EventType)
	require.Equal(t, second.ReturnDatetime.Weekday().String(), ev.Metadata["day_of_week"])
}

func TestProposeSlot_RaceMapsToConflict(t *testing.T) {
	end := now0.AddDate(0, 0, 3)
	f := newFixture(model.RentalPendingReturn, end)
	f.st.scheduleInsertErr = &pgconn.PgError{Code: "23505"}

	err := f.svc.ProposeReturnSlot(context.Background(), renterID, rentID, SlotInput{
		ReturnDatetime: end.AddDate(0, 0, 1), StartTime: "09:00", EndTime: "11:00",
	})
	require.Equal(t, ErrConflict, Code(err))
	require.Empty(t, f.notes.sent)
}

func TestConfirmSlot_NoSelectedSchedule(t *testing.T) {
	f := newFixture(model.RentalPendingReturn, now0.AddDate(0, 0, 3))

	err := f.svc.ConfirmReturnSlot(context.Background(), lenderID, rentID)
	require.Equal(t, ErrNotFound, Code(err))
	require.Empty(t, f.st.events)
	require.Equal(t, model.RentalPendingReturn, f.st.rental.Status)
}

func TestConfirmSlot_WrongActor(t *testing.T) {
	f := newFixture(model.RentalPendingReturn, now0.AddDate(0, 0, 3))

	err := f.svc.ConfirmReturnSlot(context.Background(), renterID, rentID)
	require.Equal(t, ErrForbidden, Code(err))
}

func TestConfirmSlot_EarlyReturnFlag(t *testing.T) {
	end := now0.AddDate(0, 0, 5)
	f := newFixture(model.RentalPendingReturn, end)

	// A slot on the end date itself proposed, then the rental's end
	// date pushed later would make it early; simulate by inserting the
	// schedule directly before the end date.
	f.st.schedules = append(f.st.schedules, &model.ReturnSchedule{
		ID: 1, RentalID: rentID, ReturnDatetime: end.AddDate(0, 0, -1),
		StartTime: "09:00", EndTime: "11:00", IsSelected: true,
	})

	require.NoError(t, f.svc.ConfirmReturnSlot(context.Background(), lenderID, rentID))
	require.Equal(t, model.RentalReturnScheduled, f.st.rental.Status)
	require.True(t, f.st.schedules[0].IsConfirmed)

	ev := f.st.events[0]
	require.Equal(t, model.EventReturnScheduleConfirmed, ev.EventType)
	require.Equal(t, true, ev.Metadata["is_early_return"])
	require.Equal(t, "lender", ev.Metadata["confirmed_by"])
	require.Equal(t, []note{{renterID, "return_schedule_confirmed", rentID}}, f.notes.sent)
}

func TestSubmitReturnProof(t *testing.T) {
	f := newFixture(model.RentalReturnScheduled, now0.AddDate(0, 0, 3))

	require.NoError(t, f.svc.SubmitReturnProof(context.Background(), renterID, rentID, img()))
	require.Equal(t, model.RentalPendingReturnConfirmation, f.st.rental.Status)
	require.Len(t, f.st.proofs, 1)
	require.Equal(t, model.ProofReturn, f.st.proofs[0].Type)
	require.Equal(t, "blob-1", f.st.proofs[0].ProofPath)

	ev := f.st.events[0]
	require.Equal(t, model.EventReturnSubmitted, ev.EventType)
	require.Equal(t, "blob-1", ev.Metadata["proof_path"])
}

func TestSubmitReturnProof_SkippingInitiateRejected(t *testing.T) {
	f := newFixture(model.RentalActive, now0.AddDate(0, 0, 3))

	err := f.svc.SubmitReturnProof(context.Background(), renterID, rentID, img())
	require.Equal(t, ErrValidation, Code(err))
	require.Empty(t, f.st.proofs)
}

func TestSubmitReturnProof_BadImage(t *testing.T) {
	f := newFixture(model.RentalPendingReturn, now0.AddDate(0, 0, 3))

	cases := []Image{
		{},
		{Filename: "p.txt", ContentType: "text/plain", Size: 10, Content: strings.NewReader("x")},
		{Filename: "p.jpg", ContentType: "image/jpeg", Size: 6 << 20, Content: strings.NewReader("x")},
	}
	for _, c := range cases {
		err := f.svc.SubmitReturnProof(context.Background(), renterID, rentID, c)
		require.Equal(t, ErrValidation, Code(err))
	}
	require.Empty(t, f.blobs.saved) // nothing persisted for invalid payloads
}

func TestProofUploads_RejectedRequestsLeaveNoBlob(t *testing.T) {
	f := newFixture(model.RentalReturnScheduled, now0.AddDate(0, 0, 3))

	err := f.svc.SubmitReturnProof(context.Background(), otherID, rentID, img())
	require.Equal(t, ErrForbidden, Code(err))
	require.Empty(t, f.blobs.saved)

	err = f.svc.ConfirmReturn(context.Background(), otherID, rentID, img())
	require.Equal(t, ErrForbidden, Code(err))
	require.Empty(t, f.blobs.saved)

	err = f.svc.SubmitHandoverProof(context.Background(), renterID, rentID, img())
	require.Equal(t, ErrForbidden, Code(err))
	require.Empty(t, f.blobs.saved)

	// Wrong stage is caught before the upload too.
	err = f.svc.ConfirmReturn(context.Background(), lenderID, rentID, img())
	require.Equal(t, ErrValidation, Code(err))
	require.Empty(t, f.blobs.saved)
}

func TestConfirmReturn(t *testing.T) {
	f := newFixture(model.RentalPendingReturnConfirmation, now0.AddDate(0, 0, 3))

	require.NoError(t, f.svc.ConfirmReturn(context.Background(), lenderID, rentID, img()))
	require.Equal(t, model.RentalCompleted, f.st.rental.Status)
	require.NotNil(t, f.st.rental.ReturnAt)
	require.Equal(t, now0, *f.st.rental.ReturnAt)
	require.True(t, f.st.available[listID])
	require.Equal(t, model.ProofReturnConfirmation, f.st.proofs[0].Type)
	require.Equal(t, []note{{renterID, "return_confirmed", rentID}}, f.notes.sent)
}

func TestConfirmReturn_AlreadyCompleted(t *testing.T) {
	f := newFixture(model.RentalCompleted, now0.AddDate(0, 0, 3))

	err := f.svc.ConfirmReturn(context.Background(), lenderID, rentID, img())
	require.Equal(t, ErrValidation, Code(err))
	require.Empty(t, f.st.proofs)   // no duplicate proof
	require.Empty(t, f.st.events)   // no duplicate event
	require.Empty(t, f.blobs.saved) // no orphaned blob either
}

func TestHandoverLeg(t *testing.T) {
	f := newFixture(model.RentalToHandover, now0.AddDate(0, 0, 7))

	require.NoError(t, f.svc.SubmitHandoverProof(context.Background(), lenderID, rentID, img()))
	require.Equal(t, model.RentalPendingProof, f.st.rental.Status)
	require.Equal(t, model.ProofPickup, f.st.proofs[0].Type)

	require.NoError(t, f.svc.ConfirmHandover(context.Background(), renterID, rentID))
	require.Equal(t, model.RentalActive, f.st.rental.Status)
	require.False(t, f.st.available[listID]) // listing held while rented

	require.Equal(t, []note{
		{renterID, "pickup_submitted", rentID},
		{lenderID, "handover_confirmed", rentID},
	}, f.notes.sent)
}

func TestHandover_WrongActors(t *testing.T) {
	f := newFixture(model.RentalToHandover, now0.AddDate(0, 0, 7))

	require.Equal(t, ErrForbidden, Code(f.svc.SubmitHandoverProof(context.Background(), renterID, rentID, img())))
	require.NoError(t, f.svc.SubmitHandoverProof(context.Background(), lenderID, rentID, img()))
	require.Equal(t, ErrForbidden, Code(f.svc.ConfirmHandover(context.Background(), lenderID, rentID)))
}

func TestFullReturnFlow(t *testing.T) {
	end := now0.AddDate(0, 0, 2)
	f := newFixture(model.RentalActive, end)
	ctx := context.Background()

	require.NoError(t, f.svc.InitiateReturn(ctx, renterID, rentID))
	require.NoError(t, f.svc.ProposeReturnSlot(ctx, renterID, rentID, SlotInput{
		ReturnDatetime: end.AddDate(0, 0, 1), StartTime: "10:00", EndTime: "12:00",
	}))
	require.NoError(t, f.svc.ConfirmReturnSlot(ctx, lenderID, rentID))
	require.NoError(t, f.svc.SubmitReturnProof(ctx, renterID, rentID, img()))
	require.Nil(t, f.st.rental.ReturnAt) // only completion sets return_at
	require.NoError(t, f.svc.ConfirmReturn(ctx, lenderID, rentID, img()))

	require.Equal(t, model.RentalCompleted, f.st.rental.Status)
	require.NotNil(t, f.st.rental.ReturnAt)
	require.True(t, f.st.available[listID])

	want := []string{
		model.EventReturnInitiated,
		model.EventReturnScheduleSelected,
		model.EventReturnScheduleConfirmed,
		model.EventReturnSubmitted,
		model.EventReturnConfirmed,
	}
	require.Len(t, f.st.events, len(want))
	for i, ev := range f.st.events {
		require.Equal(t, want[i], ev.EventType)
	}
}

func TestReads_Authorization(t *testing.T) {
	f := newFixture(model.RentalActive, now0.AddDate(0, 0, 3))

	_, err := f.svc.Timeline(context.Background(), otherID, rentID)
	require.Equal(t, ErrForbidden, Code(err))

	_, err = f.svc.Proofs(context.Background(), otherID, rentID)
	require.Equal(t, ErrForbidden, Code(err))

	_, err = f.svc.Timeline(context.Background(), renterID, rentID)
	require.NoError(t, err)
	_, err = f.svc.Proofs(context.Background(), lenderID, rentID)
	require.NoError(t, err)
}

func TestOverdueSweep(t *testing.T) {
	f := newFixture(model.RentalActive, now0.AddDate(0, 0, -3))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sw := NewOverdueSweeper(&fakeRentals{f.st}, clock.NewFixed(now0), f.notes, log)

	n, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []note{{lenderID, "rental_overdue", rentID}}, f.notes.sent)
}

func TestCodeExtractor(t *testing.T) {
	require.Equal(t, ErrConflict, Code(makeErr(ErrConflict, "raced")))
	require.Equal(t, ErrCode(""), Code(errors.New("plain")))
	require.Equal(t, ErrCode(""), Code(nil))
}
