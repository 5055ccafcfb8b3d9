package scheduling

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/schedule"
	"github.com/jwalitptl/booking-api/internal/service/event"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) Update(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) List(_ context.Context) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

type fakeDoctorRepo struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]*model.Doctor
}

func newFakeDoctorRepo() *fakeDoctorRepo {
	return &fakeDoctorRepo{doctors: make(map[uuid.UUID]*model.Doctor)}
}

func (f *fakeDoctorRepo) Create(_ context.Context, d *model.Doctor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	f.doctors[d.ID] = d
	return nil
}

func (f *fakeDoctorRepo) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return d, nil
}

func (f *fakeDoctorRepo) List(_ context.Context) ([]*model.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Doctor, 0, len(f.doctors))
	for _, d := range f.doctors {
		out = append(out, d)
	}
	return out, nil
}

// fakeAppointmentRepo mirrors the postgres behavior that matters here: Create
// applies the pending status default and rejects duplicate active slots the
// way the partial unique index would.
type fakeAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (f *fakeAppointmentRepo) Create(_ context.Context, a *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.appointments {
		if existing.DoctorID == a.DoctorID &&
			existing.SlotDate == a.SlotDate &&
			existing.SlotTime == a.SlotTime &&
			existing.Status != model.AppointmentStatusCancelled {
			return repository.ErrDuplicateSlot
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Status = model.AppointmentStatusPending
	cp := *a
	f.appointments[a.ID] = &cp
	return nil
}

func (f *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAppointmentRepo) ExistsForSlot(_ context.Context, doctorID uuid.UUID, date, timeOfDay string, includeCancelled bool, excludeID *uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appointments {
		if a.DoctorID != doctorID || a.SlotDate != date || a.SlotTime != timeOfDay {
			continue
		}
		if !includeCancelled && a.Status == model.AppointmentStatusCancelled {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (f *fakeAppointmentRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Appointment
	for _, a := range f.appointments {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.AppointmentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = status
	return nil
}

func (f *fakeAppointmentRepo) UpdateSlot(_ context.Context, id uuid.UUID, date, timeOfDay string, start, end time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.SlotDate = date
	a.SlotTime = timeOfDay
	a.StartTime = start
	a.EndTime = end
	return nil
}

func (f *fakeAppointmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.appointments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.appointments, id)
	return nil
}

func (f *fakeAppointmentRepo) CompleteElapsed(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, a := range f.appointments {
		if a.Status == model.AppointmentStatusConfirmed && a.EndTime.Before(cutoff) {
			a.Status = model.AppointmentStatusCompleted
			n++
		}
	}
	return n, nil
}

type fakeOutboxRepo struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
}

func (f *fakeOutboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeOutboxRepo) GetPendingEventsWithLock(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) BeginTx(_ context.Context) (*sql.Tx, error) { return nil, nil }

func (f *fakeOutboxRepo) UpdateStatusTx(_ context.Context, _ *sql.Tx, _ uuid.UUID, _ model.OutboxStatus, _ *string) error {
	return nil
}

func (f *fakeOutboxRepo) DeleteProcessedBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeOutboxRepo) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	svc    *Service
	users  *fakeUserRepo
	docs   *fakeDoctorRepo
	appts  *fakeAppointmentRepo
	outbox *fakeOutboxRepo

	userID   uuid.UUID
	doctorID uuid.UUID
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	users := newFakeUserRepo()
	docs := newFakeDoctorRepo()
	appts := newFakeAppointmentRepo()
	outbox := &fakeOutboxRepo{}

	user := &model.User{FirstName: "Asha", LastName: "Rao", Email: "asha@example.com"}
	require.NoError(t, users.Create(context.Background(), user))
	doctor := &model.Doctor{FirstName: "Meera", LastName: "Iyer", Email: "meera@example.com", Specialization: "Cardiology"}
	require.NoError(t, docs.Create(context.Background(), doctor))

	m := metrics.NewWith("booking_test", prometheus.NewRegistry())
	emitter := event.NewEmitter(outbox, zerolog.Nop())
	svc := NewService(users, docs, appts, emitter, m, zerolog.Nop(), opts)

	return &fixture{
		svc:      svc,
		users:    users,
		docs:     docs,
		appts:    appts,
		outbox:   outbox,
		userID:   user.ID,
		doctorID: doctor.ID,
	}
}

func (fx *fixture) book(t *testing.T, date, timeOfDay string) *model.Appointment {
	t.Helper()
	a, err := fx.svc.Book(context.Background(), &model.BookAppointmentRequest{
		UserID:   fx.userID,
		DoctorID: fx.doctorID,
		Date:     date,
		Time:     timeOfDay,
	})
	require.NoError(t, err)
	return a
}

func TestBook(t *testing.T) {
	fx := newFixture(t, Options{})

	a := fx.book(t, "2026-09-01", "10:30")

	assert.Equal(t, model.AppointmentStatusPending, a.Status)
	assert.True(t, a.ChatEnabled)
	assert.Equal(t, "2026-09-01", a.SlotDate)
	assert.Equal(t, "10:30", a.SlotTime)

	// 10:30 clinic time is 05:00 UTC.
	assert.Equal(t, time.Date(2026, 9, 1, 5, 0, 0, 0, time.UTC), a.StartTime.UTC())
	assert.Equal(t, a.StartTime.Add(time.Hour), a.EndTime)

	assert.Equal(t, []string{event.TypeAppointmentBooked}, fx.outbox.eventTypes())
}

func TestBookUnknownUser(t *testing.T) {
	fx := newFixture(t, Options{})

	_, err := fx.svc.Book(context.Background(), &model.BookAppointmentRequest{
		UserID:   uuid.New(),
		DoctorID: fx.doctorID,
		Date:     "2026-09-01",
		Time:     "10:30",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUserNotFound, errors.CodeOf(err))
	assert.Empty(t, fx.outbox.eventTypes())
}

func TestBookUnknownDoctor(t *testing.T) {
	fx := newFixture(t, Options{})

	_, err := fx.svc.Book(context.Background(), &model.BookAppointmentRequest{
		UserID:   fx.userID,
		DoctorID: uuid.New(),
		Date:     "2026-09-01",
		Time:     "10:30",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDoctorNotFound, errors.CodeOf(err))
}

func TestBookSlotConflict(t *testing.T) {
	fx := newFixture(t, Options{})

	fx.book(t, "2026-09-01", "10:30")

	_, err := fx.svc.Book(context.Background(), &model.BookAppointmentRequest{
		UserID:   fx.userID,
		DoctorID: fx.doctorID,
		Date:     "2026-09-01",
		Time:     "10:30",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSlotConflict, errors.CodeOf(err))

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Appointment already booked for 2026-09-01 and 10:30", appErr.Message)
}

func TestBookAdjacentSlotsDoNotConflict(t *testing.T) {
	fx := newFixture(t, Options{})

	fx.book(t, "2026-09-01", "10:30")
	fx.book(t, "2026-09-01", "11:30")
	fx.book(t, "2026-09-02", "10:30")
}

func TestBookAfterCancelFreesSlot(t *testing.T) {
	fx := newFixture(t, Options{})

	a := fx.book(t, "2026-09-01", "10:30")
	_, err := fx.svc.Cancel(context.Background(), a.ID)
	require.NoError(t, err)

	fx.book(t, "2026-09-01", "10:30")
}

func TestBookCancelledStillBlocksWhenConfigured(t *testing.T) {
	fx := newFixture(t, Options{IncludeCancelledInConflict: true})

	a := fx.book(t, "2026-09-01", "10:30")
	_, err := fx.svc.Cancel(context.Background(), a.ID)
	require.NoError(t, err)

	_, err = fx.svc.Book(context.Background(), &model.BookAppointmentRequest{
		UserID:   fx.userID,
		DoctorID: fx.doctorID,
		Date:     "2026-09-01",
		Time:     "10:30",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSlotConflict, errors.CodeOf(err))
}

func TestBookInvalidTime(t *testing.T) {
	fx := newFixture(t, Options{})

	for _, tc := range []struct{ date, timeOfDay string }{
		{"2026-13-01", "10:30"},
		{"2026-09-01", "25:00"},
		{"not-a-date", "10:30"},
		{"2026-09-01", "1030"},
	} {
		_, err := fx.svc.Book(context.Background(), &model.BookAppointmentRequest{
			UserID:   fx.userID,
			DoctorID: fx.doctorID,
			Date:     tc.date,
			Time:     tc.timeOfDay,
		})
		require.Error(t, err, "date=%s time=%s", tc.date, tc.timeOfDay)
		assert.Equal(t, errors.ErrCodeInvalidTime, errors.CodeOf(err))
	}
}

func TestBookConcurrentSameSlot(t *testing.T) {
	fx := newFixture(t, Options{})

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.svc.Book(context.Background(), &model.BookAppointmentRequest{
				UserID:   fx.userID,
				DoctorID: fx.doctorID,
				Date:     "2026-09-01",
				Time:     "10:30",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, conflicted int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.Equal(t, errors.ErrCodeSlotConflict, errors.CodeOf(err))
		conflicted++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicted)
}

func TestLifecycleTransitions(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()

	a := fx.book(t, "2026-09-01", "10:30")

	confirmed, err := fx.svc.Confirm(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, confirmed.Status)

	// Confirming twice is an invalid transition.
	_, err = fx.svc.Confirm(ctx, a.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidTransition, errors.CodeOf(err))

	cancelled, err := fx.svc.Cancel(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)

	// Cancel is idempotent.
	again, err := fx.svc.Cancel(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, again.Status)

	// Cancelled is terminal.
	_, err = fx.svc.Confirm(ctx, a.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidTransition, errors.CodeOf(err))

	assert.Equal(t, []string{
		event.TypeAppointmentBooked,
		event.TypeAppointmentConfirmed,
		event.TypeAppointmentCancelled,
	}, fx.outbox.eventTypes())
}

func TestLazySettlement(t *testing.T) {
	fx := newFixture(t, Options{CompletionGrace: 15 * time.Minute})
	ctx := context.Background()

	a := fx.book(t, "2026-09-01", "10:30")
	_, err := fx.svc.Confirm(ctx, a.ID)
	require.NoError(t, err)

	// Just inside the grace period: still confirmed.
	fx.svc.now = func() time.Time { return a.EndTime.Add(10 * time.Minute) }
	view, err := fx.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, view.Status)

	// Past the grace period: settled to completed on read.
	fx.svc.now = func() time.Time { return a.EndTime.Add(16 * time.Minute) }
	view, err = fx.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, view.Status)

	stored, err := fx.appts.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, stored.Status)
}

func TestCompleteElapsedSweep(t *testing.T) {
	fx := newFixture(t, Options{CompletionGrace: 15 * time.Minute})
	ctx := context.Background()

	a := fx.book(t, "2026-09-01", "10:30")
	b := fx.book(t, "2026-09-01", "18:00")
	_, err := fx.svc.Confirm(ctx, a.ID)
	require.NoError(t, err)
	_, err = fx.svc.Confirm(ctx, b.ID)
	require.NoError(t, err)

	fx.svc.now = func() time.Time { return a.EndTime.Add(time.Hour) }
	n, err := fx.svc.CompleteElapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := fx.appts.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, stored.Status)
}

func TestChatAvailability(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()

	a := fx.book(t, "2026-09-01", "10:30")

	inHour := time.Date(2026, 9, 1, 10, 5, 0, 0, schedule.ClinicZone)

	// Pending: never available, even during the hour.
	fx.svc.now = func() time.Time { return inHour }
	view, err := fx.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, view.ChatAvailable)

	_, err = fx.svc.Confirm(ctx, a.ID)
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		now  time.Time
		want bool
	}{
		{"early same hour", time.Date(2026, 9, 1, 10, 0, 0, 0, schedule.ClinicZone), true},
		{"end of hour", time.Date(2026, 9, 1, 10, 59, 59, 0, schedule.ClinicZone), true},
		{"hour before", time.Date(2026, 9, 1, 9, 45, 0, 0, schedule.ClinicZone), false},
		{"hour after", time.Date(2026, 9, 1, 11, 0, 0, 0, schedule.ClinicZone), false},
		{"same hour seen from UTC", time.Date(2026, 9, 1, 4, 45, 0, 0, time.UTC), true},
		// Last: past the window, the read settles the appointment.
		{"next day same hour", time.Date(2026, 9, 2, 10, 30, 0, 0, schedule.ClinicZone), false},
	} {
		fx.svc.now = func() time.Time { return tc.now }
		view, err = fx.svc.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, view.ChatAvailable, tc.name)
	}
}

func TestListForUser(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()

	fx.book(t, "2026-09-01", "10:30")
	fx.book(t, "2026-09-02", "09:00")

	views, err := fx.svc.ListForUser(ctx, fx.userID)
	require.NoError(t, err)
	assert.Len(t, views, 2)

	_, err = fx.svc.ListForUser(ctx, uuid.New())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUserNotFound, errors.CodeOf(err))
}

func TestReschedule(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()

	a := fx.book(t, "2026-09-01", "10:30")
	_, err := fx.svc.Confirm(ctx, a.ID)
	require.NoError(t, err)

	moved, err := fx.svc.Reschedule(ctx, a.ID, &model.RescheduleAppointmentRequest{
		Date: "2026-09-03",
		Time: "14:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-09-03", moved.SlotDate)
	assert.Equal(t, "14:00", moved.SlotTime)
	assert.Equal(t, moved.StartTime.Add(time.Hour), moved.EndTime)
	// Reschedule never touches status.
	assert.Equal(t, model.AppointmentStatusConfirmed, moved.Status)

	// Old slot is free again.
	fx.book(t, "2026-09-01", "10:30")
}

func TestRescheduleToOwnSlot(t *testing.T) {
	fx := newFixture(t, Options{})

	a := fx.book(t, "2026-09-01", "10:30")

	// The appointment does not conflict with itself.
	moved, err := fx.svc.Reschedule(context.Background(), a.ID, &model.RescheduleAppointmentRequest{
		Date: "2026-09-01",
		Time: "10:30",
	})
	require.NoError(t, err)
	assert.Equal(t, "10:30", moved.SlotTime)
}

func TestRescheduleConflict(t *testing.T) {
	fx := newFixture(t, Options{})

	a := fx.book(t, "2026-09-01", "10:30")
	fx.book(t, "2026-09-01", "11:30")

	_, err := fx.svc.Reschedule(context.Background(), a.ID, &model.RescheduleAppointmentRequest{
		Date: "2026-09-01",
		Time: "11:30",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSlotConflict, errors.CodeOf(err))

	// Nothing changed on the failed move.
	stored, err := fx.appts.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "10:30", stored.SlotTime)
}

func TestRescheduleTerminal(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()

	a := fx.book(t, "2026-09-01", "10:30")
	_, err := fx.svc.Cancel(ctx, a.ID)
	require.NoError(t, err)

	_, err = fx.svc.Reschedule(ctx, a.ID, &model.RescheduleAppointmentRequest{
		Date: "2026-09-03",
		Time: "14:00",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidTransition, errors.CodeOf(err))
}

func TestDelete(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()

	a := fx.book(t, "2026-09-01", "10:30")

	err := fx.svc.Delete(ctx, a.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeBadRequest, errors.CodeOf(err))

	_, err = fx.svc.Cancel(ctx, a.ID)
	require.NoError(t, err)
	require.NoError(t, fx.svc.Delete(ctx, a.ID))

	_, err = fx.appts.Get(ctx, a.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
