package scheduling

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/schedule"
	"github.com/jwalitptl/booking-api/internal/service/event"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

// Options tunes the booking engine.
type Options struct {
	// IncludeCancelledInConflict makes cancelled appointments keep blocking
	// their slot. Off by default: cancelling frees the slot.
	IncludeCancelledInConflict bool
	// CompletionGrace delays lazy auto-completion past the session end.
	CompletionGrace time.Duration
}

// Service is the appointment booking engine and lifecycle manager.
type Service struct {
	users        repository.UserRepository
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
	emitter      *event.Emitter
	locks        *schedule.SlotLocks
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	opts         Options

	// now is swappable so tests can pin the clock.
	now func() time.Time
}

func NewService(
	users repository.UserRepository,
	doctors repository.DoctorRepository,
	appointments repository.AppointmentRepository,
	emitter *event.Emitter,
	m *metrics.Metrics,
	logger zerolog.Logger,
	opts Options,
) *Service {
	return &Service{
		users:        users,
		doctors:      doctors,
		appointments: appointments,
		emitter:      emitter,
		locks:        schedule.NewSlotLocks(),
		metrics:      m,
		logger:       logger,
		opts:         opts,
		now:          time.Now,
	}
}

// Book reserves a slot. Validation order is fixed: user existence, then
// doctor existence, then slot availability, then window arithmetic. The
// per-slot lock makes the availability check and the insert atomic for a
// given (doctor, date, time); the partial unique index backs it up across
// processes.
func (s *Service) Book(ctx context.Context, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	if _, err := s.users.Get(ctx, req.UserID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			s.metrics.BookingFailures.WithLabelValues("user_not_found").Inc()
			return nil, errors.NewUserNotFound(err)
		}
		return nil, errors.NewPersistence(err)
	}

	if _, err := s.doctors.Get(ctx, req.DoctorID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			s.metrics.BookingFailures.WithLabelValues("doctor_not_found").Inc()
			return nil, errors.NewDoctorNotFound(err)
		}
		return nil, errors.NewPersistence(err)
	}

	release := s.locks.Lock(schedule.SlotKey(req.DoctorID, req.Date, req.Time))
	defer release()

	taken, err := s.appointments.ExistsForSlot(ctx, req.DoctorID, req.Date, req.Time, s.opts.IncludeCancelledInConflict, nil)
	if err != nil {
		return nil, errors.NewPersistence(err)
	}
	if taken {
		s.metrics.BookingConflicts.Inc()
		return nil, errors.NewSlotConflict(req.Date, req.Time)
	}

	window, err := schedule.ComputeWindow(req.Date, req.Time)
	if err != nil {
		s.metrics.BookingFailures.WithLabelValues("invalid_time").Inc()
		return nil, errors.NewInvalidTimeFormat(req.Date, req.Time, err)
	}

	appointment := &model.Appointment{
		UserID:      req.UserID,
		DoctorID:    req.DoctorID,
		SlotDate:    req.Date,
		SlotTime:    req.Time,
		StartTime:   window.Start,
		EndTime:     window.End,
		ChatEnabled: true,
	}

	if err := s.appointments.Create(ctx, appointment); err != nil {
		if stderrors.Is(err, repository.ErrDuplicateSlot) {
			s.metrics.BookingConflicts.Inc()
			return nil, errors.NewSlotConflict(req.Date, req.Time)
		}
		return nil, errors.NewPersistence(err)
	}

	s.metrics.BookingsTotal.Inc()
	s.emitter.Emit(ctx, event.TypeAppointmentBooked, event.NewAppointmentPayload(appointment))
	s.logger.Info().
		Str("appointment_id", appointment.ID.String()).
		Str("doctor_id", appointment.DoctorID.String()).
		Str("date", appointment.SlotDate).
		Str("time", appointment.SlotTime).
		Msg("appointment booked")

	return appointment, nil
}

// Get returns one appointment, settled lazily: a confirmed appointment whose
// window plus grace has elapsed reads back as completed.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.AppointmentView, error) {
	appointment, err := s.appointments.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewBadRequest("Appointment not found.", err)
		}
		return nil, errors.NewPersistence(err)
	}
	if err := s.settle(ctx, appointment); err != nil {
		return nil, err
	}
	return s.view(appointment), nil
}

// ListForUser returns the user's appointments ordered by slot, each settled
// lazily and decorated with the live-chat affordance.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.AppointmentView, error) {
	if _, err := s.users.Get(ctx, userID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewUserNotFound(err)
		}
		return nil, errors.NewPersistence(err)
	}

	appointments, err := s.appointments.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.NewPersistence(err)
	}

	views := make([]*model.AppointmentView, 0, len(appointments))
	for _, a := range appointments {
		if err := s.settle(ctx, a); err != nil {
			return nil, err
		}
		views = append(views, s.view(a))
	}
	return views, nil
}

// Confirm moves a pending appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, id, model.AppointmentStatusConfirmed, event.TypeAppointmentConfirmed)
}

// Cancel moves an appointment to cancelled. Cancelling an already-cancelled
// appointment is a no-op rather than an error.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	appointment, err := s.appointments.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewBadRequest("Appointment not found.", err)
		}
		return nil, errors.NewPersistence(err)
	}
	if appointment.Status == model.AppointmentStatusCancelled {
		return appointment, nil
	}
	return s.applyTransition(ctx, appointment, model.AppointmentStatusCancelled, event.TypeAppointmentCancelled)
}

// Reschedule moves an appointment to a new slot atomically: either the slot,
// date, time and window all change together or nothing does. Status is
// untouched.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	appointment, err := s.appointments.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewBadRequest("Appointment not found.", err)
		}
		return nil, errors.NewPersistence(err)
	}
	if appointment.Status.Terminal() {
		return nil, errors.NewInvalidTransition(string(appointment.Status), string(appointment.Status))
	}

	release := s.locks.Lock(schedule.SlotKey(appointment.DoctorID, req.Date, req.Time))
	defer release()

	taken, err := s.appointments.ExistsForSlot(ctx, appointment.DoctorID, req.Date, req.Time, s.opts.IncludeCancelledInConflict, &appointment.ID)
	if err != nil {
		return nil, errors.NewPersistence(err)
	}
	if taken {
		s.metrics.BookingConflicts.Inc()
		return nil, errors.NewSlotConflict(req.Date, req.Time)
	}

	window, err := schedule.ComputeWindow(req.Date, req.Time)
	if err != nil {
		return nil, errors.NewInvalidTimeFormat(req.Date, req.Time, err)
	}

	if err := s.appointments.UpdateSlot(ctx, appointment.ID, req.Date, req.Time, window.Start, window.End); err != nil {
		if stderrors.Is(err, repository.ErrDuplicateSlot) {
			s.metrics.BookingConflicts.Inc()
			return nil, errors.NewSlotConflict(req.Date, req.Time)
		}
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewBadRequest("Appointment not found.", err)
		}
		return nil, errors.NewPersistence(err)
	}

	appointment.SlotDate = req.Date
	appointment.SlotTime = req.Time
	appointment.StartTime = window.Start
	appointment.EndTime = window.End

	s.emitter.Emit(ctx, event.TypeAppointmentRescheduled, event.NewAppointmentPayload(appointment))
	s.logger.Info().
		Str("appointment_id", appointment.ID.String()).
		Str("date", req.Date).
		Str("time", req.Time).
		Msg("appointment rescheduled")

	return appointment, nil
}

// Delete removes an appointment record. Only cancelled appointments may be
// deleted; active ones must be cancelled first so the lifecycle stays
// auditable.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	appointment, err := s.appointments.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NewBadRequest("Appointment not found.", err)
		}
		return errors.NewPersistence(err)
	}
	if appointment.Status != model.AppointmentStatusCancelled {
		return errors.NewBadRequest("Only cancelled appointments can be deleted.", nil)
	}
	if err := s.appointments.Delete(ctx, id); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NewBadRequest("Appointment not found.", err)
		}
		return errors.NewPersistence(err)
	}
	return nil
}

// CompleteElapsed settles every confirmed appointment whose window plus
// grace has elapsed. Called by the background sweeper.
func (s *Service) CompleteElapsed(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.opts.CompletionGrace)
	n, err := s.appointments.CompleteElapsed(ctx, cutoff)
	if err != nil {
		return 0, errors.NewPersistence(err)
	}
	if n > 0 {
		s.metrics.AppointmentsSettled.Add(float64(n))
		s.logger.Info().Int64("count", n).Msg("settled elapsed appointments")
	}
	return n, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, target model.AppointmentStatus, eventType string) (*model.Appointment, error) {
	appointment, err := s.appointments.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewBadRequest("Appointment not found.", err)
		}
		return nil, errors.NewPersistence(err)
	}
	return s.applyTransition(ctx, appointment, target, eventType)
}

func (s *Service) applyTransition(ctx context.Context, appointment *model.Appointment, target model.AppointmentStatus, eventType string) (*model.Appointment, error) {
	if !appointment.Status.CanTransitionTo(target) {
		return nil, errors.NewInvalidTransition(string(appointment.Status), string(target))
	}

	from := appointment.Status
	if err := s.appointments.UpdateStatus(ctx, appointment.ID, target); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewBadRequest("Appointment not found.", err)
		}
		return nil, errors.NewPersistence(err)
	}
	appointment.Status = target

	s.metrics.StatusTransitions.WithLabelValues(string(from), string(target)).Inc()
	s.emitter.Emit(ctx, eventType, event.NewAppointmentPayload(appointment))
	s.logger.Info().
		Str("appointment_id", appointment.ID.String()).
		Str("from", string(from)).
		Str("to", string(target)).
		Msg("appointment status changed")

	return appointment, nil
}

// settle applies lazy completion: a confirmed appointment whose end time plus
// grace is in the past is flipped to completed before it is returned.
func (s *Service) settle(ctx context.Context, appointment *model.Appointment) error {
	if appointment.Status != model.AppointmentStatusConfirmed {
		return nil
	}
	if s.now().Before(appointment.EndTime.Add(s.opts.CompletionGrace)) {
		return nil
	}
	if _, err := s.applyTransition(ctx, appointment, model.AppointmentStatusCompleted, event.TypeAppointmentCompleted); err != nil {
		return err
	}
	s.metrics.AppointmentsSettled.Inc()
	return nil
}

// view decorates an appointment with the request-time chat affordance: chat
// is offered only while a confirmed session is live in its hour bucket.
func (s *Service) view(appointment *model.Appointment) *model.AppointmentView {
	live := appointment.ChatEnabled &&
		appointment.Status == model.AppointmentStatusConfirmed &&
		schedule.IsLive(appointment.StartTime, s.now())
	return &model.AppointmentView{Appointment: appointment, ChatAvailable: live}
}
