package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateSlot is returned when an insert or update would violate the
// one-appointment-per-slot constraint at the storage layer.
var ErrDuplicateSlot = errors.New("slot already booked")

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.User, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		List(ctx context.Context) ([]*model.Doctor, error)
	}

	AppointmentRepository interface {
		// Create persists a new appointment; status is left to the schema
		// default and read back. Returns ErrDuplicateSlot when the partial
		// unique index rejects the tuple.
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// ExistsForSlot reports whether an appointment occupies the
		// (doctor, date, time) tuple. Cancelled rows count only when
		// includeCancelled is set; excludeID ignores one appointment so
		// reschedules do not conflict with themselves.
		ExistsForSlot(ctx context.Context, doctorID uuid.UUID, date, timeOfDay string, includeCancelled bool, excludeID *uuid.UUID) (bool, error)
		ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Appointment, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) error
		// UpdateSlot moves an appointment to a new slot and window in a
		// single statement. Returns ErrDuplicateSlot on index violation.
		UpdateSlot(ctx context.Context, id uuid.UUID, date, timeOfDay string, start, end time.Time) error
		Delete(ctx context.Context, id uuid.UUID) error
		// CompleteElapsed settles confirmed appointments whose end time
		// passed before cutoff and returns how many rows changed.
		CompleteElapsed(ctx context.Context, cutoff time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		BeginTx(ctx context.Context) (*sql.Tx, error)
		UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
