package event

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

// Lifecycle event types staged through the outbox.
const (
	TypeAppointmentBooked      = "appointment.booked"
	TypeAppointmentConfirmed   = "appointment.confirmed"
	TypeAppointmentCancelled   = "appointment.cancelled"
	TypeAppointmentCompleted   = "appointment.completed"
	TypeAppointmentRescheduled = "appointment.rescheduled"
)

// Emitter stages domain events in the outbox table. Publishing to the broker
// happens out-of-band in the worker, so a broker outage never fails a booking.
type Emitter struct {
	outbox repository.OutboxRepository
	logger zerolog.Logger
}

func NewEmitter(outbox repository.OutboxRepository, logger zerolog.Logger) *Emitter {
	return &Emitter{outbox: outbox, logger: logger}
}

// Emit marshals payload and stages it. Failures are logged and swallowed:
// the appointment write already committed and must not be rolled back for
// an eventing problem.
func (e *Emitter) Emit(ctx context.Context, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		return
	}

	evt := &model.OutboxEvent{
		EventType: eventType,
		Payload:   data,
	}
	if err := e.outbox.Create(ctx, evt); err != nil {
		e.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to stage outbox event")
	}
}

// AppointmentPayload is the wire shape of every appointment lifecycle event.
type AppointmentPayload struct {
	AppointmentID string `json:"appointmentId"`
	UserID        string `json:"userId"`
	DoctorID      string `json:"doctorId"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Status        string `json:"status"`
}

// NewAppointmentPayload flattens an appointment into its event payload.
func NewAppointmentPayload(a *model.Appointment) AppointmentPayload {
	return AppointmentPayload{
		AppointmentID: a.ID.String(),
		UserID:        a.UserID.String(),
		DoctorID:      a.DoctorID.String(),
		Date:          a.SlotDate,
		Time:          a.SlotTime,
		Status:        string(a.Status),
	}
}
