package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// transitions is the lifecycle graph: pending -> confirmed -> completed,
// cancelled reachable from pending or confirmed. Nothing re-enters pending;
// completed and cancelled are terminal.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusPending:   {AppointmentStatusConfirmed, AppointmentStatusCancelled},
	AppointmentStatusConfirmed: {AppointmentStatusCompleted, AppointmentStatusCancelled},
}

// CanTransitionTo reports whether the lifecycle graph allows moving from s
// to target.
func (s AppointmentStatus) CanTransitionTo(target AppointmentStatus) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are permitted from s.
func (s AppointmentStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Appointment is one booked session. SlotDate and SlotTime keep the
// clinic-local wall-clock strings the client sent; StartTime and EndTime are
// the derived absolute instants.
type Appointment struct {
	Base
	UserID      uuid.UUID         `db:"user_id" json:"userId"`
	DoctorID    uuid.UUID         `db:"doctor_id" json:"doctorId"`
	SlotDate    string            `db:"slot_date" json:"date"`
	SlotTime    string            `db:"slot_time" json:"time"`
	StartTime   time.Time         `db:"start_time" json:"startTime"`
	EndTime     time.Time         `db:"end_time" json:"endTime"`
	Status      AppointmentStatus `db:"status" json:"status"`
	ChatEnabled bool              `db:"chat_enabled" json:"chatEnabled"`
}

// AppointmentView is an appointment decorated with the request-time chat
// affordance. ChatAvailable is recomputed on every read; it is never stored.
type AppointmentView struct {
	*Appointment
	ChatAvailable bool `json:"chatAvailable"`
}

type BookAppointmentRequest struct {
	UserID   uuid.UUID `json:"userId" binding:"required"`
	DoctorID uuid.UUID `json:"doctorId" binding:"required"`
	Date     string    `json:"date" binding:"required,slotdate"`
	Time     string    `json:"time" binding:"required,slottime"`
}

type RescheduleAppointmentRequest struct {
	Date string `json:"date" binding:"required,slotdate"`
	Time string `json:"time" binding:"required,slottime"`
}
