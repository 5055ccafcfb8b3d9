package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	// status is deliberately omitted so the schema default applies;
	// RETURNING reads back what was actually persisted.
	query := `
		INSERT INTO appointments (
			id, user_id, doctor_id, slot_date, slot_time,
			start_time, end_time, chat_enabled,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING status
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	err := r.db.GetContext(ctx, &appointment.Status, query,
		appointment.ID,
		appointment.UserID,
		appointment.DoctorID,
		appointment.SlotDate,
		appointment.SlotTime,
		appointment.StartTime,
		appointment.EndTime,
		appointment.ChatEnabled,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return mapErr(err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, user_id, doctor_id, slot_date, slot_time,
		       start_time, end_time, status, chat_enabled,
		       created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		return nil, mapErr(err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) ExistsForSlot(ctx context.Context, doctorID uuid.UUID, date, timeOfDay string, includeCancelled bool, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			AND slot_date = $2
			AND slot_time = $3
	`
	args := []interface{}{doctorID, date, timeOfDay}

	if !includeCancelled {
		query += " AND status <> 'cancelled'"
	}
	if excludeID != nil {
		query += fmt.Sprintf(" AND id != $%d", len(args)+1)
		args = append(args, *excludeID)
	}
	query += ")"

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("failed to check slot: %w", err)
	}
	return exists, nil
}

func (r *appointmentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT id, user_id, doctor_id, slot_date, slot_time,
		       start_time, end_time, status, chat_enabled,
		       created_at, updated_at
		FROM appointments
		WHERE user_id = $1
		ORDER BY slot_date ASC, slot_time ASC
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *appointmentRepository) UpdateSlot(ctx context.Context, id uuid.UUID, date, timeOfDay string, start, end time.Time) error {
	query := `
		UPDATE appointments
		SET slot_date = $1, slot_time = $2, start_time = $3, end_time = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := r.db.ExecContext(ctx, query, date, timeOfDay, start, end, time.Now(), id)
	if err != nil {
		return mapErr(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM appointments
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *appointmentRepository) CompleteElapsed(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE appointments
		SET status = 'completed', updated_at = NOW()
		WHERE status = 'confirmed'
		AND end_time < $1
	`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to settle elapsed appointments: %w", err)
	}
	return result.RowsAffected()
}
