package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
)

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (
			id, first_name, last_name, email, specialization,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	doctor.CreatedAt = time.Now()
	doctor.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		doctor.ID,
		doctor.FirstName,
		doctor.LastName,
		doctor.Email,
		doctor.Specialization,
		doctor.CreatedAt,
		doctor.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create doctor: %w", mapErr(err))
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `
		SELECT id, first_name, last_name, email, specialization,
		       created_at, updated_at
		FROM doctors
		WHERE id = $1
	`
	var doctor model.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, id); err != nil {
		return nil, mapErr(err)
	}
	return &doctor, nil
}

func (r *doctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	query := `
		SELECT id, first_name, last_name, email, specialization,
		       created_at, updated_at
		FROM doctors
		ORDER BY last_name ASC, first_name ASC
	`
	var doctors []*model.Doctor
	if err := r.db.SelectContext(ctx, &doctors, query); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}
