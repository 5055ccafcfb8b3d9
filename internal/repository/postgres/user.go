package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, first_name, last_name, email, password,
			age, gender, phone_no, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Password,
		user.Age,
		user.Gender,
		user.PhoneNo,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapErr(err))
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, first_name, last_name, email, password,
		       age, gender, phone_no, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, first_name, last_name, email, password,
		       age, gender, phone_no, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET first_name = $1, last_name = $2, email = $3, password = $4,
		    age = $5, gender = $6, phone_no = $7, updated_at = $8
		WHERE id = $9
	`
	user.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Password,
		user.Age,
		user.Gender,
		user.PhoneNo,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", mapErr(err))
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

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
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

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	query := `
		SELECT id, first_name, last_name, email, password,
		       age, gender, phone_no, created_at, updated_at
		FROM users
		ORDER BY created_at ASC
	`
	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
