package identity

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

const (
	doctorCacheTTL     = 5 * time.Minute
	doctorCacheCleanup = 10 * time.Minute
)

// Service manages the user and doctor records the booking engine books
// against. Doctor reads are cached: the roster changes rarely but is hit on
// every booking.
type Service struct {
	users   repository.UserRepository
	doctors repository.DoctorRepository
	cache   *cache.Cache
	logger  zerolog.Logger
}

func NewService(users repository.UserRepository, doctors repository.DoctorRepository, logger zerolog.Logger) *Service {
	return &Service{
		users:   users,
		doctors: doctors,
		cache:   cache.New(doctorCacheTTL, doctorCacheCleanup),
		logger:  logger,
	}
}

func (s *Service) CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, errors.NewBadRequest("Email already registered.", nil)
	} else if !stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.NewPersistence(err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.NewPersistence(fmt.Errorf("failed to hash password: %w", err))
	}

	user := &model.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  string(hashed),
		Age:       req.Age,
		Gender:    req.Gender,
		PhoneNo:   req.PhoneNo,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, errors.NewPersistence(err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user created")
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewUserNotFound(err)
		}
		return nil, errors.NewPersistence(err)
	}
	return user, nil
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, req *model.UpdateUserRequest) (*model.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewUserNotFound(err)
		}
		return nil, errors.NewPersistence(err)
	}

	// The new email must not belong to someone else.
	if req.Email != user.Email {
		if other, err := s.users.GetByEmail(ctx, req.Email); err == nil && other.ID != id {
			return nil, errors.NewBadRequest("Email already registered.", nil)
		} else if err != nil && !stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewPersistence(err)
		}
		user.Email = req.Email
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Age != nil {
		user.Age = *req.Age
	}
	if req.Gender != nil {
		user.Gender = *req.Gender
	}
	if req.PhoneNo != nil {
		user.PhoneNo = *req.PhoneNo
	}
	if req.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, errors.NewPersistence(fmt.Errorf("failed to hash password: %w", err))
		}
		user.Password = string(hashed)
	}

	if err := s.users.Update(ctx, user); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewUserNotFound(err)
		}
		return nil, errors.NewPersistence(err)
	}
	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NewUserNotFound(err)
		}
		return errors.NewPersistence(err)
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, errors.NewPersistence(err)
	}
	return users, nil
}

func (s *Service) CreateDoctor(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error) {
	doctor := &model.Doctor{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Specialization: req.Specialization,
	}
	if err := s.doctors.Create(ctx, doctor); err != nil {
		return nil, errors.NewPersistence(err)
	}

	s.cache.Set(doctorCacheKey(doctor.ID), doctor, cache.DefaultExpiration)
	s.logger.Info().Str("doctor_id", doctor.ID.String()).Msg("doctor created")
	return doctor, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	if cached, ok := s.cache.Get(doctorCacheKey(id)); ok {
		return cached.(*model.Doctor), nil
	}

	doctor, err := s.doctors.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewDoctorNotFound(err)
		}
		return nil, errors.NewPersistence(err)
	}

	s.cache.Set(doctorCacheKey(id), doctor, cache.DefaultExpiration)
	return doctor, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]*model.Doctor, error) {
	doctors, err := s.doctors.List(ctx)
	if err != nil {
		return nil, errors.NewPersistence(err)
	}
	return doctors, nil
}

func doctorCacheKey(id uuid.UUID) string {
	return "doctor:" + id.String()
}
