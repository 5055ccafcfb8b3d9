package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the class of an application error.
type ErrorCode int

const (
	ErrCodeUserNotFound ErrorCode = iota + 1000
	ErrCodeDoctorNotFound
	ErrCodeSlotConflict
	ErrCodeInvalidTime
	ErrCodeInvalidTransition
	ErrCodeBadRequest
	ErrCodePersistence
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the error code, defaulting to ErrCodePersistence for
// errors that did not originate in the service layer.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodePersistence
}

func NewUserNotFound(err error) *AppError {
	return &AppError{Code: ErrCodeUserNotFound, Message: "User not found.", Err: err}
}

func NewDoctorNotFound(err error) *AppError {
	return &AppError{Code: ErrCodeDoctorNotFound, Message: "Doctor not found.", Err: err}
}

// NewSlotConflict carries the human-readable slot in its message so clients
// can display it directly.
func NewSlotConflict(date, timeOfDay string) *AppError {
	return &AppError{
		Code:    ErrCodeSlotConflict,
		Message: fmt.Sprintf("Appointment already booked for %s and %s", date, timeOfDay),
	}
}

func NewInvalidTimeFormat(date, timeOfDay string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidTime,
		Message: fmt.Sprintf("Invalid date or time: %q %q", date, timeOfDay),
		Err:     err,
	}
}

func NewInvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition appointment from %s to %s", from, to),
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{Code: ErrCodeBadRequest, Message: message, Err: err}
}

func NewPersistence(err error) *AppError {
	return &AppError{Code: ErrCodePersistence, Message: "Server error. Please try again later.", Err: err}
}
