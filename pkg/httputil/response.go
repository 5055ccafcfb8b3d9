package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/booking-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RespondWithError maps an application error to its HTTP status. Validation
// failures keep their message; anything else is surfaced generically.
func RespondWithError(c *gin.Context, err error) {
	message := "Server error. Please try again later."
	status := http.StatusInternalServerError

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
		status = StatusFor(appErr.Code)
		if status == http.StatusInternalServerError {
			message = "Server error. Please try again later."
		}
	}

	c.JSON(status, Response{
		Success: false,
		Message: message,
	})
}

// StatusFor maps error codes to HTTP status codes.
func StatusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeUserNotFound, errors.ErrCodeDoctorNotFound:
		return http.StatusNotFound
	case errors.ErrCodeSlotConflict, errors.ErrCodeInvalidTime,
		errors.ErrCodeInvalidTransition, errors.ErrCodeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
