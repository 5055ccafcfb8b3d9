package appointment

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

// Scheduler is the slice of the scheduling service the handler needs.
type Scheduler interface {
	Book(ctx context.Context, req *model.BookAppointmentRequest) (*model.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*model.AppointmentView, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.AppointmentView, error)
	Confirm(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	service Scheduler
}

func NewHandler(service Scheduler) *Handler {
	return &Handler{service: service}
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest(err.Error(), err))
		return
	}

	appointment, err := h.service.Book(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"message":     "Appointment booked successfully",
		"appointment": appointment,
	})
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid appointment ID", err))
		return
	}

	view, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "", view)
}

func (h *Handler) ListUserAppointments(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid user ID", err))
		return
	}

	views, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "", views)
}

func (h *Handler) ConfirmAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid appointment ID", err))
		return
	}

	appointment, err := h.service.Confirm(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Appointment confirmed", appointment)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid appointment ID", err))
		return
	}

	appointment, err := h.service.Cancel(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Appointment cancelled", appointment)
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid appointment ID", err))
		return
	}

	var req model.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest(err.Error(), err))
		return
	}

	appointment, err := h.service.Reschedule(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Appointment rescheduled", appointment)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid appointment ID", err))
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Appointment deleted", nil)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.BookAppointment)
		appointments.GET("/:id", h.GetAppointment)
		appointments.POST("/:id/confirm", h.ConfirmAppointment)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.POST("/:id/reschedule", h.RescheduleAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)
	}
	r.GET("/users/:id/appointments", h.ListUserAppointments)
}
