package doctor

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

type Roster interface {
	CreateDoctor(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	ListDoctors(ctx context.Context) ([]*model.Doctor, error)
}

type Handler struct {
	service Roster
}

func NewHandler(service Roster) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var req model.CreateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest(err.Error(), err))
		return
	}

	doctor, err := h.service.CreateDoctor(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httputil.Response{
		Success: true,
		Message: "Doctor created",
		Data:    doctor,
	})
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid doctor ID", err))
		return
	}

	doctor, err := h.service.GetDoctor(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "", doctor)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.service.ListDoctors(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "", doctors)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.POST("", h.CreateDoctor)
		doctors.GET("", h.ListDoctors)
		doctors.GET("/:id", h.GetDoctor)
	}
}
