package appointment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

type stubScheduler struct {
	bookFn       func(ctx context.Context, req *model.BookAppointmentRequest) (*model.Appointment, error)
	getFn        func(ctx context.Context, id uuid.UUID) (*model.AppointmentView, error)
	listFn       func(ctx context.Context, userID uuid.UUID) ([]*model.AppointmentView, error)
	confirmFn    func(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	cancelFn     func(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	rescheduleFn func(ctx context.Context, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error)
	deleteFn     func(ctx context.Context, id uuid.UUID) error
}

func (s *stubScheduler) Book(ctx context.Context, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	return s.bookFn(ctx, req)
}

func (s *stubScheduler) Get(ctx context.Context, id uuid.UUID) (*model.AppointmentView, error) {
	return s.getFn(ctx, id)
}

func (s *stubScheduler) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.AppointmentView, error) {
	return s.listFn(ctx, userID)
}

func (s *stubScheduler) Confirm(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.confirmFn(ctx, id)
}

func (s *stubScheduler) Cancel(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.cancelFn(ctx, id)
}

func (s *stubScheduler) Reschedule(ctx context.Context, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	return s.rescheduleFn(ctx, id, req)
}

func (s *stubScheduler) Delete(ctx context.Context, id uuid.UUID) error {
	return s.deleteFn(ctx, id)
}

func setupRouter(s *stubScheduler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	middleware.RegisterValidators()
	r := gin.New()
	NewHandler(s).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func bookBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"userId":   uuid.NewString(),
		"doctorId": uuid.NewString(),
		"date":     "2026-09-01",
		"time":     "10:30",
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestBookAppointmentCreated(t *testing.T) {
	stub := &stubScheduler{
		bookFn: func(_ context.Context, req *model.BookAppointmentRequest) (*model.Appointment, error) {
			a := &model.Appointment{
				UserID:   req.UserID,
				DoctorID: req.DoctorID,
				SlotDate: req.Date,
				SlotTime: req.Time,
				Status:   model.AppointmentStatusPending,
			}
			a.ID = uuid.New()
			return a, nil
		},
	}
	r := setupRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", bookBody(t))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Success     bool               `json:"success"`
		Message     string             `json:"message"`
		Appointment *model.Appointment `json:"appointment"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Appointment booked successfully", resp.Message)
	require.NotNil(t, resp.Appointment)
	assert.Equal(t, model.AppointmentStatusPending, resp.Appointment.Status)
}

func TestBookAppointmentMissingFields(t *testing.T) {
	stub := &stubScheduler{
		bookFn: func(_ context.Context, _ *model.BookAppointmentRequest) (*model.Appointment, error) {
			t.Fatal("service must not be reached on a bind failure")
			return nil, nil
		},
	}
	r := setupRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", bytes.NewBufferString(`{"date":"2026-09-01"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookAppointmentErrorMapping(t *testing.T) {
	for _, tc := range []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"user not found", errors.NewUserNotFound(nil), http.StatusNotFound, "User not found."},
		{"doctor not found", errors.NewDoctorNotFound(nil), http.StatusNotFound, "Doctor not found."},
		{"slot conflict", errors.NewSlotConflict("2026-09-01", "10:30"), http.StatusBadRequest, "Appointment already booked for 2026-09-01 and 10:30"},
		{"persistence", errors.NewPersistence(assert.AnError), http.StatusInternalServerError, "Server error. Please try again later."},
	} {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubScheduler{
				bookFn: func(_ context.Context, _ *model.BookAppointmentRequest) (*model.Appointment, error) {
					return nil, tc.err
				},
			}
			r := setupRouter(stub)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", bookBody(t))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.wantStatus, w.Code)

			var resp struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tc.wantMsg, resp.Message)
		})
	}
}

func TestListUserAppointments(t *testing.T) {
	userID := uuid.New()
	stub := &stubScheduler{
		listFn: func(_ context.Context, id uuid.UUID) ([]*model.AppointmentView, error) {
			require.Equal(t, userID, id)
			a := &model.Appointment{Status: model.AppointmentStatusConfirmed}
			a.ID = uuid.New()
			return []*model.AppointmentView{{Appointment: a, ChatAvailable: true}}, nil
		},
	}
	r := setupRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID.String()+"/appointments", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    []struct {
			Status        string `json:"status"`
			ChatAvailable bool   `json:"chatAvailable"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.Data[0].ChatAvailable)
}

func TestLifecycleEndpoints(t *testing.T) {
	id := uuid.New()
	stub := &stubScheduler{
		confirmFn: func(_ context.Context, got uuid.UUID) (*model.Appointment, error) {
			require.Equal(t, id, got)
			a := &model.Appointment{Status: model.AppointmentStatusConfirmed}
			a.ID = got
			return a, nil
		},
		cancelFn: func(_ context.Context, got uuid.UUID) (*model.Appointment, error) {
			a := &model.Appointment{Status: model.AppointmentStatusCancelled}
			a.ID = got
			return a, nil
		},
		deleteFn: func(_ context.Context, _ uuid.UUID) error { return nil },
	}
	r := setupRouter(stub)

	for _, path := range []string{
		"/api/v1/appointments/" + id.String() + "/confirm",
		"/api/v1/appointments/" + id.String() + "/cancel",
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/appointments/"+id.String(), nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInvalidIDRejected(t *testing.T) {
	stub := &stubScheduler{
		getFn: func(_ context.Context, _ uuid.UUID) (*model.AppointmentView, error) {
			t.Fatal("service must not be reached on a malformed ID")
			return nil, nil
		},
	}
	r := setupRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/not-a-uuid", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvalidTransitionMapping(t *testing.T) {
	id := uuid.New()
	stub := &stubScheduler{
		confirmFn: func(_ context.Context, _ uuid.UUID) (*model.Appointment, error) {
			return nil, errors.NewInvalidTransition("completed", "confirmed")
		},
	}
	r := setupRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/"+id.String()+"/confirm", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
