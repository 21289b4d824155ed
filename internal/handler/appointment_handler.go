package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/agenda/internal/appointment"
	"github.com/hitoshi/agenda/internal/model"
)

// AppointmentServiceInterface は予約ハンドラーが必要とするサービスインターフェース。
// appointment.Serviceが満たす。
type AppointmentServiceInterface interface {
	Create(ctx context.Context, ownerID string, in appointment.Input) (*model.Appointment, error)
	ListByDate(ctx context.Context, ownerID, date string) ([]*model.Appointment, error)
	ListByClient(ctx context.Context, ownerID, clientID string) ([]*model.Appointment, error)
	MarkedDates(ctx context.Context, ownerID string) ([]string, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// AppointmentHandler は予約管理のHTTPハンドラー。
type AppointmentHandler struct {
	service AppointmentServiceInterface
}

// NewAppointmentHandler はAppointmentHandlerを生成する。
func NewAppointmentHandler(service AppointmentServiceInterface) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

// appointmentResponse は予約のAPIレスポンス。
type appointmentResponse struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id"`
	ClientName string    `json:"client_name"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
}

type appointmentRequest struct {
	ClientID string `json:"client_id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Notes    string `json:"notes"`
}

type markedDatesResponse struct {
	Dates []string `json:"dates"`
}

func toAppointmentResponses(list []*model.Appointment) []appointmentResponse {
	resp := make([]appointmentResponse, len(list))
	for i, a := range list {
		resp[i] = toAppointmentResponse(a)
	}
	return resp
}

func toAppointmentResponse(a *model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:         a.ID,
		ClientID:   a.ClientID,
		ClientName: a.ClientName,
		Date:       a.Date,
		Time:       a.Time,
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt,
	}
}

// ListByDate は指定日の予約を時刻順で返す。
// GET /api/appointments?date=YYYY-MM-DD
func (h *AppointmentHandler) ListByDate(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListByDate(r.Context(), uid, r.URL.Query().Get("date"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponses(list))
}

// Create は予約を登録する。
// POST /api/appointments
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	var req appointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := h.service.Create(r.Context(), uid, appointment.Input{
		ClientID: req.ClientID,
		Date:     req.Date,
		Time:     req.Time,
		Notes:    req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(a))
}

// ListByClient は顧客の予約履歴を新しい順で返す。
// GET /api/clients/{id}/appointments
func (h *AppointmentHandler) ListByClient(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListByClient(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponses(list))
}

// MarkedDates は予約のある日付を返す。
// GET /api/appointments/dates
func (h *AppointmentHandler) MarkedDates(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	dates, err := h.service.MarkedDates(r.Context(), uid)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, markedDatesResponse{Dates: dates})
}

// Delete は予約を削除する。
// DELETE /api/appointments/{id}
func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
