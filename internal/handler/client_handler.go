package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/agenda/internal/client"
	"github.com/hitoshi/agenda/internal/model"
)

// ClientServiceInterface は顧客ハンドラーが必要とするサービスインターフェース。
// client.Serviceが満たす。
type ClientServiceInterface interface {
	Add(ctx context.Context, ownerID string, in client.Input) (*model.Client, error)
	Update(ctx context.Context, ownerID, id string, in client.Input) (*model.Client, error)
	Get(ctx context.Context, ownerID, id string) (*model.Client, error)
	List(ctx context.Context, ownerID string) ([]*model.Client, error)
}

// ClientHandler は顧客管理のHTTPハンドラー。
type ClientHandler struct {
	service ClientServiceInterface
}

// NewClientHandler はClientHandlerを生成する。
func NewClientHandler(service ClientServiceInterface) *ClientHandler {
	return &ClientHandler{service: service}
}

// clientResponse は顧客のAPIレスポンス。
type clientResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type clientRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (req clientRequest) input() client.Input {
	return client.Input{Name: req.Name, Email: req.Email, Phone: req.Phone}
}

func toClientResponse(c *model.Client) clientResponse {
	return clientResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// List は顧客一覧を返す。
// GET /api/clients
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	clients, err := h.service.List(r.Context(), uid)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]clientResponse, len(clients))
	for i, c := range clients {
		resp[i] = toClientResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create は顧客を登録する。
// POST /api/clients
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	var req clientRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.Add(r.Context(), uid, req.input())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientResponse(c))
}

// Get は顧客を1件返す。
// GET /api/clients/{id}
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	c, err := h.service.Get(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientResponse(c))
}

// Update は顧客情報を更新する。
// PUT /api/clients/{id}
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	var req clientRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.Update(r.Context(), uid, chi.URLParam(r, "id"), req.input())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientResponse(c))
}
