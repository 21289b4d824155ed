package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/agenda/internal/model"
	"github.com/hitoshi/agenda/internal/session"
)

// DefaultSettleTimeout は認証操作の成功後、Sessionの確定を待つ上限時間。
const DefaultSettleTimeout = 15 * time.Second

// AuthServiceInterface はセッションハンドラーが必要とする認証操作のインターフェース。
// auth.Serviceが満たす。
type AuthServiceInterface interface {
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password, name string) error
	SignOut(ctx context.Context) error
}

// SessionStore はSessionの参照・待機・購読を提供する。session.Storeが満たす。
type SessionStore interface {
	Session() model.Session
	Wait(ctx context.Context, pred func(model.Session) bool) (model.Session, error)
	Subscribe(listener session.Listener) func()
}

// SessionHandler はログイン状態の参照と認証操作のHTTPハンドラー。
type SessionHandler struct {
	auth          AuthServiceInterface
	sessions      SessionStore
	settleTimeout time.Duration
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(auth AuthServiceInterface, sessions SessionStore, settleTimeout time.Duration) *SessionHandler {
	if settleTimeout <= 0 {
		settleTimeout = DefaultSettleTimeout
	}
	return &SessionHandler{
		auth:          auth,
		sessions:      sessions,
		settleTimeout: settleTimeout,
	}
}

type identityResponse struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url"`
}

// sessionResponse はSessionのAPIレスポンス。
type sessionResponse struct {
	SignedIn  bool              `json:"signed_in"`
	IsLoading bool              `json:"is_loading"`
	Identity  *identityResponse `json:"identity"`
}

func toSessionResponse(s model.Session) sessionResponse {
	resp := sessionResponse{
		SignedIn:  s.Identity != nil,
		IsLoading: s.IsLoading,
	}
	if s.Identity != nil {
		resp.Identity = &identityResponse{
			UID:         s.Identity.UID,
			Email:       s.Identity.Email,
			DisplayName: s.Identity.DisplayName,
			PhotoURL:    s.Identity.PhotoURL,
		}
	}
	return resp
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Get は現在のSessionを返す。
// GET /api/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(h.sessions.Session()))
}

// SignIn はログインし、Sessionの確定後の状態を返す。
// POST /api/session/sign-in
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.auth.SignIn(r.Context(), req.Email, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(h.settle(r.Context())))
}

// SignUp はアカウントを作成し、Sessionの確定後の状態を返す。
// POST /api/session/sign-up
func (h *SessionHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.Name); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(h.settle(r.Context())))
}

// SignOut はログアウトし、Sessionの確定後の状態を返す。
// POST /api/session/sign-out
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(h.settle(r.Context())))
}

// settle は認証状態の通知が反映され、読み込み中が解除されるまで待つ。
// 待機が打ち切られた場合はその時点のSessionを返す。
func (h *SessionHandler) settle(ctx context.Context) model.Session {
	ctx, cancel := context.WithTimeout(ctx, h.settleTimeout)
	defer cancel()

	s, err := h.sessions.Wait(ctx, func(s model.Session) bool { return !s.IsLoading })
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("session did not settle", slog.String("error", err.Error()))
	}
	return s
}
