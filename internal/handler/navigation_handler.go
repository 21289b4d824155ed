package handler

import (
	"net/http"
	"strings"

	"github.com/hitoshi/agenda/internal/nav"
)

// Navigator は現在位置の参照と更新を提供する。nav.Routerが満たす。
type Navigator interface {
	Location() string
	Navigate(path string)
}

// NavigationHandler は画面の現在位置を扱うHTTPハンドラー。
// UIは画面遷移のたびに位置を報告し、ルートガードが補正した位置を受け取る。
type NavigationHandler struct {
	navigator Navigator
}

// NewNavigationHandler はNavigationHandlerを生成する。
func NewNavigationHandler(navigator Navigator) *NavigationHandler {
	return &NavigationHandler{navigator: navigator}
}

type navigationResponse struct {
	Location string `json:"location"`
	Root     string `json:"root"`
}

type navigationRequest struct {
	Location string `json:"location"`
}

func (h *NavigationHandler) current() navigationResponse {
	loc := h.navigator.Location()
	return navigationResponse{Location: loc, Root: nav.RootSegment(loc)}
}

// Get は現在位置を返す。
// GET /api/navigation
func (h *NavigationHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.current())
}

// Put はUIの現在位置を反映し、ルートガード適用後の位置を返す。
// PUT /api/navigation
func (h *NavigationHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req navigationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Location) == "" {
		handleServiceError(w, errInvalidRequest)
		return
	}

	h.navigator.Navigate(req.Location)
	writeJSON(w, http.StatusOK, h.current())
}
