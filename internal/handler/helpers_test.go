package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/agenda/internal/appointment"
	"github.com/hitoshi/agenda/internal/changefeed"
	"github.com/hitoshi/agenda/internal/client"
	"github.com/hitoshi/agenda/internal/identity"
	"github.com/hitoshi/agenda/internal/middleware"
	"github.com/hitoshi/agenda/internal/model"
	"github.com/hitoshi/agenda/internal/nav"
	"github.com/hitoshi/agenda/internal/session"
)

// --- 認証状態の通知元 ---

// fakeAuthSource はテストから認証状態の通知を同期的に発行する。
type fakeAuthSource struct {
	listener identity.AuthStateListener
}

func (f *fakeAuthSource) SubscribeToAuthState(listener identity.AuthStateListener) func() {
	f.listener = listener
	return func() {}
}

func (f *fakeAuthSource) publish(ident *model.Identity) {
	f.listener(ident)
}

func newTestStore(t *testing.T) (*session.Store, *fakeAuthSource) {
	t.Helper()
	store := session.NewStore(nil, time.Second)
	src := &fakeAuthSource{}
	if err := store.Start(src); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return store, src
}

func signedInStore(t *testing.T, uid string) (*session.Store, *fakeAuthSource) {
	t.Helper()
	store, src := newTestStore(t)
	src.publish(&model.Identity{UID: uid, Email: uid + "@example.com"})
	return store, src
}

// --- モック ---

type mockAuthService struct {
	signInFn  func(ctx context.Context, email, password string) error
	signUpFn  func(ctx context.Context, email, password, name string) error
	signOutFn func(ctx context.Context) error
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) error {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil
}
func (m *mockAuthService) SignUp(ctx context.Context, email, password, name string) error {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password, name)
	}
	return nil
}
func (m *mockAuthService) SignOut(ctx context.Context) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx)
	}
	return nil
}

type mockClientService struct {
	addFn    func(ctx context.Context, ownerID string, in client.Input) (*model.Client, error)
	updateFn func(ctx context.Context, ownerID, id string, in client.Input) (*model.Client, error)
	getFn    func(ctx context.Context, ownerID, id string) (*model.Client, error)
	listFn   func(ctx context.Context, ownerID string) ([]*model.Client, error)
}

func (m *mockClientService) Add(ctx context.Context, ownerID string, in client.Input) (*model.Client, error) {
	return m.addFn(ctx, ownerID, in)
}
func (m *mockClientService) Update(ctx context.Context, ownerID, id string, in client.Input) (*model.Client, error) {
	return m.updateFn(ctx, ownerID, id, in)
}
func (m *mockClientService) Get(ctx context.Context, ownerID, id string) (*model.Client, error) {
	return m.getFn(ctx, ownerID, id)
}
func (m *mockClientService) List(ctx context.Context, ownerID string) ([]*model.Client, error) {
	return m.listFn(ctx, ownerID)
}

type mockAppointmentService struct {
	createFn       func(ctx context.Context, ownerID string, in appointment.Input) (*model.Appointment, error)
	listByDateFn   func(ctx context.Context, ownerID, date string) ([]*model.Appointment, error)
	listByClientFn func(ctx context.Context, ownerID, clientID string) ([]*model.Appointment, error)
	markedDatesFn  func(ctx context.Context, ownerID string) ([]string, error)
	deleteFn       func(ctx context.Context, ownerID, id string) error
}

func (m *mockAppointmentService) Create(ctx context.Context, ownerID string, in appointment.Input) (*model.Appointment, error) {
	return m.createFn(ctx, ownerID, in)
}
func (m *mockAppointmentService) ListByDate(ctx context.Context, ownerID, date string) ([]*model.Appointment, error) {
	return m.listByDateFn(ctx, ownerID, date)
}
func (m *mockAppointmentService) ListByClient(ctx context.Context, ownerID, clientID string) ([]*model.Appointment, error) {
	return m.listByClientFn(ctx, ownerID, clientID)
}
func (m *mockAppointmentService) MarkedDates(ctx context.Context, ownerID string) ([]string, error) {
	return m.markedDatesFn(ctx, ownerID)
}
func (m *mockAppointmentService) Delete(ctx context.Context, ownerID, id string) error {
	return m.deleteFn(ctx, ownerID, id)
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- ルーター ---

type testRouterOption func(*RouterDeps)

func newTestRouter(t *testing.T, store SessionStore, opts ...testRouterOption) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	deps := &RouterDeps{
		CORSAllowedOrigin:  "http://localhost:8081",
		RateLimiter:        rl,
		Gatherer:           prometheus.NewRegistry(),
		Sessions:           store,
		AuthService:        &mockAuthService{},
		SettleTimeout:      time.Second,
		Navigator:          nav.NewRouter(nav.PathRoot),
		ClientService:      &mockClientService{},
		AppointmentService: &mockAppointmentService{},
		Changes:            changefeed.NewHub(),
	}
	for _, opt := range opts {
		opt(deps)
	}
	return NewRouter(deps)
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response: %v\nbody: %s", err, w.Body.String())
	}
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, status, w.Body.String())
	}
	var body middleware.ErrorResponseBody
	decodeBody(t, w, &body)
	if body.Code != code {
		t.Errorf("code = %q, want %q", body.Code, code)
	}
}
