package auth

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/agenda/internal/identity"
	"github.com/hitoshi/agenda/internal/model"
	"github.com/hitoshi/agenda/internal/provision"
	"github.com/hitoshi/agenda/internal/repository"
	"github.com/hitoshi/agenda/internal/session"
)

type memoryAccounts struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
}

func (m *memoryAccounts) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, nil
}

func (m *memoryAccounts) FindByID(ctx context.Context, uid string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[uid], nil
}

func (m *memoryAccounts) Create(ctx context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == a.Email {
			return repository.ErrDuplicate
		}
	}
	m.accounts[a.UID] = a
	return nil
}

type memoryDeviceSessions struct {
	mu       sync.Mutex
	sessions map[string]*model.DeviceSession
}

func (m *memoryDeviceSessions) Create(ctx context.Context, s *model.DeviceSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memoryDeviceSessions) FindByID(ctx context.Context, id string) (*model.DeviceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id], nil
}

func (m *memoryDeviceSessions) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memoryDeviceSessions) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// notificationLog は認証状態の通知をUIDで記録する。サインアウトは空文字。
type notificationLog struct {
	mu   sync.Mutex
	uids []string
}

func (l *notificationLog) listen(ident *model.Identity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ident == nil {
		l.uids = append(l.uids, "")
		return
	}
	l.uids = append(l.uids, ident.UID)
}

func (l *notificationLog) waitN(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		l.mu.Lock()
		if len(l.uids) >= n {
			got := append([]string(nil), l.uids...)
			l.mu.Unlock()
			return got
		}
		l.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	t.Fatalf("received %d notifications, want %d", len(l.uids), n)
	return nil
}

type localFixture struct {
	backend  *identity.LocalBackend
	store    *session.Store
	profiles *memoryProfiles
	log      *notificationLog
	service  *Service
}

// newLocalFixture はLocalBackend・Provisioner・Storeを実物で組み合わせ、サインアウト状態まで進める。
func newLocalFixture(t *testing.T) *localFixture {
	t.Helper()
	accounts := &memoryAccounts{accounts: make(map[string]*model.Account)}
	devices := &memoryDeviceSessions{sessions: make(map[string]*model.DeviceSession)}
	tokens := identity.NewTokenFile(filepath.Join(t.TempDir(), "session"))
	backend := identity.NewLocalBackend(accounts, devices, tokens, identity.LocalConfig{PasswordMinLength: 6, SessionMaxAge: 3600})
	t.Cleanup(backend.Close)

	profiles := &memoryProfiles{profiles: make(map[string]*model.Profile)}
	prov := provision.NewProvisioner(profiles, "", nil)
	store := session.NewStore(prov, time.Second)
	if err := store.Start(backend); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	log := &notificationLog{}
	backend.SubscribeToAuthState(log.listen)

	if err := backend.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	waitSettled(t, store)

	return &localFixture{
		backend:  backend,
		store:    store,
		profiles: profiles,
		log:      log,
		service:  NewService(backend, store, prov, nil, ServiceConfig{PasswordMinLength: 6}),
	}
}

func uidOf(s model.Session) string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.UID
}

func TestSignUp_SameEmailTwice_KeepsFirstProfile(t *testing.T) {
	f := newLocalFixture(t)
	ctx := context.Background()

	if err := f.service.SignUp(ctx, "ana@example.com", "secret1", "Ana"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	first := waitSettled(t, f.store)
	if first.Identity == nil {
		t.Fatal("identity should be set after sign-up")
	}
	uid := first.Identity.UID

	f.profiles.mu.Lock()
	original := *f.profiles.profiles[uid]
	f.profiles.mu.Unlock()
	if original.DisplayName != "Ana" {
		t.Fatalf("DisplayName = %q, want %q", original.DisplayName, "Ana")
	}

	err := f.service.SignUp(ctx, " ANA@example.com", "another1", "Impostor")
	if apiErr := asAPIError(t, err); apiErr.Code != model.ErrCodeEmailInUse {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeEmailInUse)
	}

	st := waitSettled(t, f.store)
	if uidOf(st) != uid {
		t.Errorf("identity = %q, want %q", uidOf(st), uid)
	}

	f.profiles.mu.Lock()
	defer f.profiles.mu.Unlock()
	if len(f.profiles.profiles) != 1 {
		t.Errorf("profiles = %d, want 1", len(f.profiles.profiles))
	}
	if got := *f.profiles.profiles[uid]; got != original {
		t.Errorf("profile = %+v, want unchanged %+v", got, original)
	}
}

// 認証操作と通知が混在しても、最終的なIdentityは最後の通知と一致する。
func TestMixedOperations_FinalIdentityMatchesLastNotification(t *testing.T) {
	f := newLocalFixture(t)
	ctx := context.Background()

	settle := func(step string, err error) model.Session {
		t.Helper()
		var apiErr *model.APIError
		if err != nil && !errors.As(err, &apiErr) {
			t.Fatalf("%s: error = %v, want *model.APIError", step, err)
		}
		return waitSettled(t, f.store)
	}
	uidOfCurrent := func() string { return uidOf(f.store.Session()) }

	settle("sign up ana", f.service.SignUp(ctx, "ana@example.com", "secret1", "Ana"))
	ana := uidOfCurrent()
	settle("sign out", f.service.SignOut(ctx))
	settle("sign up bruno", f.service.SignUp(ctx, "bruno@example.com", "secret2", "Bruno"))
	bruno := uidOfCurrent()
	settle("sign in ana over bruno", f.service.SignIn(ctx, "ana@example.com", "secret1"))
	if err := f.backend.Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	// Storeは記録より先に購読しているため、記録が届いた時点で反映済み
	f.log.waitN(t, 6)
	settle("wrong password", f.service.SignIn(ctx, "bruno@example.com", "wrong-pass"))
	settle("duplicate sign up", f.service.SignUp(ctx, "bruno@example.com", "secret3", "Other"))
	settle("sign out", f.service.SignOut(ctx))
	final := settle("sign in bruno", f.service.SignIn(ctx, "bruno@example.com", "secret2"))

	if ana == "" || bruno == "" || ana == bruno {
		t.Fatalf("unexpected uids ana=%q bruno=%q", ana, bruno)
	}

	// 起動時のRestore、成功した6操作、途中のRestoreの順に通知される
	got := f.log.waitN(t, 8)
	want := []string{"", ana, "", bruno, ana, ana, "", bruno}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("notifications = %v, want %v", got, want)
		}
	}

	if uidOf(final) != got[len(got)-1] {
		t.Errorf("final identity = %q, last notification = %q", uidOf(final), got[len(got)-1])
	}
	if final.IsLoading {
		t.Error("session should be settled")
	}
}
