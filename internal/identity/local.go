package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/agenda/internal/model"
	"github.com/hitoshi/agenda/internal/repository"
)

// LocalConfig はセルフホスト型認証バックエンドの設定。
type LocalConfig struct {
	PasswordMinLength int // パスワードの最小文字数
	SessionMaxAge     int // 端末セッション有効期間（秒）
}

// LocalBackend はPostgreSQL上のアカウントで認証するBackend。
// ログイン状態は端末セッションとして永続化し、トークンファイルから復元する。
type LocalBackend struct {
	accounts repository.AccountRepository
	sessions repository.DeviceSessionRepository
	tokens   TokenStore
	config   LocalConfig
	notifier *Notifier

	mu        sync.Mutex
	sessionID string

	now func() time.Time
}

// NewLocalBackend はLocalBackendを生成する。
func NewLocalBackend(
	accounts repository.AccountRepository,
	sessions repository.DeviceSessionRepository,
	tokens TokenStore,
	config LocalConfig,
) *LocalBackend {
	if config.PasswordMinLength <= 0 {
		config.PasswordMinLength = 6
	}
	return &LocalBackend{
		accounts: accounts,
		sessions: sessions,
		tokens:   tokens,
		config:   config,
		notifier: NewNotifier(),
		now:      time.Now,
	}
}

// NormalizeEmail はメールアドレスの前後空白を除去し小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate はアカウントのパスワードハッシュを照合してログインする。
func (b *LocalBackend) Authenticate(ctx context.Context, email, password string) (*model.Identity, error) {
	account, err := b.accounts.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), passwordDigest(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := b.startSession(ctx, account.UID); err != nil {
		return nil, err
	}

	identity := account.Identity()
	b.notifier.Publish(identity)
	return identity, nil
}

// CreateAccount はアカウントを作成してログイン状態にする。
func (b *LocalBackend) CreateAccount(ctx context.Context, email, password string) (*model.Identity, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email address: %q", email)
	}
	if len([]rune(password)) < b.config.PasswordMinLength {
		return nil, ErrWeakCredential
	}

	existing, err := b.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailInUse
	}

	hash, err := bcrypt.GenerateFromPassword(passwordDigest(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &model.Account{
		UID:          uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    b.now(),
	}
	if err := b.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("account created", slog.String("uid", account.UID))

	if err := b.startSession(ctx, account.UID); err != nil {
		return nil, err
	}

	identity := account.Identity()
	b.notifier.Publish(identity)
	return identity, nil
}

// TerminateSession は端末セッションを削除してログアウトする。
func (b *LocalBackend) TerminateSession(ctx context.Context) error {
	b.mu.Lock()
	sessionID := b.sessionID
	b.mu.Unlock()

	if sessionID != "" {
		if err := b.sessions.DeleteByID(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to delete device session: %w", err)
		}
	}
	if err := b.tokens.Clear(); err != nil {
		return err
	}

	b.mu.Lock()
	b.sessionID = ""
	b.mu.Unlock()

	b.notifier.Publish(nil)
	return nil
}

// SubscribeToAuthState は認証状態の購読を登録する。
func (b *LocalBackend) SubscribeToAuthState(listener AuthStateListener) func() {
	return b.notifier.Subscribe(listener)
}

// Restore はトークンファイルの端末セッションからログイン状態を復元する。
func (b *LocalBackend) Restore(ctx context.Context) error {
	identity, err := b.restore(ctx)
	b.notifier.Publish(identity)
	return err
}

func (b *LocalBackend) restore(ctx context.Context) (*model.Identity, error) {
	token, err := b.tokens.Load()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	session, err := b.sessions.FindByID(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find device session: %w", err)
	}
	if session == nil {
		slog.Info("stored device session expired")
		return nil, b.tokens.Clear()
	}

	account, err := b.accounts.FindByID(ctx, session.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, b.tokens.Clear()
	}

	b.mu.Lock()
	b.sessionID = session.ID
	b.mu.Unlock()

	slog.Info("device session restored", slog.String("uid", account.UID))
	return account.Identity(), nil
}

// Close は通知の配送を停止する。
func (b *LocalBackend) Close() {
	b.notifier.Close()
}

func (b *LocalBackend) startSession(ctx context.Context, uid string) error {
	id, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate device session ID: %w", err)
	}

	now := b.now()
	session := &model.DeviceSession{
		ID:        id,
		UID:       uid,
		ExpiresAt: now.Add(time.Duration(b.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}
	if err := b.sessions.Create(ctx, session); err != nil {
		return fmt.Errorf("failed to save device session: %w", err)
	}
	if err := b.tokens.Save(id); err != nil {
		return err
	}

	b.mu.Lock()
	previous := b.sessionID
	b.sessionID = id
	b.mu.Unlock()

	// ログイン中の再ログインでは前の端末セッションを無効にする
	if previous != "" && previous != id {
		if err := b.sessions.DeleteByID(ctx, previous); err != nil {
			slog.Warn("failed to delete previous device session",
				slog.String("uid", uid),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// passwordDigest はbcryptに渡す前にパスワードをSHA-256で固定長にする。
// bcryptは72バイトを超える入力を受け付けない。
func passwordDigest(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// generateToken は暗号的に安全な端末セッションIDを生成する。
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// compile-time interface check
var _ Backend = (*LocalBackend)(nil)
