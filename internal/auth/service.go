// Package auth はログイン・アカウント作成・ログアウトの認証操作を提供する。
//
// 認証操作はSessionの読み込み中フラグのみを更新する。Identityの反映は
// 認証状態の購読（session.Store）が行うため、成功時には読み込み中を解除しない。
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/agenda/internal/identity"
	"github.com/hitoshi/agenda/internal/metrics"
	"github.com/hitoshi/agenda/internal/model"
)

// LoadingSetter はSessionの読み込み中フラグを更新する。session.Storeが満たす。
type LoadingSetter interface {
	SetLoading(loading bool)
}

// Provisioner はアカウント作成時のプロフィール作成を担う。provision.Provisionerが満たす。
type Provisioner interface {
	Expect(email string, extra model.ProfileExtra)
	Forget(email string)
	EnsureProfile(ctx context.Context, identity *model.Identity, extra model.ProfileExtra)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	PasswordMinLength int // WEAK_CREDENTIALのメッセージに表示する最小文字数
}

// Service は認証操作のビジネスロジックを提供する。
type Service struct {
	backend     identity.Backend
	store       LoadingSetter
	provisioner Provisioner
	metrics     metrics.MetricsCollector
	config      ServiceConfig
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	backend identity.Backend,
	store LoadingSetter,
	provisioner Provisioner,
	m metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if config.PasswordMinLength <= 0 {
		config.PasswordMinLength = 6
	}
	return &Service{
		backend:     backend,
		store:       store,
		provisioner: provisioner,
		metrics:     m,
		config:      config,
	}
}

// SignIn はメールアドレスとパスワードでログインする。
// 成功時は読み込み中のまま返り、認証状態の通知で解除される。
// 失敗時は読み込み中を解除し、*model.APIErrorを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) error {
	s.store.SetLoading(true)

	start := time.Now()
	_, err := s.backend.Authenticate(ctx, email, password)
	s.observe(model.OpSignIn, start)

	if err != nil {
		s.store.SetLoading(false)
		apiErr := s.classifySignIn(err)
		s.fail(model.OpSignIn, apiErr, err)
		return apiErr
	}

	s.succeed(model.OpSignIn)
	return nil
}

// SignUp はアカウントを作成し、指定した表示名でプロフィールを作成する。
// プロフィール作成の完了を待ってから返る。
func (s *Service) SignUp(ctx context.Context, email, password, name string) error {
	s.store.SetLoading(true)

	extra := model.ProfileExtra{DisplayName: name}
	s.provisioner.Expect(email, extra)
	defer s.provisioner.Forget(email)

	start := time.Now()
	created, err := s.backend.CreateAccount(ctx, email, password)
	s.observe(model.OpSignUp, start)

	if err != nil {
		s.store.SetLoading(false)
		apiErr := s.classifySignUp(err)
		s.fail(model.OpSignUp, apiErr, err)
		return apiErr
	}

	s.provisioner.EnsureProfile(ctx, created, extra)
	s.succeed(model.OpSignUp)
	return nil
}

// SignOut はログアウトする。
// 失敗時は読み込み中を解除し、Identityは保持されたままとなる。
func (s *Service) SignOut(ctx context.Context) error {
	s.store.SetLoading(true)

	start := time.Now()
	err := s.backend.TerminateSession(ctx)
	s.observe(model.OpSignOut, start)

	if err != nil {
		s.store.SetLoading(false)
		apiErr := model.NewAuthFailedError(model.OpSignOut)
		s.fail(model.OpSignOut, apiErr, err)
		return apiErr
	}

	s.succeed(model.OpSignOut)
	return nil
}

func (s *Service) classifySignIn(err error) *model.APIError {
	if errors.Is(err, identity.ErrInvalidCredentials) {
		return model.NewInvalidCredentialsError()
	}
	return model.NewAuthFailedError(model.OpSignIn)
}

func (s *Service) classifySignUp(err error) *model.APIError {
	switch {
	case errors.Is(err, identity.ErrEmailInUse):
		return model.NewEmailInUseError()
	case errors.Is(err, identity.ErrWeakCredential):
		return model.NewWeakCredentialError(s.config.PasswordMinLength)
	}
	return model.NewAuthFailedError(model.OpSignUp)
}

func (s *Service) succeed(op string) {
	if s.metrics != nil {
		s.metrics.RecordAuthOperation(op, "success")
	}
	slog.Info("auth operation succeeded", slog.String("op", op))
}

func (s *Service) fail(op string, apiErr *model.APIError, cause error) {
	if s.metrics != nil {
		s.metrics.RecordAuthOperation(op, apiErr.Code)
	}
	slog.Warn("auth operation failed",
		slog.String("op", op),
		slog.String("code", apiErr.Code),
		slog.String("error", cause.Error()),
	)
}

func (s *Service) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordAuthLatency(op, time.Since(start))
	}
}
