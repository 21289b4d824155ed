package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/hitoshi/agenda/internal/config"
	"github.com/hitoshi/agenda/internal/database"
	"github.com/hitoshi/agenda/internal/identity"
	"github.com/hitoshi/agenda/internal/repository"
)

// dbConnectTimeout はDB疎通確認の上限時間。
const dbConnectTimeout = 10 * time.Second

// backendStack はバックエンド種別ごとに構築した認証バックエンドとリポジトリ群。
type backendStack struct {
	identity     identity.Backend
	profiles     repository.ProfileRepository
	clients      repository.ClientRepository
	appointments repository.AppointmentRepository

	// postgresバックエンドのみ
	db             *sql.DB
	deviceSessions *repository.PostgresDeviceSessionRepo

	closers []func() error
}

// Close は構築時に開いた接続をすべて閉じる。
func (s *backendStack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Warn("failed to close backend resource", slog.String("error", err.Error()))
		}
	}
}

// openBackend は設定されたバックエンドを構築する。
func openBackend(ctx context.Context, cfg *config.Config) (*backendStack, error) {
	switch cfg.Backend {
	case config.BackendFirebase:
		return openFirebase(ctx, cfg)
	default:
		return openPostgres(ctx, cfg)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*backendStack, error) {
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbConnectTimeout)
	if err != nil {
		return nil, err
	}
	slog.Info("database connection established")

	accounts := repository.NewPostgresAccountRepo(db)
	deviceSessions := repository.NewPostgresDeviceSessionRepo(db)

	backend := identity.NewLocalBackend(
		accounts,
		deviceSessions,
		identity.NewTokenFile(cfg.SessionFile),
		identity.LocalConfig{
			PasswordMinLength: cfg.PasswordMinLength,
			SessionMaxAge:     cfg.SessionMaxAge,
		},
	)

	return &backendStack{
		identity:       backend,
		profiles:       repository.NewPostgresProfileRepo(db),
		clients:        repository.NewPostgresClientRepo(db),
		appointments:   repository.NewPostgresAppointmentRepo(db),
		db:             db,
		deviceSessions: deviceSessions,
		closers:        []func() error{db.Close},
	}, nil
}

func openFirebase(ctx context.Context, cfg *config.Config) (*backendStack, error) {
	var opts []option.ClientOption
	if cfg.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	}

	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	fs, err := fbApp.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	fbConfig := identity.FirebaseConfig{
		APIKey:     cfg.FirebaseAPIKey,
		AuthURL:    cfg.FirebaseAuthURL,
		TokenURL:   cfg.FirebaseTokenURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}

	// 認証情報ファイルがある場合のみIDトークンを検証する
	if cfg.FirebaseCredentialsFile != "" {
		authClient, err := fbApp.Auth(ctx)
		if err != nil {
			fs.Close()
			return nil, fmt.Errorf("failed to create firebase auth client: %w", err)
		}
		fbConfig.Verifier = authClient
	}

	slog.Info("firebase backend initialized",
		slog.String("project_id", cfg.FirebaseProjectID),
		slog.Bool("verify_id_token", fbConfig.Verifier != nil),
	)

	return &backendStack{
		identity:     identity.NewFirebaseBackend(fbConfig, identity.NewTokenFile(cfg.SessionFile)),
		profiles:     repository.NewFirestoreProfileRepo(fs),
		clients:      repository.NewFirestoreClientRepo(fs),
		appointments: repository.NewFirestoreAppointmentRepo(fs),
		closers:      []func() error{fs.Close},
	}, nil
}
