package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/agenda/internal/appointment"
	"github.com/hitoshi/agenda/internal/auth"
	"github.com/hitoshi/agenda/internal/changefeed"
	"github.com/hitoshi/agenda/internal/client"
	"github.com/hitoshi/agenda/internal/config"
	"github.com/hitoshi/agenda/internal/database"
	"github.com/hitoshi/agenda/internal/guard"
	"github.com/hitoshi/agenda/internal/handler"
	"github.com/hitoshi/agenda/internal/logger"
	"github.com/hitoshi/agenda/internal/metrics"
	"github.com/hitoshi/agenda/internal/middleware"
	"github.com/hitoshi/agenda/internal/nav"
	"github.com/hitoshi/agenda/internal/provision"
	"github.com/hitoshi/agenda/internal/security"
	"github.com/hitoshi/agenda/internal/session"
	"github.com/hitoshi/agenda/internal/worker/cleanup"
)

// shutdownTimeout はグレースフルシャットダウンの上限時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("backend", cfg.Backend),
		slog.String("port", cfg.ServerPort),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCleanup:
		return runCleanup(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はアプリケーションコアを起動する。
// バックエンドを構築して全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINTまたはSIGTERMを受信する）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. バックエンドの構築
	stack, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. Sessionストアと認証状態の購読
	provisioner := provision.NewProvisioner(stack.profiles, cfg.ProfileFallbackName, collector)
	store := session.NewStore(provisioner, cfg.ProvisionTimeout)
	if err := store.Start(stack.identity); err != nil {
		return fmt.Errorf("failed to start session store: %w", err)
	}
	if err := stack.identity.Restore(ctx); err != nil {
		// 復元に失敗しても未ログインとして起動を続ける
		slog.Warn("failed to restore sign-in state", slog.String("error", err.Error()))
	}

	// 4. ナビゲーションとルートガード
	navigator := nav.NewRouter(nav.PathRoot)
	routeGuard := guard.NewController(store, navigator, collector)
	routeGuard.Start()
	defer routeGuard.Stop()

	// 5. 変更通知
	hub := changefeed.NewHub()
	var publisher changefeed.Publisher = hub
	if stack.db != nil && cfg.ChangeListener {
		// トリガー経由の通知をリスナーが配信するため、サービスからは発行しない
		publisher = nil
		listener := changefeed.NewPGListener(cfg.DatabaseURL, hub)
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("change listener stopped", slog.String("error", err.Error()))
			}
		}()
	}

	// 6. ドメインサービス
	sanitizer := security.NewTextSanitizer()
	clientService := client.NewService(stack.clients, sanitizer, publisher)
	appointmentService := appointment.NewService(stack.appointments, stack.clients, sanitizer, publisher)
	authService := auth.NewService(stack.identity, store, provisioner, collector, auth.ServiceConfig{
		PasswordMinLength: cfg.PasswordMinLength,
	})

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.DefaultRateLimiterConfig().WithSignInPerMinute(cfg.RateLimitSignIn),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		Gatherer: registry,

		Sessions:      store,
		AuthService:   authService,
		SettleTimeout: handler.DefaultSettleTimeout,
		Navigator:     navigator,

		ClientService:      clientService,
		AppointmentService: appointmentService,
		Changes:            hub,
	}
	if stack.db != nil {
		deps.HealthChecker = stack.db
	}

	router := handler.NewRouter(deps)

	// 8. 期限切れ端末セッションの定期削除（postgresバックエンドのみ）
	if stack.deviceSessions != nil {
		job := cleanup.NewCleanupJob(stack.deviceSessions, slog.Default())
		go job.Start(ctx)
	}

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.Backend != config.BackendPostgres {
		return fmt.Errorf("migrate is only supported for the %s backend", config.BackendPostgres)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runCleanup は期限切れ端末セッションの削除を1回実行する。
func runCleanup(ctx context.Context, cfg *config.Config) error {
	if cfg.Backend != config.BackendPostgres {
		return fmt.Errorf("cleanup is only supported for the %s backend", config.BackendPostgres)
	}

	stack, err := openPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	return cleanup.NewCleanupJob(stack.deviceSessions, slog.Default()).Run(ctx)
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	httpClient := &http.Client{Timeout: 5 * time.Second}

	resp, err := httpClient.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
