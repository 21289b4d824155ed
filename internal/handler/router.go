package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/agenda/internal/metrics"
	"github.com/hitoshi/agenda/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           middleware.StatusRecorder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ヘルスチェック・メトリクス
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer

	// セッション・ナビゲーション
	Sessions      SessionStore
	AuthService   AuthServiceInterface
	SettleTimeout time.Duration
	Navigator     Navigator

	// 顧客・予約
	ClientService      ClientServiceInterface
	AppointmentService AppointmentServiceInterface
	Changes            ChangeSubscriber
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS
//
// 顧客・予約・イベントのルートはさらに RequireIdentity → RateLimit(General) を通す。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	sessionHandler := NewSessionHandler(deps.AuthService, deps.Sessions, deps.SettleTimeout)
	navHandler := NewNavigationHandler(deps.Navigator)
	clientHandler := NewClientHandler(deps.ClientService)
	appointmentHandler := NewAppointmentHandler(deps.AppointmentService)
	eventsHandler := NewEventsHandler(deps.Sessions, deps.Changes)

	// --- ログイン不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", sessionHandler.Get)
		r.With(deps.RateLimiter.SignInMiddleware()).Post("/sign-in", sessionHandler.SignIn)
		r.Post("/sign-up", sessionHandler.SignUp)
		r.Post("/sign-out", sessionHandler.SignOut)
	})

	r.Route("/api/navigation", func(r chi.Router) {
		r.Get("/", navHandler.Get)
		r.Put("/", navHandler.Put)
	})

	// --- ログインが必要なルート ---
	// ミドルウェアスタック: RequireIdentity → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequireIdentityMiddleware(deps.Sessions))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/clients", func(r chi.Router) {
			r.Get("/", clientHandler.List)
			r.Post("/", clientHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", clientHandler.Get)
				r.Put("/", clientHandler.Update)
				r.Get("/appointments", appointmentHandler.ListByClient)
			})
		})

		r.Route("/api/appointments", func(r chi.Router) {
			r.Get("/", appointmentHandler.ListByDate)
			r.Post("/", appointmentHandler.Create)
			r.Get("/dates", appointmentHandler.MarkedDates)
			r.Delete("/{id}", appointmentHandler.Delete)
		})

		r.Get("/api/events", eventsHandler.Stream)
	})

	return r
}
