package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/festworks/festpass-backend/api/controllers"
	"github.com/festworks/festpass-backend/api/middleware"
	"github.com/festworks/festpass-backend/internal/auth"
	"github.com/festworks/festpass-backend/internal/ingest"
	"github.com/festworks/festpass-backend/internal/passes"
	"github.com/festworks/festpass-backend/pkg/auth/session"
	"github.com/festworks/festpass-backend/pkg/config"
	"github.com/festworks/festpass-backend/pkg/enums"
	"github.com/festworks/festpass-backend/pkg/logger"
	"github.com/festworks/festpass-backend/pkg/redis"
)

// Pinger is the readiness probe hook for wired dependencies.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams bundles everything the HTTP surface needs.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DBPinger       Pinger
	RedisClient    *redis.Client
	SessionChecker session.AccessSessionChecker
	AuthService    auth.Service
	IngestService  ingest.Service
	PassService    passes.Service
}

// NewRouter assembles the chi router with the platform middleware stack.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	health := controllers.NewHealthController(cfg, params.DBPinger, params.RedisClient, logg)
	authController := controllers.NewAuthController(params.AuthService, cfg.JWT, logg)
	passesController := controllers.NewPassesController(params.IngestService, params.PassService, logg)
	adminController := controllers.NewAdminController(params.IngestService, cfg.App, cfg.Admin, logg)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", health.Healthz)
		r.Get("/ready", health.Readyz)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(
			middleware.AuthRateLimit(registerPolicy, params.RedisClient, logg),
			middleware.Idempotency(params.RedisClient, logg),
		).Post("/register", authController.Register)
		r.With(middleware.AuthRateLimit(loginPolicy, params.RedisClient, logg)).Post("/login", authController.Login)
		r.Post("/refresh", authController.Refresh)
		r.With(middleware.Auth(cfg.JWT, params.SessionChecker, logg)).Post("/logout", authController.Logout)
	})

	r.Route("/api/v1/passes", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, params.SessionChecker, logg))
		r.Post("/sync", passesController.Sync)
		r.Get("/me", passesController.ListOwned)
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, params.SessionChecker, logg))
		r.Use(middleware.RequireRole(string(enums.MemberRoleAdmin), logg))
		r.Get("/passes/pending", adminController.PendingQueue)
		r.Post("/users/{userID}/sync", adminController.SyncUser)
		r.Post("/passmap/invalidate", adminController.InvalidateMappingCache)
	})

	return r
}
