package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/festworks/festpass-backend/api/routes"
	"github.com/festworks/festpass-backend/internal/auth"
	"github.com/festworks/festpass-backend/internal/ingest"
	"github.com/festworks/festpass-backend/internal/passes"
	"github.com/festworks/festpass-backend/internal/passmap"
	"github.com/festworks/festpass-backend/internal/portal"
	"github.com/festworks/festpass-backend/internal/users"
	"github.com/festworks/festpass-backend/pkg/auth/session"
	"github.com/festworks/festpass-backend/pkg/config"
	"github.com/festworks/festpass-backend/pkg/db"
	"github.com/festworks/festpass-backend/pkg/logger"
	"github.com/festworks/festpass-backend/pkg/metrics"
	"github.com/festworks/festpass-backend/pkg/migrate"
	"github.com/festworks/festpass-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	ingestMetrics := metrics.NewIngestMetrics(prometheus.DefaultRegisterer)
	portalClient, err := portal.NewClient(portal.ClientParams{
		Config:  cfg.Portal,
		Logger:  logg,
		Metrics: ingestMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create portal client", err)
		os.Exit(1)
	}

	mappingCache, err := passmap.NewCache(passmap.CacheParams{
		Loader: passmap.NewRepository(dbClient.DB()),
		TTL:    cfg.PassMap.CacheTTL,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create mapping cache", err)
		os.Exit(1)
	}

	passRepo := passes.NewRepository(dbClient.DB())
	ingestService, err := ingest.NewService(ingest.ServiceParams{
		Fetcher:       portalClient,
		Users:         userRepo,
		Passes:        passRepo,
		Logs:          ingest.NewPaymentLogRepository(dbClient.DB()),
		Cache:         mappingCache,
		Capabilities:  ingest.NewStorageCapabilities(ingestMetrics),
		PassesConfig:  cfg.Passes,
		FeatureFlags:  cfg.FeatureFlags,
		MaxDocsPerRun: cfg.Portal.MaxDocsPerRun,
		Locker:        redisClient,
		Logger:        logg,
		Metrics:       ingestMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ingest service", err)
		os.Exit(1)
	}

	passService, err := passes.NewService(passes.ServiceParams{Repo: passRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create pass service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DBPinger:       dbClient,
			RedisClient:    redisClient,
			SessionChecker: sessionManager,
			AuthService:    authService,
			IngestService:  ingestService,
			PassService:    passService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
