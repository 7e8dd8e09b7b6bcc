package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/proxydesk/proxydesk/internal/audit"
	"github.com/proxydesk/proxydesk/internal/auth"
	"github.com/proxydesk/proxydesk/internal/config"
	"github.com/proxydesk/proxydesk/internal/database"
	"github.com/proxydesk/proxydesk/internal/export"
	"github.com/proxydesk/proxydesk/internal/limits"
	mw "github.com/proxydesk/proxydesk/internal/middleware"
	"github.com/proxydesk/proxydesk/internal/nats"
	"github.com/proxydesk/proxydesk/internal/proxies"
	"github.com/proxydesk/proxydesk/internal/quota"
	"github.com/proxydesk/proxydesk/internal/redis"
	"github.com/proxydesk/proxydesk/internal/router"
	"github.com/proxydesk/proxydesk/internal/server"
	"github.com/proxydesk/proxydesk/internal/users"
)

const janitorInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	natsClient, err := nats.NewClient(cfg.NATS.URL)
	if err != nil {
		logger.Error("failed to connect to nats", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	publisher := nats.NewPublisher(natsClient, logger)

	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry)
	authService := auth.NewService(jwtManager, redisClient)

	userRepo := users.NewPostgresRepository(pool)
	userService := users.NewService(userRepo, publisher, logger,
		cfg.Limits.DefaultDaily, cfg.Limits.DefaultCooldownHours)

	usageRepo := quota.NewPostgresRepository(pool)
	tracker := quota.NewTracker(usageRepo, time.Local)

	proxyStore := proxies.NewPostgresStore(pool)
	stageStore := proxies.NewStageStore(redisClient, cfg.Claims.StageTTL)
	claimer := proxies.NewClaimer(proxyStore, stageStore, userService, tracker,
		publisher, logger, cfg.Claims.MaxBatch)
	go claimer.RunJanitor(ctx, janitorInterval)

	editor := limits.NewEditor(userService, publisher, logger)

	auditRepo := audit.NewPostgresRepository(pool)
	auditConsumer := audit.NewConsumer(natsClient, auditRepo, logger)
	if err := auditConsumer.Start(ctx); err != nil {
		logger.Error("failed to start audit consumer", "error", err)
		os.Exit(1)
	}
	defer auditConsumer.Stop()

	handler := router.New(router.Deps{
		Handlers: router.Handlers{
			Auth:    auth.NewHandler(authService, users.NewAccountsAdapter(userService)),
			Users:   users.NewHandler(userService),
			Proxies: proxies.NewHandler(claimer, userService),
			Limits:  limits.NewHandler(editor),
			Quota:   quota.NewHandler(tracker, userService),
			Export:  export.NewHandler(tracker),
			Audit:   audit.NewHandler(auditRepo),
		},
		AuthService:    authService,
		RateLimiter:    mw.NewRateLimiter(redisClient, "login", 20, 60),
		Pool:           pool,
		Redis:          redisClient,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	srv := server.New(cfg.Server, handler)
	logger.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port)
	if err := srv.Start(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
