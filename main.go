package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	appCache "github.com/wandertrails/tourism-api/app/cache"
	database "github.com/wandertrails/tourism-api/app/db"
	appLogger "github.com/wandertrails/tourism-api/app/logger"
	"github.com/wandertrails/tourism-api/app/observability/metrics"
	"github.com/wandertrails/tourism-api/app/tracer"
	"github.com/wandertrails/tourism-api/config"
	"github.com/wandertrails/tourism-api/internal/api/admin"
	"github.com/wandertrails/tourism-api/internal/api/auth"
	"github.com/wandertrails/tourism-api/internal/api/mfa"
	"github.com/wandertrails/tourism-api/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails.
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Observability ---
	if err := tracer.InitTracingAndMetrics(cfg.Server.MetricsPort, logger); err != nil {
		logger.Error("Failed to initialize tracing and metrics", slog.Any("error", err))
		os.Exit(1)
	}
	metrics.InitAppMetrics()

	// --- Database Setup ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Challenge Store ---
	// Redis keeps challenges visible across instances; the in-memory store
	// is for single-instance deployments.
	var challengeStore mfa.ChallengeStore
	if cfg.Repositories.Redis.Enabled {
		redisClient, err := appCache.InitRedis(ctx, &cfg, logger)
		if err != nil {
			logger.Error("Failed to initialize redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisClient.Close()
		challengeStore = mfa.NewRedisChallengeStore(redisClient)
	} else {
		logger.Info("Redis disabled, using in-memory challenge store")
		challengeStore = mfa.NewMemoryChallengeStore()
	}

	// --- Dependency Injection ---
	appMetrics := metrics.Get()
	userStore := auth.NewPostgresUserStore(pool, logger)
	tokenService := auth.NewTokenService(cfg.JWT, logger)
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	guard := auth.NewAccountGuard(cfg.Auth)

	codeSender := &mfa.LogSender{Logger: logger}
	mfaManager := mfa.NewManager(challengeStore, userStore, codeSender, appMetrics, cfg.MFA, logger)

	authService := auth.NewAuthService(
		userStore, tokenService, hasher, guard,
		mfaManager, &auth.LogMailer{Logger: logger},
		appMetrics, cfg.Auth, logger,
	)
	authHandler := auth.NewAuthHandler(authService, logger)
	mfaHandler := mfa.NewMFAHandler(mfaManager, authService, logger)

	adminService := admin.NewAdminService(userStore, admin.DefaultFieldVisibility(), logger)
	adminHandler := admin.NewAdminHandler(adminService, logger)

	// --- Router Setup ---
	apiRouter := router.SetupRouter(&router.Config{
		AuthHandler:  authHandler,
		MFAHandler:   mfaHandler,
		AdminHandler: adminHandler,

		Authenticate: auth.Authenticate(tokenService, userStore, logger),
		RequireAdmin: auth.RequireRole(logger, router.AdminRoles...),

		AllowedOrigins:         []string{"http://localhost:5173", "http://localhost:3000"},
		LoginRateLimit:         cfg.Auth.LoginRateLimit,
		LoginRateLimitInterval: cfg.Auth.LoginRateLimitInterval,
	})

	r := chi.NewMux()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appLogger.StructuredLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5, "application/json"))
	r.Mount("/", apiRouter)

	// --- HTTP Server ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		return slog.New(tint.NewHandler(os.Stdout, tintOpts))
	}

	jsonOpts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
}
