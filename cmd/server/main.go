package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peerpoints/peerpoints/internal/auth"
	"github.com/peerpoints/peerpoints/internal/config"
	"github.com/peerpoints/peerpoints/internal/database"
	"github.com/peerpoints/peerpoints/internal/handler"
	"github.com/peerpoints/peerpoints/internal/logger"
	"github.com/peerpoints/peerpoints/internal/middleware"
	"github.com/peerpoints/peerpoints/internal/rbac"
	"github.com/peerpoints/peerpoints/internal/repository"
	"github.com/peerpoints/peerpoints/internal/router"
	"github.com/peerpoints/peerpoints/internal/security"
	"github.com/peerpoints/peerpoints/internal/service"
	"github.com/peerpoints/peerpoints/internal/token"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", "0.1.0").Msg("starting PeerPoints server")

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to PostgreSQL")

	// Connect to Redis only when a store needs it
	var rdb *database.Redis
	if cfg.Storage.Sessions == "redis" || cfg.Storage.RateLimit == "redis" {
		rdb, err = database.NewRedis(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("connected to Redis")
	}

	// Token codec: refuses to start without a signing secret
	codec, err := token.NewCodec(cfg.Security.Session.Secret, cfg.Security.Session.Issuer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token codec")
	}

	// Session store
	var sessionStore security.SessionStore
	switch cfg.Storage.Sessions {
	case "redis":
		sessionStore = security.NewRedisSessionStore(rdb)
	default:
		sessionStore = security.NewMemorySessionStore()
	}
	log.Info().Str("backend", cfg.Storage.Sessions).Msg("session store initialized")

	// Session validator with background sweep
	validator := security.NewValidator(cfg.Security.Session, codec, sessionStore, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go validator.Run(ctx)

	// CSRF guard
	csrf := security.NewCSRFGuard(cfg.Security.CSRF.Header, cfg.Security.CSRF.AuthScheme)

	// Rate limiter
	var rateStore security.RateLimitStore
	switch cfg.Storage.RateLimit {
	case "redis":
		rateStore = security.NewRedisRateLimitStore(rdb)
	default:
		rateStore = security.NewMemoryRateLimitStore()
	}
	limiter := security.NewLimiter(rateStore, cfg.Security.RateLimiting.Enabled)

	// RBAC role table with system roles seeded
	roles := rbac.NewManager()

	// Password hasher
	hasher := auth.NewHasher(cfg.Security.Password)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	recogRepo := repository.NewRecognitionRepository(db)

	// Services
	authSvc := service.NewAuthService(userRepo, roles, validator, hasher, log)
	userSvc := service.NewUserService(userRepo, roles, validator, hasher, log)
	recogSvc := service.NewRecognitionService(recogRepo, userRepo, log)

	// Handlers, middleware, router
	h := handler.New(db, rdb, log, cfg, authSvc, userSvc, recogSvc, roles, validator)
	mw := middleware.New(validator, csrf, limiter, log, cfg)
	r := router.New(h, mw)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	log.Info().Msg("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
