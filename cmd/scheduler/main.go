package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/gym-scheduler/internal/analytics"
	"github.com/example/gym-scheduler/internal/authz"
	"github.com/example/gym-scheduler/internal/booking"
	"github.com/example/gym-scheduler/internal/config"
	httptransport "github.com/example/gym-scheduler/internal/http"
	"github.com/example/gym-scheduler/internal/interval"
	"github.com/example/gym-scheduler/internal/logging"
	"github.com/example/gym-scheduler/internal/persistence/sqlite"
	"github.com/example/gym-scheduler/internal/scheduler"
)

func main() {
	logger := logging.New(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("GYM_SCHEDULER_CONFIG"))
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	guard := authz.NewGuard()
	if err := guard.ValidateRoles(authz.RoleAdmin, authz.RoleTrainer, authz.RoleMember, authz.RoleAnonymous); err != nil {
		logger.Error("authorization table misconfigured", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.NewConnectionPool(cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()

	if err := sqlite.Migrate(ctx, pool); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	userRepo := sqlite.NewUserRepository(pool)
	sessionRepo := sqlite.NewSessionRepository(pool)
	authRepo := sqlite.NewAuthSessionRepository(pool)

	store := newSessionStoreAdapter(sessionRepo)
	directory := newDirectoryAdapter(userRepo)
	credentials := newCredentialStoreAdapter(userRepo)
	authSessions := newAuthSessionStoreAdapter(authRepo)

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	trainerIndex := interval.NewIndex()
	memberIndex := interval.NewIndex()
	detector := scheduler.NewDetector(trainerIndex, memberIndex)

	validator := booking.NewValidator(guard, detector, directory, now, cfg.Booking.MaxCapacity)
	lifecycle := booking.NewLifecycleService(store, validator, guard, detector, trainerIndex, memberIndex, idGenerator, now, booking.LifecycleConfig{
		CheckTimeout:          cfg.Booking.CheckTimeout,
		AvailabilityCacheSize: cfg.Booking.AvailabilityCacheSize,
		AvailabilityCacheTTL:  cfg.Booking.AvailabilityCacheTTL,
	}, logger)
	authService := booking.NewAuthService(credentials, authSessions, guard, nil, tokenGenerator, now, cfg.Auth.SessionTTL, logger)
	analyticsService := analytics.NewService(newAnalyticsStoreAdapter(store), guard, logger)

	if err := lifecycle.WarmIndexes(ctx); err != nil {
		logger.Error("failed to warm interval indexes", "error", err)
		os.Exit(1)
	}

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:          httptransport.NewAuthHandler(authService, logger),
		Sessions:      httptransport.NewSessionHandler(lifecycle, logger),
		Analytics:     httptransport.NewAnalyticsHandler(analyticsService, logger),
		Authenticated: httptransport.RequireSession(authService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
	})

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("booking API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
