package main

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
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

	"github.com/calvuzs3/qdue-server/internal/application"
	"github.com/calvuzs3/qdue-server/internal/calendar"
	"github.com/calvuzs3/qdue-server/internal/config"
	httptransport "github.com/calvuzs3/qdue-server/internal/http"
	"github.com/calvuzs3/qdue-server/internal/logging"
	"github.com/calvuzs3/qdue-server/internal/persistence/sqlite"
	"github.com/calvuzs3/qdue-server/internal/rotation"
)

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	store, err := sqlite.Open(sqlite.DefaultConfig(cfg.SQLiteDSN))
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := store.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	var closures *calendar.Calendar
	if cfg.ClosureCalendar != "" {
		closures, err = calendar.Load(cfg.ClosureCalendar)
		if err != nil {
			logger.Error("failed to load closure calendar", "path", cfg.ClosureCalendar, "error", err)
			os.Exit(1)
		}
		logger.Info("closure calendar loaded", "path", cfg.ClosureCalendar)
	}

	idGenerator := uuid.NewString
	tokenGenerator := sessionTokenGenerator(cfg.SessionSecret)
	now := time.Now

	userService := application.NewUserService(store.Users(), nil, idGenerator, now, logger)
	teamService := application.NewTeamService(store.Teams(), idGenerator, now, logger)
	shiftService := application.NewShiftService(store.Shifts(), idGenerator, now, logger)
	patternService := application.NewPatternService(store.Patterns(), store.Assignments(), idGenerator, now, logger)
	assignmentService := application.NewAssignmentService(store.Assignments(), store.Users(), store.Teams(), store.Patterns(), idGenerator, now, logger)
	exceptionService := application.NewExceptionService(store.Exceptions(), store.Users(), store.Shifts(), idGenerator, now, logger)
	scheduleService := application.NewScheduleService(store.Patterns(), store.Assignments(), store.Exceptions(), closures, now, logger)
	authService := application.NewAuthService(store.Users(), store.Sessions(), tokenGenerator, idGenerator, cfg.SessionTTL, now, logger)

	bootstrapper := application.NewBootstrapper(store.Users(), store.Teams(), store.Shifts(), store.Patterns(), nil, idGenerator, now, logger)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := bootstrapper.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.Error("failed to seed administrator account", "error", err)
			os.Exit(1)
		}
	}
	if cfg.BootstrapRotation {
		if err := bootstrapper.EnsureRotationCatalog(ctx, rotation.Normalize(now().UTC())); err != nil {
			logger.Error("failed to seed rotation catalog", "error", err)
			os.Exit(1)
		}
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:        httptransport.NewAuthHandler(authService, logger),
		Users:       httptransport.NewUserHandler(userService, logger),
		Teams:       httptransport.NewTeamHandler(teamService, logger),
		Shifts:      httptransport.NewShiftHandler(shiftService, logger),
		Patterns:    httptransport.NewPatternHandler(patternService, scheduleService, logger),
		Assignments: httptransport.NewAssignmentHandler(assignmentService, scheduleService, logger),
		Exceptions:  httptransport.NewExceptionHandler(exceptionService, scheduleService, logger),
		Schedules:   httptransport.NewScheduleHandler(scheduleService, logger),
	})

	protected := httptransport.RequireSession(authService, logger)(router)
	handler := httptransport.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Session issuance is the only unauthenticated endpoint.
		if r.Method == http.MethodPost && r.URL.Path == "/sessions" {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	go purgeExpiredSessions(ctx, authService, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
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

	logger.Info("schedule API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// sessionTokenGenerator derives opaque session tokens by keying random
// material with the configured secret, so tokens cannot be forged even if
// the random source is predictable.
func sessionTokenGenerator(secret string) application.TokenGenerator {
	key := []byte(secret)
	return func() (string, error) {
		buf := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return "", fmt.Errorf("generate session token: %w", err)
		}
		mac := hmac.New(sha256.New, key)
		mac.Write(buf)
		return hex.EncodeToString(buf) + hex.EncodeToString(mac.Sum(nil)[:8]), nil
	}
}

func purgeExpiredSessions(ctx context.Context, auth *application.AuthService, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := auth.PurgeExpiredSessions(ctx); err != nil {
				logger.Error("failed to purge expired sessions", "error", err)
			}
		}
	}
}
