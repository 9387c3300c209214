package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/useraccounts/internal/auth"
	"github.com/BradenHooton/useraccounts/internal/background"
	"github.com/BradenHooton/useraccounts/internal/config"
	"github.com/BradenHooton/useraccounts/internal/database"
	"github.com/BradenHooton/useraccounts/internal/handlers"
	"github.com/BradenHooton/useraccounts/internal/repositories"
	"github.com/BradenHooton/useraccounts/internal/routes"
	"github.com/BradenHooton/useraccounts/internal/services"
	"github.com/BradenHooton/useraccounts/internal/telemetry"
	pkghttp "github.com/BradenHooton/useraccounts/pkg/http"
	pkglogger "github.com/BradenHooton/useraccounts/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	serviceName      = "useraccounts"
	shutdownTimeout  = 30 * time.Second
	bootstrapTimeout = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := pkglogger.New(os.Stdout, cfg.Server.Env, cfg.Server.LogLevel)
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("api_prefix", cfg.Server.APIPrefix),
		slog.String("invalidation_store", cfg.Auth.InvalidationStore),
	)

	tel, err := telemetry.Setup(serviceName, cfg.Server.Env)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	proxies, err := pkghttp.NewProxyTrust(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAlgorithm, cfg.Auth.AccessTokenExpiry)
	if err != nil {
		return fmt.Errorf("create token manager: %w", err)
	}

	invalidator, cleanup := newInvalidator(cfg.Auth, db, logger)

	userRepo := repositories.NewUserRepository(db.Pool)
	userService := newUserService(db, invalidator, logger)
	authService := services.NewAuthService(userRepo, tokens, auth.NewLoginDelay(cfg.Auth.LoginFailureDelay, cfg.Auth.LoginFailureDelay/2), logger)

	bootstrapCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	err = ensureAdmin(bootstrapCtx, cfg.Admin, userService, logger)
	cancel()
	if err != nil {
		return err
	}

	router := routes.NewRouter(cfg.Server, routes.Dependencies{
		Users:         handlers.NewUserHandler(userService),
		Auth:          handlers.NewAuthHandler(authService),
		Health:        handlers.NewHealthHandler(db, logger),
		Authenticator: auth.NewAuthenticator(tokens, userRepo, invalidator, logger),
		Proxies:       proxies,
		Metrics:       tel.Handler(),
		Logger:        logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cleanup != nil {
		go cleanup.Start(ctx)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if cleanup != nil {
		cleanup.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown failed", slog.Any("error", err))
	}

	logger.Info("server stopped gracefully")
	return nil
}

// newInvalidator selects the session invalidation backend. Only the postgres
// store needs a sweeper for expired rows.
func newInvalidator(cfg config.AuthConfig, db *database.DB, logger *slog.Logger) (auth.SessionInvalidator, *background.CleanupManager) {
	switch cfg.InvalidationStore {
	case config.InvalidationStoreCache:
		return auth.NewCacheInvalidator(cfg.AccessTokenExpiry), nil
	case config.InvalidationStorePostgres:
		repo := repositories.NewSessionInvalidationRepository(db.Pool)
		inv := auth.NewStoreInvalidator(repo, cfg.AccessTokenExpiry).
			WithTxStore(func(tx database.DBTX) auth.InvalidationStore {
				return repositories.NewSessionInvalidationRepository(tx)
			})
		return inv, background.NewCleanupManager(repo, logger, cfg.CleanupInterval)
	default:
		logger.Warn("session invalidations are kept in memory and are lost on restart")
		return auth.NewMemoryInvalidator(), nil
	}
}

// ensureAdmin seeds the configured superuser when ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdmin(ctx context.Context, cfg config.AdminConfig, users *services.UserService, logger *slog.Logger) error {
	if cfg.Email == "" || cfg.Password == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping superuser bootstrap")
		return nil
	}

	user, created, err := users.EnsureSuperuser(ctx, cfg.Email, cfg.Password, cfg.FullName)
	if err != nil {
		return fmt.Errorf("bootstrap superuser: %w", err)
	}
	if created {
		logger.Info("superuser created", slog.String("user_id", user.ID))
	} else {
		logger.Info("superuser already exists", slog.String("user_id", user.ID))
	}
	return nil
}
