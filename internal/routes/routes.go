package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/useraccounts/internal/auth"
	"github.com/BradenHooton/useraccounts/internal/config"
	"github.com/BradenHooton/useraccounts/internal/handlers"
	"github.com/BradenHooton/useraccounts/internal/middleware"
	pkghttp "github.com/BradenHooton/useraccounts/pkg/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Dependencies are the components the router dispatches to
type Dependencies struct {
	Users         *handlers.UserHandler
	Auth          *handlers.AuthHandler
	Health        *handlers.HealthHandler
	Authenticator *auth.Authenticator
	Proxies       *pkghttp.ProxyTrust
	Metrics       http.Handler // optional Prometheus handler
	Logger        *slog.Logger
}

// NewRouter builds the middleware stack and mounts the API under cfg.APIPrefix
func NewRouter(cfg config.ServerConfig, deps Dependencies) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: cfg.Env}))
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.SecureLogger(deps.Logger, deps.Proxies))
	router.Use(middleware.Metrics())
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(timeout))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "Not Found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed")
	})

	registerHealth(router, deps.Health)
	if deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	api := chi.NewRouter()
	registerHealth(api, deps.Health)
	RegisterRoutes(api, deps, middleware.RateLimitConfig{RequestsPerMinute: cfg.LoginRateLimit})

	if cfg.APIPrefix == "" || cfg.APIPrefix == "/" {
		router.Mount("/", api)
	} else {
		router.Mount(cfg.APIPrefix, api)
	}

	return router
}

func registerHealth(r chi.Router, h *handlers.HealthHandler) {
	r.Get("/health", h.Health)
	r.Get("/health/readiness", h.Readiness)
}

// RegisterRoutes registers the account endpoints
func RegisterRoutes(router chi.Router, deps Dependencies, loginLimit middleware.RateLimitConfig) {
	// Public routes - no authentication required
	router.Post("/users", deps.Users.CreateUser)
	router.Get("/users", deps.Users.ListUsers)
	router.With(middleware.RateLimitByIP(loginLimit, deps.Proxies)).Post("/users/login", deps.Auth.Login)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(deps.Authenticator.Middleware)

		r.Get("/users/me", deps.Users.GetCurrentUser)
		r.Post("/users/me/change-password", deps.Users.ChangeOwnPassword)

		// Self or superuser, checked by the service
		r.Get("/users/{id}", deps.Users.GetUser)
		r.Patch("/users/{id}", deps.Users.UpdateUser)
		r.Post("/users/{id}/change-password", deps.Users.ChangePassword)

		r.With(auth.RequireSuperuser).Post("/users/{id}/deactivate", deps.Users.DeactivateUser)
	})
}
