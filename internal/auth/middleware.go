package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/useraccounts/internal/models"
	pkghttp "github.com/BradenHooton/useraccounts/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for the authenticated *models.User
	UserContextKey contextKey = "user"
)

const credentialsError = "Could not validate credentials"

// UserLookup resolves the token subject to a stored user
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Authenticator turns a bearer token into the active user it belongs to
type Authenticator struct {
	tokens      *TokenManager
	users       UserLookup
	invalidator SessionInvalidator
	logger      *slog.Logger
}

func NewAuthenticator(tokens *TokenManager, users UserLookup, invalidator SessionInvalidator, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		tokens:      tokens,
		users:       users,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Authenticate verifies the token and loads its user. It returns
// models.ErrUnauthorized for any credential problem; other errors are
// infrastructure failures.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := a.tokens.Verify(token)
	if err != nil {
		return nil, models.ErrUnauthorized
	}

	user, err := a.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, models.NewError(models.ErrUnauthorized, "Inactive user")
	}

	valid, err := a.invalidator.IsValid(ctx, user.ID, claims.IssuedAt.Time)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, models.NewError(models.ErrUnauthorized, "Token has been invalidated")
	}

	return user, nil
}

// Middleware requires a valid bearer token and stores the user in the request context
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			pkghttp.WriteUnauthorized(w, "Not authenticated")
			return
		}

		user, err := a.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, models.ErrUnauthorized) {
				pkghttp.WriteUnauthorized(w, models.MessageOf(err, credentialsError))
				return
			}
			a.logger.Error("authentication lookup failed", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "An unexpected error occurred")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSuperuser rejects authenticated users without superuser status.
// Must be mounted after Middleware.
func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r)
		if user == nil {
			pkghttp.WriteUnauthorized(w, "Not authenticated")
			return
		}
		if !user.IsSuperuser {
			pkghttp.WriteForbidden(w, "Not enough permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext extracts the authenticated user from the request context
func GetUserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
