package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/useraccounts/internal/auth"
	"github.com/BradenHooton/useraccounts/internal/models"
	pkgauth "github.com/BradenHooton/useraccounts/pkg/auth"
	pkglogger "github.com/BradenHooton/useraccounts/pkg/logger"
)

const msgBadCredentials = "Incorrect email or password"

// CredentialLookup is the read side of the user store needed for login
type CredentialLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthService exchanges credentials for access tokens
type AuthService struct {
	users   CredentialLookup
	tokens  *auth.TokenManager
	delay   *auth.LoginDelay
	logger  *slog.Logger
	metrics *serviceMetrics

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new AuthService. delay may be nil.
func NewAuthService(users CredentialLookup, tokens *auth.TokenManager, delay *auth.LoginDelay, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:   users,
		tokens:  tokens,
		delay:   delay,
		logger:  logger,
		metrics: newServiceMetrics(),
	}
}

// burnHash runs a bcrypt comparison against a throwaway hash so unknown
// emails cost the same as wrong passwords.
func (s *AuthService) burnHash(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = pkgauth.HashPassword("not-a-real-password-placeholder")
	})
	_ = pkgauth.VerifyPassword(password, s.dummyHash)
}

// Login verifies credentials and issues a bearer token. Unknown emails,
// wrong passwords and inactive accounts all yield ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, password string) (resp *models.TokenResponse, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer func() { endSpan(span, err) }()

	start := time.Now()
	fail := func(outcome string) (*models.TokenResponse, error) {
		s.metrics.login(ctx, outcome)
		s.delay.WaitFrom(ctx, start)
		return nil, models.NewError(models.ErrUnauthorized, msgBadCredentials)
	}

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return fail("invalid_request")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.burnHash(password)
			s.logger.Info("login failed: invalid credentials")
			return fail("invalid_credentials")
		}
		s.logger.Error("failed to get user for login", slog.Any("error", err))
		s.metrics.login(ctx, "error")
		return nil, models.ErrInternalServer
	}

	if !pkgauth.VerifyPassword(password, user.HashedPassword) {
		s.logger.Info("login failed: invalid credentials", slog.String("user_id", user.ID))
		return fail("invalid_credentials")
	}

	if !user.IsActive {
		s.logger.Info("login failed: inactive user", slog.String("user_id", user.ID))
		s.metrics.login(ctx, "inactive")
		s.delay.WaitFrom(ctx, start)
		return nil, models.NewError(models.ErrUnauthorized, "Inactive user")
	}

	token, expiresAt, err := s.tokens.Issue(user.Email)
	if err != nil {
		s.logger.Error("failed to issue access token", slog.String("user_id", user.ID), slog.Any("error", err))
		s.metrics.login(ctx, "error")
		return nil, models.ErrInternalServer
	}

	s.metrics.login(ctx, "success")
	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", pkglogger.SanitizedEmail(user.Email)),
	)

	return &models.TokenResponse{
		AccessToken: token,
		TokenType:   models.TokenTypeBearer,
		ExpiresAt:   expiresAt,
	}, nil
}
