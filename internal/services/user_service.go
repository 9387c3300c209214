package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BradenHooton/useraccounts/internal/database"
	"github.com/BradenHooton/useraccounts/internal/models"
	"github.com/BradenHooton/useraccounts/pkg/auth"
	pkglogger "github.com/BradenHooton/useraccounts/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	CountActiveSuperusers(ctx context.Context) (int, error)
}

// RepositoryFactory binds a UserRepository to a pool or transaction
type RepositoryFactory func(db database.DBTX) UserRepository

// Transactor runs fn inside a database transaction
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(tx database.DBTX) error) error
}

// SessionInvalidator revokes every token issued to a user before now
type SessionInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// TxSessionInvalidator is implemented by invalidators that keep their records
// in the user database. The write then joins the mutation's transaction.
type TxSessionInvalidator interface {
	InvalidateTx(ctx context.Context, tx database.DBTX, userID string) error
}

const (
	msgEmailTaken          = "Email already registered"
	msgNotEnoughPerms      = "Not enough permissions"
	msgUserNotFound        = "User not found"
	msgLastSuperuserDemote = "Cannot remove superuser status from the last superuser"
	msgLastSuperuserDeact  = "Cannot deactivate the last superuser"
	msgIncorrectPassword   = "Incorrect password"
)

// UserService handles user business logic
type UserService struct {
	tx          Transactor
	repoFor     RepositoryFactory
	users       UserRepository
	invalidator SessionInvalidator
	logger      *slog.Logger
	metrics     *serviceMetrics
}

// NewUserService creates a new UserService. pool is used for reads outside of
// a transaction; every mutation goes through tx.
func NewUserService(tx Transactor, pool database.DBTX, repoFor RepositoryFactory, invalidator SessionInvalidator, logger *slog.Logger) *UserService {
	return &UserService{
		tx:          tx,
		repoFor:     repoFor,
		users:       repoFor(pool),
		invalidator: invalidator,
		logger:      logger,
		metrics:     newServiceMetrics(),
	}
}

// invalidateTx records the cutoff inside tx for invalidators that keep it in
// the user database. Other invalidators are handled by invalidateAfterCommit.
func (s *UserService) invalidateTx(ctx context.Context, tx database.DBTX, userID string) error {
	if txi, ok := s.invalidator.(TxSessionInvalidator); ok {
		return txi.InvalidateTx(ctx, tx, userID)
	}
	return nil
}

// invalidateAfterCommit records the cutoff for in-process invalidators once
// the change is committed. A login that still saw the old row then gets a
// token older than the cutoff.
func (s *UserService) invalidateAfterCommit(ctx context.Context, userID string) error {
	if _, ok := s.invalidator.(TxSessionInvalidator); ok {
		return nil
	}
	if err := s.invalidator.Invalidate(ctx, userID); err != nil {
		return s.internal("failed to invalidate sessions", err, slog.String("user_id", userID))
	}
	return nil
}

// NormalizeEmail trims surrounding whitespace and lower-cases the domain.
// The local part is kept as given, so addresses are case-sensitive as stored.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

// canAccess reports whether actor may read or modify target's account
func canAccess(actor *models.User, targetID string) bool {
	return actor != nil && (actor.ID == targetID || actor.IsSuperuser)
}

// internal passes known error kinds through and collapses everything else
// to ErrInternalServer after logging it.
func (s *UserService) internal(msg string, err error, attrs ...any) error {
	for _, kind := range []error{
		models.ErrNotFound, models.ErrConflict, models.ErrForbidden, models.ErrUnauthorized,
		models.ErrBadRequest, models.ErrInvalidOperation, models.ErrIncorrectPassword,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	s.logger.Error(msg, append(attrs, slog.Any("error", err))...)
	return models.ErrInternalServer
}

func passwordError(err error) error {
	return models.NewError(models.ErrBadRequest, err.Error())
}

// Register creates a new account
func (s *UserService) Register(ctx context.Context, in models.UserCreate) (created *models.User, err error) {
	ctx, span := tracer.Start(ctx, "UserService.Register")
	defer func() { endSpan(span, err) }()

	in.Email = NormalizeEmail(in.Email)
	if in.Email == "" {
		return nil, models.NewError(models.ErrBadRequest, "Email is required")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, passwordError(err)
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, s.internal("failed to hash password", err)
	}

	user := &models.User{
		Email:          in.Email,
		FullName:       strings.TrimSpace(in.FullName),
		HashedPassword: hashed,
		IsActive:       in.IsActive,
		IsSuperuser:    in.IsSuperuser,
	}

	err = s.tx.WithTransaction(ctx, func(tx database.DBTX) error {
		repo := s.repoFor(tx)
		if _, err := repo.GetByEmail(ctx, user.Email); err == nil {
			return models.ErrConflict
		} else if !errors.Is(err, models.ErrNotFound) {
			return err
		}

		created, err = repo.Create(ctx, user)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Info("registration rejected: email already registered",
				slog.String("email", pkglogger.SanitizedEmail(user.Email)))
			return nil, models.NewError(models.ErrConflict, msgEmailTaken)
		}
		return nil, s.internal("failed to create user", err)
	}

	s.metrics.registered(ctx)
	s.logger.Info("user created", slog.String("user_id", created.ID))
	return created, nil
}

// ListUsers returns every account
func (s *UserService) ListUsers(ctx context.Context) (users []*models.User, err error) {
	ctx, span := tracer.Start(ctx, "UserService.ListUsers")
	defer func() { endSpan(span, err) }()

	users, err = s.users.List(ctx)
	if err != nil {
		return nil, s.internal("failed to list users", err)
	}
	return users, nil
}

// GetUser returns the account identified by id. Non-superusers may only read their own.
func (s *UserService) GetUser(ctx context.Context, actor *models.User, id string) (user *models.User, err error) {
	ctx, span := tracer.Start(ctx, "UserService.GetUser", trace.WithAttributes(attribute.String("user.id", id)))
	defer func() { endSpan(span, err) }()

	if !canAccess(actor, id) {
		return nil, models.NewError(models.ErrForbidden, msgNotEnoughPerms)
	}

	user, err = s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewError(models.ErrNotFound, msgUserNotFound)
		}
		return nil, s.internal("failed to get user", err, slog.String("user_id", id))
	}
	return user, nil
}

// guardLastSuperuser fails when target is the only remaining active superuser.
// Must run inside the transaction that performs the change.
func guardLastSuperuser(ctx context.Context, repo UserRepository, target *models.User, message string) error {
	if !target.IsActive || !target.IsSuperuser {
		return nil
	}
	count, err := repo.CountActiveSuperusers(ctx)
	if err != nil {
		return err
	}
	if count <= 1 {
		return models.NewError(models.ErrInvalidOperation, message)
	}
	return nil
}

// UpdateUser applies a partial update. Only superusers may change is_active
// or is_superuser; the last active superuser can be neither demoted nor
// deactivated. Password changes and deactivation revoke existing sessions.
func (s *UserService) UpdateUser(ctx context.Context, actor *models.User, id string, upd models.UserUpdate) (updated *models.User, err error) {
	ctx, span := tracer.Start(ctx, "UserService.UpdateUser", trace.WithAttributes(attribute.String("user.id", id)))
	defer func() { endSpan(span, err) }()

	if !canAccess(actor, id) {
		return nil, models.NewError(models.ErrForbidden, msgNotEnoughPerms)
	}
	if upd.TouchesPrivileges() && !actor.IsSuperuser {
		return nil, models.NewError(models.ErrForbidden, msgNotEnoughPerms)
	}

	var newHash string
	if upd.Password != nil {
		if err := auth.ValidatePassword(*upd.Password); err != nil {
			return nil, passwordError(err)
		}
		if newHash, err = auth.HashPassword(*upd.Password); err != nil {
			return nil, s.internal("failed to hash password", err)
		}
	}
	if upd.Email != nil {
		normalized := NormalizeEmail(*upd.Email)
		if normalized == "" {
			return nil, models.NewError(models.ErrBadRequest, "Email cannot be empty")
		}
		upd.Email = &normalized
	}

	revoke := newHash != "" || upd.Deactivates()

	err = s.tx.WithTransaction(ctx, func(tx database.DBTX) error {
		repo := s.repoFor(tx)

		target, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if upd.Demotes() {
			if err := guardLastSuperuser(ctx, repo, target, msgLastSuperuserDemote); err != nil {
				return err
			}
		}
		if upd.Deactivates() {
			if err := guardLastSuperuser(ctx, repo, target, msgLastSuperuserDeact); err != nil {
				return err
			}
		}

		if upd.Email != nil && *upd.Email != target.Email {
			if _, err := repo.GetByEmail(ctx, *upd.Email); err == nil {
				return models.ErrConflict
			} else if !errors.Is(err, models.ErrNotFound) {
				return err
			}
			target.Email = *upd.Email
		}
		if upd.FullName != nil {
			target.FullName = strings.TrimSpace(*upd.FullName)
		}
		if newHash != "" {
			target.HashedPassword = newHash
		}
		if upd.IsActive != nil {
			target.IsActive = *upd.IsActive
		}
		if upd.IsSuperuser != nil {
			target.IsSuperuser = *upd.IsSuperuser
		}

		if updated, err = repo.Update(ctx, target); err != nil {
			return err
		}

		if revoke {
			return s.invalidateTx(ctx, tx, id)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return nil, models.NewError(models.ErrNotFound, msgUserNotFound)
		case errors.Is(err, models.ErrConflict):
			return nil, models.NewError(models.ErrConflict, msgEmailTaken)
		}
		return nil, s.internal("failed to update user", err, slog.String("user_id", id))
	}

	if revoke {
		if err := s.invalidateAfterCommit(ctx, id); err != nil {
			return nil, err
		}
		s.metrics.invalidated(ctx, "update")
	}
	s.logger.Info("user updated", slog.String("user_id", id), slog.String("actor_id", actor.ID))
	return updated, nil
}

// DeactivateUser marks an account inactive and revokes its sessions. Superuser only.
func (s *UserService) DeactivateUser(ctx context.Context, actor *models.User, id string) (updated *models.User, err error) {
	ctx, span := tracer.Start(ctx, "UserService.DeactivateUser", trace.WithAttributes(attribute.String("user.id", id)))
	defer func() { endSpan(span, err) }()

	if actor == nil || !actor.IsSuperuser {
		return nil, models.NewError(models.ErrForbidden, msgNotEnoughPerms)
	}

	err = s.tx.WithTransaction(ctx, func(tx database.DBTX) error {
		repo := s.repoFor(tx)

		target, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := guardLastSuperuser(ctx, repo, target, msgLastSuperuserDeact); err != nil {
			return err
		}

		target.IsActive = false
		if updated, err = repo.Update(ctx, target); err != nil {
			return err
		}
		return s.invalidateTx(ctx, tx, id)
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewError(models.ErrNotFound, msgUserNotFound)
		}
		return nil, s.internal("failed to deactivate user", err, slog.String("user_id", id))
	}
	if err := s.invalidateAfterCommit(ctx, id); err != nil {
		return nil, err
	}

	s.metrics.invalidated(ctx, "deactivate")
	s.logger.Info("user deactivated", slog.String("user_id", id), slog.String("actor_id", actor.ID))
	return updated, nil
}

// ChangePassword replaces the password after checking the current one and
// revokes every session of the account.
func (s *UserService) ChangePassword(ctx context.Context, actor *models.User, id, currentPassword, newPassword string) (updated *models.User, err error) {
	ctx, span := tracer.Start(ctx, "UserService.ChangePassword", trace.WithAttributes(attribute.String("user.id", id)))
	defer func() { endSpan(span, err) }()

	if !canAccess(actor, id) {
		return nil, models.NewError(models.ErrForbidden, msgNotEnoughPerms)
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return nil, passwordError(err)
	}

	newHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return nil, s.internal("failed to hash password", err)
	}

	err = s.tx.WithTransaction(ctx, func(tx database.DBTX) error {
		repo := s.repoFor(tx)

		target, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !auth.VerifyPassword(currentPassword, target.HashedPassword) {
			return models.NewError(models.ErrIncorrectPassword, msgIncorrectPassword)
		}

		target.HashedPassword = newHash
		if updated, err = repo.Update(ctx, target); err != nil {
			return err
		}
		return s.invalidateTx(ctx, tx, id)
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewError(models.ErrNotFound, msgUserNotFound)
		}
		return nil, s.internal("failed to change password", err, slog.String("user_id", id))
	}
	if err := s.invalidateAfterCommit(ctx, id); err != nil {
		return nil, err
	}

	s.metrics.invalidated(ctx, "password_change")
	s.logger.Info("password changed", slog.String("user_id", id), slog.String("actor_id", actor.ID))
	return updated, nil
}

// EnsureSuperuser creates an active superuser with the given credentials
// unless an account with that email already exists. The boolean reports
// whether a new account was created.
func (s *UserService) EnsureSuperuser(ctx context.Context, email, password, fullName string) (*models.User, bool, error) {
	existing, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, s.internal("failed to look up superuser", err)
	}

	created, err := s.Register(ctx, models.UserCreate{
		Email:       email,
		Password:    password,
		FullName:    fullName,
		IsActive:    true,
		IsSuperuser: true,
	})
	if err != nil {
		// Lost a race with another instance seeding the same account
		if errors.Is(err, models.ErrConflict) {
			existing, getErr := s.users.GetByEmail(ctx, NormalizeEmail(email))
			if getErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	return created, true, nil
}
