package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/BradenHooton/useraccounts/internal/database"
	"github.com/BradenHooton/useraccounts/internal/models"
)

// SessionInvalidationRepository persists per-user session cutoffs
type SessionInvalidationRepository struct {
	db database.DBTX
}

func NewSessionInvalidationRepository(db database.DBTX) *SessionInvalidationRepository {
	return &SessionInvalidationRepository{db: db}
}

// Upsert records a cutoff. The most recent write wins.
func (r *SessionInvalidationRepository) Upsert(ctx context.Context, userID string, invalidatedAt, expiresAt time.Time) error {
	query := `
		INSERT INTO session_invalidations (user_id, invalidated_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET invalidated_at = EXCLUDED.invalidated_at, expires_at = EXCLUDED.expires_at
	`

	_, err := r.db.Exec(ctx, query, userID, invalidatedAt, expiresAt)
	return database.MapPostgresError(err)
}

// GetCutoff returns the user's cutoff, if one exists and has not expired
func (r *SessionInvalidationRepository) GetCutoff(ctx context.Context, userID string) (time.Time, bool, error) {
	query := `SELECT invalidated_at FROM session_invalidations WHERE user_id = $1 AND expires_at > $2`

	var cutoff time.Time
	err := r.db.QueryRow(ctx, query, userID, time.Now()).Scan(&cutoff)
	if err != nil {
		err = database.MapPostgresError(err)
		if errors.Is(err, models.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	return cutoff, true, nil
}

// CleanupExpired removes rows whose tokens can no longer be live
func (r *SessionInvalidationRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM session_invalidations WHERE expires_at < $1`

	result, err := r.db.Exec(ctx, query, time.Now())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
