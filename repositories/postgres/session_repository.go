package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/snapsolve/backend/models"
	"github.com/snapsolve/backend/repositories"
	"go.uber.org/zap"
)

// SessionRepository implements the repositories.SessionRepository interface
type SessionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB, logger *zap.Logger) repositories.SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// Create records a session for the account
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, account_id, token_fingerprint, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		session.ID,
		session.AccountID,
		session.TokenFingerprint,
		session.ExpiresAt,
		session.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	r.logger.Debug("session created",
		zap.String("id", session.ID.String()),
		zap.String("account_id", session.AccountID.String()))
	return nil
}

// IsLive reports whether an unexpired session with the fingerprint exists
// for the account. Expiry is checked here at read time, so the periodic
// sweep is never load-bearing.
func (r *SessionRepository) IsLive(ctx context.Context, accountID uuid.UUID, fingerprint string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE account_id = $1 AND token_fingerprint = $2 AND expires_at > CURRENT_TIMESTAMP
		)
	`

	executor := GetExecutor(ctx, r.db)
	var live bool
	if err := executor.QueryRowContext(ctx, query, accountID, fingerprint).Scan(&live); err != nil {
		return false, fmt.Errorf("failed to check session liveness: %w", err)
	}

	return live, nil
}

// RevokeAll deletes every session for the account ("log out everywhere")
func (r *SessionRepository) RevokeAll(ctx context.Context, accountID uuid.UUID) error {
	query := `DELETE FROM sessions WHERE account_id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	rows, _ := result.RowsAffected()
	r.logger.Debug("sessions revoked",
		zap.String("account_id", accountID.String()),
		zap.Int64("count", rows))
	return nil
}

// SweepExpired deletes sessions past expiry and returns the count removed.
// Purely storage reclamation; safe to run concurrently and repeatedly.
func (r *SessionRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at <= $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		r.logger.Info("expired sessions swept", zap.Int64("count", rows))
	}
	return rows, nil
}
