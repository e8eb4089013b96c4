package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/snapsolve/backend/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// TierUpdate is a partial update applied to an account's subscription state.
// Nil fields are left untouched.
type TierUpdate struct {
	Tier   *models.Tier
	Status *models.SubscriptionStatus
}

// AccountRepository is the credential store: persistent account records
// keyed by ID and by normalized email.
type AccountRepository interface {
	// Create persists a new account. Surfaces a duplicate-email failure via
	// the DB unique constraint, so concurrent duplicate registration fails
	// on exactly one writer.
	Create(ctx context.Context, account *models.Account) error

	// GetByID retrieves an account by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)

	// GetByEmail retrieves an account by normalized email (case-insensitive)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)

	// GetByBillingCustomerID retrieves an account by its payment-processor customer ID
	GetByBillingCustomerID(ctx context.Context, customerID string) (*models.Account, error)

	// UpdateTier applies a partial tier/status overwrite and bumps updated_at.
	// Overwrite semantics keep billing-event replays idempotent.
	UpdateTier(ctx context.Context, accountID uuid.UUID, update TierUpdate) error

	// SetBillingCustomerID binds the payment-processor customer record to the account
	SetBillingCustomerID(ctx context.Context, email, customerID string) error

	// IncrementUsage adds amount to both usage counters. The daily counter
	// rolls to zero first when its anchor date is before today (UTC).
	IncrementUsage(ctx context.Context, accountID uuid.UUID, amount int) error

	// ResetDailyUsage zeroes stale daily counters in bulk and returns the
	// number of accounts reset. Invoked by the scheduled UTC-midnight sweep.
	ResetDailyUsage(ctx context.Context) (int64, error)
}

// SessionRepository is the session registry: fingerprints of issued tokens
// with expiry, enabling server-side revocation of stateless tokens.
type SessionRepository interface {
	// Create records a session for the account
	Create(ctx context.Context, session *models.Session) error

	// IsLive reports whether an unexpired session with the fingerprint
	// exists for the account
	IsLive(ctx context.Context, accountID uuid.UUID, fingerprint string) (bool, error)

	// RevokeAll deletes every session for the account ("log out everywhere")
	RevokeAll(ctx context.Context, accountID uuid.UUID) error

	// SweepExpired deletes sessions past expiry and returns the count.
	// Safe to run concurrently and repeatedly; IsLive re-checks expiry anyway.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// Repositories aggregates all repository instances
type Repositories struct {
	Accounts AccountRepository
	Sessions SessionRepository
}
