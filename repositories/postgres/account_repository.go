package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/snapsolve/backend/models"
	"github.com/snapsolve/backend/repositories"
	"github.com/snapsolve/backend/services"
	"go.uber.org/zap"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

const accountColumns = `id, email, password_hash, name, tier, subscription_status,
		billing_customer_id, usage_daily, usage_total, usage_date, created_at, updated_at`

// AccountRepository implements the repositories.AccountRepository interface
type AccountRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB, logger *zap.Logger) repositories.AccountRepository {
	return &AccountRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new account. The unique constraint on email resolves
// concurrent duplicate registration: exactly one writer gets ErrDuplicateEmail.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, name, tier, subscription_status,
			billing_customer_id, usage_daily, usage_total, usage_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Name,
		account.Tier,
		account.SubscriptionStatus,
		account.BillingCustomerID,
		account.UsageDaily,
		account.UsageTotal,
		account.UsageDate,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return services.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	r.logger.Debug("account created",
		zap.String("id", account.ID.String()),
		zap.String("email", account.Email))
	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1`, accountColumns)
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves an account by email, case-insensitive
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE email = $1`, accountColumns)
	return r.getOne(ctx, query, models.NormalizeEmail(email))
}

// GetByBillingCustomerID retrieves an account by its payment-processor customer ID
func (r *AccountRepository) GetByBillingCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE billing_customer_id = $1`, accountColumns)
	return r.getOne(ctx, query, customerID)
}

func (r *AccountRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Account, error) {
	executor := GetExecutor(ctx, r.db)
	account := &models.Account{}

	err := executor.QueryRowContext(ctx, query, arg).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Name,
		&account.Tier,
		&account.SubscriptionStatus,
		&account.BillingCustomerID,
		&account.UsageDaily,
		&account.UsageTotal,
		&account.UsageDate,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// UpdateTier applies a partial tier/status overwrite. Only supplied fields
// change; updated_at is bumped either way. Pure overwrite keeps billing-event
// replays idempotent.
func (r *AccountRepository) UpdateTier(ctx context.Context, accountID uuid.UUID, update repositories.TierUpdate) error {
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []interface{}{accountID}

	if update.Tier != nil {
		args = append(args, *update.Tier)
		sets = append(sets, fmt.Sprintf("tier = $%d", len(args)))
	}
	if update.Status != nil {
		args = append(args, *update.Status)
		sets = append(sets, fmt.Sprintf("subscription_status = $%d", len(args)))
	}

	query := fmt.Sprintf(`UPDATE accounts SET %s WHERE id = $1`, strings.Join(sets, ", "))

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update tier: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return services.ErrAccountNotFound
	}

	r.logger.Debug("account tier updated", zap.String("id", accountID.String()))
	return nil
}

// SetBillingCustomerID binds the payment-processor customer record to the account
func (r *AccountRepository) SetBillingCustomerID(ctx context.Context, email, customerID string) error {
	query := `
		UPDATE accounts
		SET billing_customer_id = $2, updated_at = CURRENT_TIMESTAMP
		WHERE email = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, models.NormalizeEmail(email), customerID)
	if err != nil {
		return fmt.Errorf("failed to set billing customer id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return services.ErrAccountNotFound
	}

	return nil
}

// IncrementUsage adds amount to both usage counters in a single row-level
// atomic statement. When the daily anchor date is stale the daily counter
// restarts from the increment instead of accumulating.
func (r *AccountRepository) IncrementUsage(ctx context.Context, accountID uuid.UUID, amount int) error {
	query := `
		UPDATE accounts
		SET usage_daily = CASE WHEN usage_date < CURRENT_DATE THEN $2 ELSE usage_daily + $2 END,
			usage_total = usage_total + $2,
			usage_date = CURRENT_DATE,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, accountID, amount)
	if err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return services.ErrAccountNotFound
	}

	return nil
}

// ResetDailyUsage zeroes daily counters whose anchor date rolled past the
// fixed UTC-midnight boundary. The boundary is also enforced lazily by
// IncrementUsage, so this sweep is reclamation, not correctness.
func (r *AccountRepository) ResetDailyUsage(ctx context.Context) (int64, error) {
	query := `
		UPDATE accounts
		SET usage_daily = 0, usage_date = CURRENT_DATE, updated_at = CURRENT_TIMESTAMP
		WHERE usage_date < CURRENT_DATE AND usage_daily > 0
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reset daily usage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		r.logger.Info("daily usage counters reset", zap.Int64("accounts", rows))
	}
	return rows, nil
}
