package tier

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/snapsolve/backend/config"
	"github.com/snapsolve/backend/models"
	"github.com/snapsolve/backend/repositories"
	"github.com/snapsolve/backend/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockAccountRepository is a mock implementation of repositories.AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByBillingCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) UpdateTier(ctx context.Context, accountID uuid.UUID, update repositories.TierUpdate) error {
	args := m.Called(ctx, accountID, update)
	return args.Error(0)
}

func (m *MockAccountRepository) SetBillingCustomerID(ctx context.Context, email, customerID string) error {
	args := m.Called(ctx, email, customerID)
	return args.Error(0)
}

func (m *MockAccountRepository) IncrementUsage(ctx context.Context, accountID uuid.UUID, amount int) error {
	args := m.Called(ctx, accountID, amount)
	return args.Error(0)
}

func (m *MockAccountRepository) ResetDailyUsage(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockSessionRepository is a mock implementation of repositories.SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) IsLive(ctx context.Context, accountID uuid.UUID, fingerprint string) (bool, error) {
	args := m.Called(ctx, accountID, fingerprint)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepository) RevokeAll(ctx context.Context, accountID uuid.UUID) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

func (m *MockSessionRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// passthroughTxManager executes the function directly, no real transaction
type passthroughTxManager struct{}

func (passthroughTxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return nil, nil
}

func (passthroughTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	return fn(ctx, nil)
}

func testBillingConfig() config.BillingConfig {
	return config.BillingConfig{
		PriceTiers: map[string]string{
			"price_premium_monthly": "premium",
			"price_pro_monthly":     "pro",
		},
	}
}

func newTestReconciler(accounts *MockAccountRepository, sessions *MockSessionRepository) *Reconciler {
	return NewReconciler(accounts, sessions, passthroughTxManager{}, testBillingConfig(), zap.NewNop())
}

func tierUpdateMatcher(tier models.Tier, status models.SubscriptionStatus) interface{} {
	return mock.MatchedBy(func(u repositories.TierUpdate) bool {
		return u.Tier != nil && *u.Tier == tier && u.Status != nil && *u.Status == status
	})
}

func TestApplyBillingEvent_Checkout(t *testing.T) {
	ctx := context.Background()

	t.Run("binds customer and applies purchased tier", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		reconciler := newTestReconciler(accounts, sessions)

		account := models.NewAccount("buyer@example.com", "h", "n", models.TierFree)
		accounts.On("SetBillingCustomerID", ctx, "buyer@example.com", "cus_123").Return(nil)
		accounts.On("GetByEmail", ctx, "buyer@example.com").Return(account, nil)
		accounts.On("UpdateTier", ctx, account.ID,
			tierUpdateMatcher(models.TierPremium, models.SubscriptionActive)).Return(nil)

		err := reconciler.ApplyBillingEvent(ctx, &models.BillingEvent{
			ID:         "evt_1",
			Type:       models.EventCheckoutCompleted,
			Email:      "buyer@example.com",
			CustomerID: "cus_123",
			PriceID:    "price_premium_monthly",
		})
		require.NoError(t, err)
		accounts.AssertExpectations(t)
	})

	t.Run("checkout for unknown account is skipped", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		reconciler := newTestReconciler(accounts, new(MockSessionRepository))

		accounts.On("SetBillingCustomerID", ctx, "ghost@example.com", "cus_404").
			Return(services.ErrAccountNotFound)

		err := reconciler.ApplyBillingEvent(ctx, &models.BillingEvent{
			ID:         "evt_2",
			Type:       models.EventCheckoutCompleted,
			Email:      "ghost@example.com",
			CustomerID: "cus_404",
			PriceID:    "price_premium_monthly",
		})
		assert.NoError(t, err)
		accounts.AssertNotCalled(t, "UpdateTier", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("checkout missing identifiers is skipped", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		reconciler := newTestReconciler(accounts, new(MockSessionRepository))

		err := reconciler.ApplyBillingEvent(ctx, &models.BillingEvent{
			ID:   "evt_3",
			Type: models.EventCheckoutCompleted,
		})
		assert.NoError(t, err)
		accounts.AssertNotCalled(t, "SetBillingCustomerID", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestApplyBillingEvent_Subscription(t *testing.T) {
	ctx := context.Background()

	t.Run("upgrade applies tier without revoking sessions", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		reconciler := newTestReconciler(accounts, sessions)

		account := models.NewAccount("a@b.co", "h", "n", models.TierPremium)
		accounts.On("GetByBillingCustomerID", ctx, "cus_1").Return(account, nil)
		accounts.On("UpdateTier", ctx, account.ID,
			tierUpdateMatcher(models.TierPro, models.SubscriptionActive)).Return(nil)

		err := reconciler.ApplyBillingEvent(ctx, &models.BillingEvent{
			ID:         "evt_4",
			Type:       models.EventSubscriptionUpdated,
			CustomerID: "cus_1",
			PriceID:    "price_pro_monthly",
		})
		require.NoError(t, err)
		sessions.AssertNotCalled(t, "RevokeAll", mock.Anything, mock.Anything)
	})

	t.Run("downgrade revokes all sessions", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		reconciler := newTestReconciler(accounts, sessions)

		account := models.NewAccount("a@b.co", "h", "n", models.TierPro)
		accounts.On("GetByBillingCustomerID", ctx, "cus_1").Return(account, nil)
		accounts.On("UpdateTier", ctx, account.ID,
			tierUpdateMatcher(models.TierPremium, models.SubscriptionActive)).Return(nil)
		sessions.On("RevokeAll", ctx, account.ID).Return(nil)

		err := reconciler.ApplyBillingEvent(ctx, &models.BillingEvent{
			ID:         "evt_5",
			Type:       models.EventSubscriptionUpdated,
			CustomerID: "cus_1",
			PriceID:    "price_premium_monthly",
		})
		require.NoError(t, err)
		sessions.AssertExpectations(t)
	})

	t.Run("unmapped price is skipped", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		reconciler := newTestReconciler(accounts, new(MockSessionRepository))

		account := models.NewAccount("a@b.co", "h", "n", models.TierFree)
		accounts.On("GetByBillingCustomerID", ctx, "cus_1").Return(account, nil)

		err := reconciler.ApplyBillingEvent(ctx, &models.BillingEvent{
			ID:         "evt_6",
			Type:       models.EventSubscriptionCreated,
			CustomerID: "cus_1",
			PriceID:    "price_unknown",
		})
		assert.NoError(t, err)
		accounts.AssertNotCalled(t, "UpdateTier", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown customer is skipped", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		reconciler := newTestReconciler(accounts, new(MockSessionRepository))

		accounts.On("GetByBillingCustomerID", ctx, "cus_404").
			Return(nil, services.ErrAccountNotFound)

		err := reconciler.ApplyBillingEvent(ctx, &models.BillingEvent{
			ID:         "evt_7",
			Type:       models.EventSubscriptionCreated,
			CustomerID: "cus_404",
			PriceID:    "price_pro_monthly",
		})
		assert.NoError(t, err)
	})
}

func TestApplyBillingEvent_Cancellation(t *testing.T) {
	ctx := context.Background()

	t.Run("cancellation downgrades to free and revokes sessions", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		reconciler := newTestReconciler(accounts, sessions)

		account := models.NewAccount("a@b.co", "h", "n", models.TierPro)
		accounts.On("GetByBillingCustomerID", ctx, "cus_1").Return(account, nil)
		accounts.On("UpdateTier", ctx, account.ID,
			tierUpdateMatcher(models.TierFree, models.SubscriptionCancelled)).Return(nil)
		sessions.On("RevokeAll", ctx, account.ID).Return(nil)

		err := reconciler.ApplyBillingEvent(ctx, &models.BillingEvent{
			ID:         "evt_8",
			Type:       models.EventSubscriptionDeleted,
			CustomerID: "cus_1",
		})
		require.NoError(t, err)
		accounts.AssertExpectations(t)
		sessions.AssertExpectations(t)
	})

	t.Run("replayed cancellation is an idempotent overwrite", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		reconciler := newTestReconciler(accounts, sessions)

		// Already free/cancelled after the first delivery.
		account := models.NewAccount("a@b.co", "h", "n", models.TierFree)
		account.SubscriptionStatus = models.SubscriptionCancelled
		accounts.On("GetByBillingCustomerID", ctx, "cus_1").Return(account, nil)
		accounts.On("UpdateTier", ctx, account.ID,
			tierUpdateMatcher(models.TierFree, models.SubscriptionCancelled)).Return(nil)

		event := &models.BillingEvent{
			ID:         "evt_9",
			Type:       models.EventSubscriptionDeleted,
			CustomerID: "cus_1",
		}
		require.NoError(t, reconciler.ApplyBillingEvent(ctx, event))
		require.NoError(t, reconciler.ApplyBillingEvent(ctx, event))

		// free is not below free; no revocation on the replay.
		sessions.AssertNotCalled(t, "RevokeAll", mock.Anything, mock.Anything)
	})
}

func TestApplyBillingEvent_UnhandledType(t *testing.T) {
	accounts := new(MockAccountRepository)
	reconciler := newTestReconciler(accounts, new(MockSessionRepository))

	err := reconciler.ApplyBillingEvent(context.Background(), &models.BillingEvent{
		ID:   "evt_10",
		Type: "customer.updated",
	})
	assert.NoError(t, err)
	accounts.AssertNotCalled(t, "GetByBillingCustomerID", mock.Anything, mock.Anything)
}
