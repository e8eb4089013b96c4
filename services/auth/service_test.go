package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/snapsolve/backend/config"
	"github.com/snapsolve/backend/models"
	"github.com/snapsolve/backend/repositories"
	"github.com/snapsolve/backend/services"
	"github.com/snapsolve/backend/services/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
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

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:         "test-secret",
		TokenLifetime:     time.Hour,
		SessionLifetime:   time.Hour,
		BcryptCost:        bcrypt.MinCost,
		MinPasswordLength: 6,
		DefaultTier:       "premium",
	}
}

func newTestService(t *testing.T, accounts *MockAccountRepository, sessions *MockSessionRepository) *Service {
	t.Helper()
	codec, err := token.NewCodec(testAuthConfig(), zap.NewNop())
	require.NoError(t, err)
	return NewService(accounts, sessions, codec, testAuthConfig(), zap.NewNop())
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("success opens a session with the default tier", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		service := newTestService(t, accounts, sessions)

		accounts.On("Create", ctx, mock.AnythingOfType("*models.Account")).Return(nil)
		sessions.On("Create", ctx, mock.AnythingOfType("*models.Session")).Return(nil)

		result, err := service.Register(ctx, "New@Example.com", "hunter22", "Jamie")
		require.NoError(t, err)

		assert.Equal(t, "new@example.com", result.Account.Email)
		assert.Equal(t, models.TierPremium, result.Account.Tier)
		assert.NotEmpty(t, result.Token)
		assert.NotEqual(t, "hunter22", result.Account.PasswordHash)

		// The stored session must fingerprint the issued token.
		createdSession := sessions.Calls[0].Arguments.Get(1).(*models.Session)
		assert.Equal(t, Fingerprint(result.Token), createdSession.TokenFingerprint)

		accounts.AssertExpectations(t)
		sessions.AssertExpectations(t)
	})

	t.Run("invalid email rejected before any store access", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		service := newTestService(t, accounts, sessions)

		for _, email := range []string{"", "no-at-sign", "user@", "user@host"} {
			_, err := service.Register(ctx, email, "hunter22", "Jamie")
			assert.ErrorIs(t, err, services.ErrInvalidEmail, "email %q", email)
		}
		accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("short password rejected", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		service := newTestService(t, accounts, sessions)

		_, err := service.Register(ctx, "a@b.co", "short", "Jamie")
		assert.ErrorIs(t, err, services.ErrWeakPassword)
		assert.Equal(t, 6, services.GetErrorDetails(err)["min_length"])
	})

	t.Run("blank name rejected", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		service := newTestService(t, accounts, sessions)

		_, err := service.Register(ctx, "a@b.co", "hunter22", "   ")
		assert.ErrorIs(t, err, services.ErrInvalidInput)
	})

	t.Run("duplicate email propagates unchanged", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		service := newTestService(t, accounts, sessions)

		accounts.On("Create", ctx, mock.Anything).Return(services.ErrDuplicateEmail)

		_, err := service.Register(ctx, "taken@example.com", "hunter22", "Jamie")
		assert.ErrorIs(t, err, services.ErrDuplicateEmail)
		sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	account := models.NewAccount("a@b.co", string(hash), "Jamie", models.TierPro)

	t.Run("success", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		service := newTestService(t, accounts, sessions)

		accounts.On("GetByEmail", ctx, "a@b.co").Return(account, nil)
		sessions.On("Create", ctx, mock.Anything).Return(nil)

		result, err := service.Login(ctx, "a@b.co", "hunter22")
		require.NoError(t, err)
		assert.Equal(t, account.ID, result.Account.ID)
		assert.NotEmpty(t, result.Token)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		service := newTestService(t, accounts, sessions)

		accounts.On("GetByEmail", ctx, "missing@b.co").Return(nil, services.ErrAccountNotFound)
		accounts.On("GetByEmail", ctx, "a@b.co").Return(account, nil)

		_, errMissing := service.Login(ctx, "missing@b.co", "hunter22")
		_, errWrongPw := service.Login(ctx, "a@b.co", "not-the-password")

		assert.ErrorIs(t, errMissing, services.ErrInvalidCredentials)
		assert.ErrorIs(t, errWrongPw, services.ErrInvalidCredentials)
		assert.Equal(t, errMissing.Error(), errWrongPw.Error())
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token with live session returns current account", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		service := newTestService(t, accounts, sessions)

		account := models.NewAccount("a@b.co", "hash", "Jamie", models.TierFree)
		tok, err := service.codec.Issue(account.ID, account.Email)
		require.NoError(t, err)

		sessions.On("IsLive", ctx, account.ID, Fingerprint(tok)).Return(true, nil)
		// Tier changed since issuance; verify must return the fresh row.
		upgraded := *account
		upgraded.Tier = models.TierPro
		accounts.On("GetByID", ctx, account.ID).Return(&upgraded, nil)

		got, err := service.Verify(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, models.TierPro, got.Tier)
	})

	t.Run("revoked session fails even though signature parses", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		service := newTestService(t, accounts, sessions)

		accountID := uuid.New()
		tok, err := service.codec.Issue(accountID, "a@b.co")
		require.NoError(t, err)

		sessions.On("IsLive", ctx, accountID, Fingerprint(tok)).Return(false, nil)

		_, err = service.Verify(ctx, tok)
		assert.ErrorIs(t, err, services.ErrSessionExpired)
		accounts.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("deleted account fails closed", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		service := newTestService(t, accounts, sessions)

		accountID := uuid.New()
		tok, err := service.codec.Issue(accountID, "a@b.co")
		require.NoError(t, err)

		sessions.On("IsLive", ctx, accountID, Fingerprint(tok)).Return(true, nil)
		accounts.On("GetByID", ctx, accountID).Return(nil, services.ErrAccountNotFound)

		_, err = service.Verify(ctx, tok)
		assert.ErrorIs(t, err, services.ErrUserNotFound)
	})

	t.Run("malformed token", func(t *testing.T) {
		service := newTestService(t, new(MockAccountRepository), new(MockSessionRepository))

		_, err := service.Verify(ctx, "garbage")
		assert.ErrorIs(t, err, services.ErrInvalidToken)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes all sessions for the account", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		service := newTestService(t, accounts, sessions)

		accountID := uuid.New()
		tok, err := service.codec.Issue(accountID, "a@b.co")
		require.NoError(t, err)

		sessions.On("RevokeAll", ctx, accountID).Return(nil)

		assert.NoError(t, service.Logout(ctx, tok))
		sessions.AssertExpectations(t)
	})

	t.Run("unverifiable token is a no-op success", func(t *testing.T) {
		sessions := new(MockSessionRepository)
		service := newTestService(t, new(MockAccountRepository), sessions)

		assert.NoError(t, service.Logout(ctx, "garbage"))
		sessions.AssertNotCalled(t, "RevokeAll", mock.Anything, mock.Anything)
	})

	t.Run("verify after logout fails with expired session", func(t *testing.T) {
		accounts := new(MockAccountRepository)
		sessions := new(MockSessionRepository)
		service := newTestService(t, accounts, sessions)

		accountID := uuid.New()
		tok, err := service.codec.Issue(accountID, "a@b.co")
		require.NoError(t, err)

		sessions.On("RevokeAll", ctx, accountID).Return(nil)
		sessions.On("IsLive", ctx, accountID, Fingerprint(tok)).Return(false, nil)

		require.NoError(t, service.Logout(ctx, tok))

		_, err = service.Verify(ctx, tok)
		assert.ErrorIs(t, err, services.ErrSessionExpired)
	})
}
