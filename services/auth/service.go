// Package auth implements the authentication service: registration, login,
// token verification and logout, composed from the credential store, the
// session registry and the token codec.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/snapsolve/backend/config"
	"github.com/snapsolve/backend/models"
	"github.com/snapsolve/backend/repositories"
	"github.com/snapsolve/backend/services"
	"github.com/snapsolve/backend/services/token"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// emailPattern is the address shape accepted at registration
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Service orchestrates account and session lifecycle
type Service struct {
	accounts repositories.AccountRepository
	sessions repositories.SessionRepository
	codec    *token.Codec
	cfg      config.AuthConfig
	logger   *zap.Logger
}

// NewService creates a new authentication service
func NewService(
	accounts repositories.AccountRepository,
	sessions repositories.SessionRepository,
	codec *token.Codec,
	cfg config.AuthConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		accounts: accounts,
		sessions: sessions,
		codec:    codec,
		cfg:      cfg,
		logger:   logger,
	}
}

// Result is the outcome of a successful register or login
type Result struct {
	Account *models.Account
	Token   string
}

// Register validates input, persists a new account with the configured
// default tier, and opens a session for it.
func (s *Service) Register(ctx context.Context, email, password, name string) (*Result, error) {
	email = models.NormalizeEmail(email)
	if email == "" || !emailPattern.MatchString(email) {
		return nil, services.ErrInvalidEmail
	}
	if len(password) < s.cfg.MinPasswordLength {
		return nil, services.ErrWeakPassword.With(map[string]interface{}{
			"min_length": s.cfg.MinPasswordLength,
		})
	}
	if strings.TrimSpace(name) == "" {
		return nil, services.ErrInvalidInput.With(map[string]interface{}{
			"field": "name",
		})
	}

	tier, ok := models.ParseTier(s.cfg.DefaultTier)
	if !ok {
		tier = models.TierFree
		s.logger.Warn("unknown default tier in config, falling back to free",
			zap.String("configured", s.cfg.DefaultTier))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, services.ErrInternal.Wrap(err)
	}

	account := models.NewAccount(email, string(hash), strings.TrimSpace(name), tier)
	if err := s.accounts.Create(ctx, account); err != nil {
		// ErrDuplicateEmail propagates as-is; the racing loser sees the
		// same failure as a plain re-registration.
		return nil, err
	}

	s.logger.Info("account registered",
		zap.String("account_id", account.ID.String()),
		zap.String("tier", string(account.Tier)))

	return s.openSession(ctx, account)
}

// Login authenticates by email and password. Unknown email and wrong
// password produce the identical ErrInvalidCredentials so callers cannot
// enumerate accounts.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			return nil, services.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, services.ErrInvalidCredentials
	}

	s.logger.Info("login successful", zap.String("account_id", account.ID.String()))

	return s.openSession(ctx, account)
}

// Verify checks a bearer token end to end: signature and expiry, then
// session liveness, then account existence. It returns the current account
// row, so tier changes since issuance are always picked up.
func (s *Service) Verify(ctx context.Context, tokenString string) (*models.Account, error) {
	identity, err := s.codec.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	live, err := s.sessions.IsLive(ctx, identity.AccountID, Fingerprint(tokenString))
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, services.ErrSessionExpired
	}

	account, err := s.accounts.GetByID(ctx, identity.AccountID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			return nil, services.ErrUserNotFound
		}
		return nil, err
	}

	return account, nil
}

// Logout revokes every session for the token's account. A token that fails
// verification is treated as already logged out; logout never fails the
// caller-visible operation.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	identity, err := s.codec.Verify(tokenString)
	if err != nil {
		s.logger.Debug("logout with unverifiable token", zap.Error(err))
		return nil
	}

	if err := s.sessions.RevokeAll(ctx, identity.AccountID); err != nil {
		s.logger.Error("failed to revoke sessions on logout",
			zap.String("account_id", identity.AccountID.String()),
			zap.Error(err))
		return nil
	}

	s.logger.Info("logged out everywhere", zap.String("account_id", identity.AccountID.String()))
	return nil
}

// openSession mints a token and records its fingerprint in the registry
func (s *Service) openSession(ctx context.Context, account *models.Account) (*Result, error) {
	tok, err := s.codec.Issue(account.ID, account.Email)
	if err != nil {
		return nil, services.ErrInternal.Wrap(err)
	}

	session := models.NewSession(account.ID, Fingerprint(tok), time.Now().Add(s.cfg.SessionLifetime))
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return &Result{Account: account, Token: tok}, nil
}

// Fingerprint returns the one-way hash of a raw token stored in the session
// registry: base64url-encoded SHA-256, so bearer secrets never sit at rest.
func Fingerprint(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
