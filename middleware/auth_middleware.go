package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/snapsolve/backend/models"
	"github.com/snapsolve/backend/services"
	"github.com/snapsolve/backend/utils"
	"go.uber.org/zap"
)

// TokenVerifier resolves a bearer token to the current account row.
// Verification covers signature, expiry and session liveness, so a revoked
// token fails here even while its signature still parses.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.Account, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(verifier TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// RequireAuth is a middleware that requires a valid, live bearer token.
// The current account row is placed in the request context, so downstream
// handlers always see post-billing tier state.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := ExtractBearerToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		account, err := m.verifier.Verify(ctx, token)
		if err != nil {
			m.logger.Warn("token verification failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, verifyFailureMessage(err))
			return
		}

		ctx = WithAccount(ctx, account)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("account_id", account.ID.String()),
			zap.String("tier", string(account.Tier)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// verifyFailureMessage keeps the taxonomy's own wording without exposing
// anything beyond it
func verifyFailureMessage(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) && domainErr.Type == services.ErrorTypeUnauthorized {
		return domainErr.Message
	}
	return "Invalid or expired token"
}

// ExtractBearerToken extracts the Bearer token from the Authorization header
func ExtractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	// Check if it starts with "Bearer "
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
