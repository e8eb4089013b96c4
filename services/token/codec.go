// Package token implements the signed bearer-token codec. Tokens carry an
// identity claim only, never authorization state, so tier changes are picked
// up on every verification.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/snapsolve/backend/config"
	"github.com/snapsolve/backend/services"
	"go.uber.org/zap"
)

// Claims are the claims embedded in issued tokens
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Identity is the verified identity claim extracted from a token
type Identity struct {
	AccountID uuid.UUID
	Email     string
}

// Codec issues and verifies HS256-signed bearer tokens
type Codec struct {
	secret   []byte
	lifetime time.Duration
	logger   *zap.Logger
}

// NewCodec creates a token codec. It refuses an empty signing secret;
// config.New is responsible for failing fast (or generating a flagged
// development-only secret) before this point.
func NewCodec(cfg config.AuthConfig, logger *zap.Logger) (*Codec, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("token codec requires a signing secret")
	}
	return &Codec{
		secret:   []byte(cfg.JWTSecret),
		lifetime: cfg.TokenLifetime,
		logger:   logger,
	}, nil
}

// Lifetime returns the configured token lifetime
func (c *Codec) Lifetime() time.Duration {
	return c.lifetime
}

// Issue produces a signed token embedding the account identity with an
// absolute expiry c.lifetime from now.
func (c *Codec) Issue(accountID uuid.UUID, email string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime)),
		},
		Email: email,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify checks signature, shape and expiry, returning the identity claim.
// Any failure surfaces as ErrInvalidToken; the caller never learns whether
// the signature, payload or expiry was at fault.
func (c *Codec) Verify(tokenString string) (*Identity, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			c.logger.Debug("token expired")
		}
		return nil, services.ErrInvalidToken.Wrap(err)
	}
	if !parsed.Valid {
		return nil, services.ErrInvalidToken
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, services.ErrInvalidToken.Wrap(err)
	}

	return &Identity{
		AccountID: accountID,
		Email:     claims.Email,
	}, nil
}
