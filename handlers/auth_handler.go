package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/snapsolve/backend/middleware"
	"github.com/snapsolve/backend/models"
	"github.com/snapsolve/backend/services/auth"
	"github.com/snapsolve/backend/utils"
	"go.uber.org/zap"
)

// RegisterRequest is the register endpoint body
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

// LoginRequest is the login endpoint body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AccountResponse is the sanitized account representation returned to
// clients. The password hash never appears here.
type AccountResponse struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	Tier               string `json:"tier"`
	SubscriptionStatus string `json:"subscription_status"`
	UsageDaily         int    `json:"usage_daily"`
	UsageTotal         int    `json:"usage_total"`
	CreatedAt          string `json:"created_at"`
}

// AuthResponse is the envelope for auth endpoints: {success, user?, token?, message?}
type AuthResponse struct {
	Success bool             `json:"success"`
	User    *AccountResponse `json:"user,omitempty"`
	Token   string           `json:"token,omitempty"`
	Message string           `json:"message,omitempty"`
}

// AuthService defines the authentication operations the handlers compose
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*auth.Result, error)
	Login(ctx context.Context, email, password string) (*auth.Result, error)
	Verify(ctx context.Context, token string) (*models.Account, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	service AuthService
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

// HandleRegister handles POST /api/v1/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Register(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		h.logger.Debug("registration failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		User:    toAccountResponse(result.Account),
		Token:   result.Token,
	})
}

// HandleLogin handles POST /api/v1/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.Debug("login failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		User:    toAccountResponse(result.Account),
		Token:   result.Token,
	})
}

// HandleVerify handles GET /api/v1/auth/verify. RequireAuth has already
// resolved the bearer token to the current account row.
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r.Context())
	if account == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		User:    toAccountResponse(account),
	})
}

// HandleLogout handles POST /api/v1/auth/logout. Always succeeds from the
// caller's perspective; a token that no longer verifies is already logged out.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractBearerToken(r)
	if token != "" {
		_ = h.service.Logout(r.Context(), token)
	}

	_ = utils.WriteJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "Logged out",
	})
}

func toAccountResponse(account *models.Account) *AccountResponse {
	return &AccountResponse{
		ID:                 account.ID.String(),
		Email:              account.Email,
		Name:               account.Name,
		Tier:               string(account.Tier),
		SubscriptionStatus: string(account.SubscriptionStatus),
		UsageDaily:         account.UsageDaily,
		UsageTotal:         account.UsageTotal,
		CreatedAt:          account.CreatedAt.UTC().Format(time.RFC3339),
	}
}
