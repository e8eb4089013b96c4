package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/snapsolve/backend/services"
	"github.com/snapsolve/backend/services/tier"
	"github.com/snapsolve/backend/utils"
	"go.uber.org/zap"
)

// modelHeader names the AI model a gated request wants to use. Falls back
// to the "model" query parameter when absent.
const modelHeader = "X-Model"

// UsageRecorder charges one billed operation to an account
type UsageRecorder interface {
	IncrementUsage(ctx context.Context, accountID uuid.UUID, amount int) error
}

// TierGate enforces the tier/capability contract in front of quota-gated
// endpoints (OCR, chat-completion proxy). Both the model check and the
// quota check must pass before the downstream handler runs; failures are
// 403s, never silent downgrades.
type TierGate struct {
	usage  UsageRecorder
	logger *zap.Logger
}

// NewTierGate creates a new TierGate
func NewTierGate(usage UsageRecorder, logger *zap.Logger) *TierGate {
	return &TierGate{
		usage:  usage,
		logger: logger,
	}
}

// RequestedModel returns the AI model a request targets, from the X-Model
// header or the "model" query parameter. Empty when neither is set.
func RequestedModel(r *http.Request) string {
	if model := r.Header.Get(modelHeader); model != "" {
		return model
	}
	return r.URL.Query().Get("model")
}

// RequireModel gates the request on the caller's tier allowing the target
// model and on remaining daily quota, then charges one operation.
// Must run after RequireAuth.
func (g *TierGate) RequireModel(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		account := GetAccountFromContext(ctx)
		if account == nil {
			g.logger.Error("account not found in context",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		model := RequestedModel(r)
		if model == "" {
			_ = utils.WriteBadRequest(w, "Missing model selection", nil)
			return
		}

		if err := tier.CheckModel(account.Tier, model); err != nil {
			g.logger.Warn("model not permitted",
				zap.String("request_id", requestID),
				zap.String("account_id", account.ID.String()),
				zap.String("model", model),
				zap.String("tier", string(account.Tier)))
			_ = utils.WriteForbidden(w, err.Error(), services.GetErrorDetails(err))
			return
		}

		if err := tier.CheckQuota(account); err != nil {
			g.logger.Warn("quota exceeded",
				zap.String("request_id", requestID),
				zap.String("account_id", account.ID.String()),
				zap.String("tier", string(account.Tier)))
			_ = utils.WriteForbidden(w, err.Error(), services.GetErrorDetails(err))
			return
		}

		// Charge the operation before handing off; the downstream call is
		// what the quota meters.
		if err := g.usage.IncrementUsage(ctx, account.ID, 1); err != nil {
			g.logger.Error("failed to record usage",
				zap.String("request_id", requestID),
				zap.String("account_id", account.ID.String()),
				zap.Error(err))
			_ = utils.WriteInternalServerError(w, "")
			return
		}

		next.ServeHTTP(w, r)
	})
}
