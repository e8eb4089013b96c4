package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/snapsolve/backend/middleware"
	"github.com/snapsolve/backend/models"
	"github.com/snapsolve/backend/utils"
	"go.uber.org/zap"
)

// BillingReconciler applies verified payment-processor events
type BillingReconciler interface {
	ApplyBillingEvent(ctx context.Context, event *models.BillingEvent) error
}

// BillingHandler handles billing webhook HTTP requests. Signature
// verification against the payment processor happens upstream; payloads
// arriving here are already authenticated.
type BillingHandler struct {
	reconciler BillingReconciler
	logger     *zap.Logger
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(reconciler BillingReconciler, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// HandleWebhook handles POST /api/v1/billing/webhook. Returns 200 for both
// applied and skipped events so the processor stops redelivering; only
// infrastructure failures produce an error status (and a retry).
func (h *BillingHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var event models.BillingEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid event payload", nil)
		return
	}
	if event.Type == "" {
		_ = utils.WriteBadRequest(w, "Missing event type", nil)
		return
	}

	h.logger.Info("billing event received",
		zap.String("request_id", requestID),
		zap.String("event_id", event.ID),
		zap.String("type", event.Type))

	if err := h.reconciler.ApplyBillingEvent(ctx, &event); err != nil {
		h.logger.Error("failed to apply billing event",
			zap.String("request_id", requestID),
			zap.String("event_id", event.ID),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to process event")
		return
	}

	_ = utils.WriteOK(w, map[string]string{"received": event.ID})
}
