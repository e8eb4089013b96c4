package tier

import (
	"context"
	"errors"

	"github.com/snapsolve/backend/config"
	"github.com/snapsolve/backend/models"
	"github.com/snapsolve/backend/repositories"
	"github.com/snapsolve/backend/services"
	"go.uber.org/zap"
)

// Reconciler applies payment-processor events to account tier state.
// Every event is treated as a full-state overwrite, which makes replayed
// (at-least-once) deliveries idempotent and resolves out-of-order delivery
// as last-applied-wins.
type Reconciler struct {
	accounts   repositories.AccountRepository
	sessions   repositories.SessionRepository
	txMgr      repositories.TransactionManager
	priceTiers map[string]string
	logger     *zap.Logger
}

// NewReconciler creates a billing event reconciler. txMgr may be nil, in
// which case downgrades apply non-transactionally.
func NewReconciler(
	accounts repositories.AccountRepository,
	sessions repositories.SessionRepository,
	txMgr repositories.TransactionManager,
	cfg config.BillingConfig,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		accounts:   accounts,
		sessions:   sessions,
		txMgr:      txMgr,
		priceTiers: cfg.PriceTiers,
		logger:     logger,
	}
}

// ApplyBillingEvent reconciles one event. Unknown customers and unmapped
// prices are logged and skipped rather than failed: the processor redelivers
// on error, and an event this core cannot act on never will become actionable.
func (r *Reconciler) ApplyBillingEvent(ctx context.Context, event *models.BillingEvent) error {
	switch event.Type {
	case models.EventCheckoutCompleted:
		return r.applyCheckout(ctx, event)

	case models.EventSubscriptionCreated, models.EventSubscriptionUpdated, models.EventInvoicePaid:
		return r.applySubscription(ctx, event)

	case models.EventSubscriptionDeleted, models.EventInvoicePaymentFailed:
		return r.applyCancellation(ctx, event)

	default:
		r.logger.Debug("ignoring unhandled billing event type",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type))
		return nil
	}
}

// applyCheckout binds the processor's customer record to the account (by
// email, the only key present at checkout) and applies the purchased tier.
func (r *Reconciler) applyCheckout(ctx context.Context, event *models.BillingEvent) error {
	if event.Email == "" || event.CustomerID == "" {
		r.logger.Warn("checkout event missing email or customer id",
			zap.String("event_id", event.ID))
		return nil
	}

	if err := r.accounts.SetBillingCustomerID(ctx, event.Email, event.CustomerID); err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			r.logger.Warn("checkout for unknown account",
				zap.String("event_id", event.ID))
			return nil
		}
		return err
	}

	account, err := r.accounts.GetByEmail(ctx, event.Email)
	if err != nil {
		return err
	}
	return r.overwriteTier(ctx, account, event)
}

func (r *Reconciler) applySubscription(ctx context.Context, event *models.BillingEvent) error {
	account, err := r.resolveAccount(ctx, event)
	if err != nil || account == nil {
		return err
	}
	return r.overwriteTier(ctx, account, event)
}

// applyCancellation overwrites to free/cancelled. Replaying the same
// cancellation is a no-op overwrite, never a toggle.
func (r *Reconciler) applyCancellation(ctx context.Context, event *models.BillingEvent) error {
	account, err := r.resolveAccount(ctx, event)
	if err != nil || account == nil {
		return err
	}
	return r.setTier(ctx, account, models.TierFree, models.SubscriptionCancelled)
}

// overwriteTier maps the event's price to a tier and applies it with status
// active. Unmapped prices are skipped.
func (r *Reconciler) overwriteTier(ctx context.Context, account *models.Account, event *models.BillingEvent) error {
	tierName, ok := r.priceTiers[event.PriceID]
	if !ok {
		r.logger.Warn("billing event with unmapped price",
			zap.String("event_id", event.ID),
			zap.String("price_id", event.PriceID))
		return nil
	}
	newTier, ok := models.ParseTier(tierName)
	if !ok {
		r.logger.Error("price maps to unknown tier",
			zap.String("price_id", event.PriceID),
			zap.String("tier", tierName))
		return nil
	}
	return r.setTier(ctx, account, newTier, models.SubscriptionActive)
}

// setTier performs the overwrite and, on a downgrade, revokes every session
// so stale elevated tokens cannot ride out their natural expiry. Downgrades
// run the overwrite and the revocation in one transaction: an account must
// never end up downgraded but still holding live elevated sessions.
func (r *Reconciler) setTier(ctx context.Context, account *models.Account, newTier models.Tier, status models.SubscriptionStatus) error {
	update := repositories.TierUpdate{Tier: &newTier, Status: &status}

	var err error
	if newTier.Below(account.Tier) && r.txMgr != nil {
		err = services.WithTransaction(ctx, r.txMgr, func(txCtx context.Context, _ repositories.Transaction) error {
			if err := r.accounts.UpdateTier(txCtx, account.ID, update); err != nil {
				return err
			}
			return r.sessions.RevokeAll(txCtx, account.ID)
		})
	} else {
		err = r.accounts.UpdateTier(ctx, account.ID, update)
		if err == nil && newTier.Below(account.Tier) {
			if revokeErr := r.sessions.RevokeAll(ctx, account.ID); revokeErr != nil {
				r.logger.Error("failed to revoke sessions after downgrade",
					zap.String("account_id", account.ID.String()),
					zap.Error(revokeErr))
			}
		}
	}
	if err != nil {
		return err
	}

	r.logger.Info("account tier reconciled",
		zap.String("account_id", account.ID.String()),
		zap.String("from", string(account.Tier)),
		zap.String("to", string(newTier)),
		zap.String("status", string(status)))

	return nil
}

// resolveAccount finds the event's target account via its billing customer
// ID. A nil account with nil error means the event should be skipped.
func (r *Reconciler) resolveAccount(ctx context.Context, event *models.BillingEvent) (*models.Account, error) {
	if event.CustomerID == "" {
		r.logger.Warn("billing event without customer id", zap.String("event_id", event.ID))
		return nil, nil
	}
	account, err := r.accounts.GetByBillingCustomerID(ctx, event.CustomerID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			r.logger.Warn("billing event for unknown customer",
				zap.String("event_id", event.ID),
				zap.String("customer_id", event.CustomerID))
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}
