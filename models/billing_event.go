package models

// Billing event types as delivered by the payment processor. Signature
// verification on the raw webhook happens upstream; by the time an event
// reaches this core it is authenticated.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaid          = "invoice.paid"
	EventInvoicePaymentFailed = "invoice.payment_failed"
)

// BillingEvent is the normalized payload of a payment-processor webhook.
// Delivery is at-least-once and possibly out of order; consumers must treat
// each event as a full-state overwrite so replays are idempotent.
type BillingEvent struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	CustomerID string `json:"customer_id"`
	Email      string `json:"email,omitempty"`    // present on checkout completion
	PriceID    string `json:"price_id,omitempty"` // plan/price identifier
}
