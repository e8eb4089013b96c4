package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the billing state of an account
type SubscriptionStatus string

const (
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Account represents a registered user of the service.
// PasswordHash is the bcrypt hash of the password; the plaintext is never stored.
type Account struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	Email              string             `json:"email" db:"email"`
	PasswordHash       string             `json:"-" db:"password_hash"`
	Name               string             `json:"name" db:"name"`
	Tier               Tier               `json:"tier" db:"tier"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status" db:"subscription_status"`
	BillingCustomerID  *string            `json:"-" db:"billing_customer_id"`
	UsageDaily         int                `json:"usage_daily" db:"usage_daily"`
	UsageTotal         int                `json:"usage_total" db:"usage_total"`
	UsageDate          time.Time          `json:"-" db:"usage_date"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Account model
func (Account) TableName() string {
	return "accounts"
}

// NewAccount creates a new Account instance with a fresh ID and timestamps.
// The email is normalized to lower case so lookups stay case-insensitive.
func NewAccount(email, passwordHash, name string, tier Tier) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:                 uuid.New(),
		Email:              NormalizeEmail(email),
		PasswordHash:       passwordHash,
		Name:               name,
		Tier:               tier,
		SubscriptionStatus: SubscriptionInactive,
		UsageDate:          now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// UsageToday returns the daily usage counter for the current UTC day.
// A counter stamped with an earlier date has logically reset to zero even
// if the nightly sweep has not caught the row yet.
func (a *Account) UsageToday() int {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if a.UsageDate.UTC().Truncate(24 * time.Hour).Before(today) {
		return 0
	}
	return a.UsageDaily
}

// NormalizeEmail lowercases and trims an email address for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
