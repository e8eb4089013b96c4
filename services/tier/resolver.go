// Package tier maps subscription tiers to capability sets (allowed models,
// daily quotas) and reconciles tier state against payment-processor events.
package tier

import (
	"strings"
	"time"

	"github.com/snapsolve/backend/models"
	"github.com/snapsolve/backend/services"
)

// Capabilities is the capability set granted by a tier
type Capabilities struct {
	AllowedModels []string
	// DailyQuota is the maximum billed operations per rolling UTC day.
	// Zero means unbounded.
	DailyQuota int
}

// tierModels lists the models each tier ADDS on top of the tier below it.
// Capability sets are cumulative: free ⊂ premium ⊂ pro ⊂ enterprise.
var tierModels = map[models.Tier][]string{
	models.TierFree:       {"gpt-4o-mini"},
	models.TierPremium:    {"gpt-4o", "claude-3-haiku"},
	models.TierPro:        {"claude-3-5-sonnet", "o1-mini"},
	models.TierEnterprise: {"o1", "claude-3-opus"},
}

// tierQuotas holds the daily operation quota per tier (policy constants)
var tierQuotas = map[models.Tier]int{
	models.TierFree:       50,
	models.TierPremium:    1000,
	models.TierPro:        5000,
	models.TierEnterprise: 0, // unbounded
}

// tierOrder is the cumulative inheritance chain, lowest first
var tierOrder = []models.Tier{
	models.TierFree,
	models.TierPremium,
	models.TierPro,
	models.TierEnterprise,
}

// CapabilitiesFor returns the capability set for a tier. Unknown tiers get
// the free capability set.
func CapabilitiesFor(tier models.Tier) Capabilities {
	if !tier.Valid() {
		tier = models.TierFree
	}

	var allowed []string
	for _, t := range tierOrder {
		allowed = append(allowed, tierModels[t]...)
		if t == tier {
			break
		}
	}

	return Capabilities{
		AllowedModels: allowed,
		DailyQuota:    tierQuotas[tier],
	}
}

// CanUse reports whether the tier grants access to the model. Model names
// are matched case-insensitively on their canonical identifiers.
func CanUse(tier models.Tier, model string) bool {
	model = normalizeModel(model)
	for _, m := range CapabilitiesFor(tier).AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}

// RequiredTier returns the lowest tier granting access to the model, or
// ok=false when no tier offers it.
func RequiredTier(model string) (models.Tier, bool) {
	model = normalizeModel(model)
	for _, t := range tierOrder {
		for _, m := range tierModels[t] {
			if m == model {
				return t, true
			}
		}
	}
	return "", false
}

// CheckQuota fails with ErrQuotaExceeded when the account's daily counter
// has reached its tier quota. The error carries the next UTC-midnight reset
// instant as a hint for the caller.
func CheckQuota(account *models.Account) error {
	quota := CapabilitiesFor(account.Tier).DailyQuota
	if quota == 0 {
		return nil
	}
	if account.UsageToday() < quota {
		return nil
	}
	return services.ErrQuotaExceeded.With(map[string]interface{}{
		"tier":      string(account.Tier),
		"quota":     quota,
		"resets_at": nextUTCMidnight(time.Now()).Format(time.RFC3339),
	})
}

// CheckModel fails with ErrModelNotPermitted when the tier does not grant
// the model, attaching the lowest tier that would.
func CheckModel(tier models.Tier, model string) error {
	if CanUse(tier, model) {
		return nil
	}
	details := map[string]interface{}{
		"model": normalizeModel(model),
		"tier":  string(tier),
	}
	if required, ok := RequiredTier(model); ok {
		details["required_tier"] = string(required)
	}
	return services.ErrModelNotPermitted.With(details)
}

func normalizeModel(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}

// nextUTCMidnight returns the instant the daily quota resets
func nextUTCMidnight(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
