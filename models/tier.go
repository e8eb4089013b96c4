package models

// Tier represents a subscription level controlling model access and quota
type Tier string

const (
	TierFree       Tier = "free"
	TierPremium    Tier = "premium"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// tierRank orders tiers from lowest to highest. Used to detect downgrades
// when reconciling billing events.
var tierRank = map[Tier]int{
	TierFree:       0,
	TierPremium:    1,
	TierPro:        2,
	TierEnterprise: 3,
}

// Valid reports whether t is one of the enumerated tiers
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// Below reports whether t ranks strictly below other
func (t Tier) Below(other Tier) bool {
	return tierRank[t] < tierRank[other]
}

// ParseTier returns the Tier for name, or ok=false when unknown
func ParseTier(name string) (Tier, bool) {
	t := Tier(name)
	return t, t.Valid()
}
