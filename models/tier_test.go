package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Tier
		wantOK bool
	}{
		{name: "free", input: "free", want: TierFree, wantOK: true},
		{name: "premium", input: "premium", want: TierPremium, wantOK: true},
		{name: "pro", input: "pro", want: TierPro, wantOK: true},
		{name: "enterprise", input: "enterprise", want: TierEnterprise, wantOK: true},
		{name: "unknown", input: "platinum", wantOK: false},
		{name: "empty", input: "", wantOK: false},
		{name: "case sensitive", input: "Free", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTier(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestTierBelow(t *testing.T) {
	assert.True(t, TierFree.Below(TierPremium))
	assert.True(t, TierPremium.Below(TierPro))
	assert.True(t, TierPro.Below(TierEnterprise))
	assert.True(t, TierFree.Below(TierEnterprise))

	assert.False(t, TierPremium.Below(TierPremium))
	assert.False(t, TierEnterprise.Below(TierFree))
	assert.False(t, TierPro.Below(TierPremium))
}

func TestTierValid(t *testing.T) {
	assert.True(t, TierFree.Valid())
	assert.True(t, TierEnterprise.Valid())
	assert.False(t, Tier("platinum").Valid())
	assert.False(t, Tier("").Valid())
}
