package entities

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestClassifyRiskTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		change string
		want   RiskTier
	}{
		{"0", RiskTierNone},
		{"5", RiskTierNone},
		{"5.01", RiskTierMedium},
		{"10", RiskTierMedium},
		{"10.5", RiskTierHigh},
		{"20", RiskTierHigh},
		{"20.0001", RiskTierExtreme},
		{"-25", RiskTierExtreme},
		{"-7", RiskTierMedium},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.change, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ClassifyRiskTier(decimal.RequireFromString(tt.change)))
		})
	}
}

func TestRiskTier_CapFraction(t *testing.T) {
	t.Parallel()

	assert.True(t, RiskTierNone.CapFraction().Equal(decimal.NewFromInt(1)))
	assert.True(t, RiskTierMedium.CapFraction().Equal(decimal.RequireFromString("0.75")))
	assert.True(t, RiskTierHigh.CapFraction().Equal(decimal.RequireFromString("0.5")))
	assert.True(t, RiskTierExtreme.CapFraction().IsZero())
	assert.True(t, RiskTierExtreme.IsHalted())
	assert.False(t, RiskTierHigh.IsHalted())
}
