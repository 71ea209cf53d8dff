package entities

import "github.com/shopspring/decimal"

// RiskTier classifies recent price volatility
type RiskTier string

const (
	RiskTierNone    RiskTier = "none"
	RiskTierMedium  RiskTier = "medium"
	RiskTierHigh    RiskTier = "high"
	RiskTierExtreme RiskTier = "extreme"
)

var (
	mediumThreshold  = decimal.NewFromInt(5)
	highThreshold    = decimal.NewFromInt(10)
	extremeThreshold = decimal.NewFromInt(20)
)

// ClassifyRiskTier maps a percentage price swing to its tier.
// Boundaries are inclusive on the lower tier: exactly 5% is still none.
func ClassifyRiskTier(changePercent decimal.Decimal) RiskTier {
	change := changePercent.Abs()
	switch {
	case change.GreaterThan(extremeThreshold):
		return RiskTierExtreme
	case change.GreaterThan(highThreshold):
		return RiskTierHigh
	case change.GreaterThan(mediumThreshold):
		return RiskTierMedium
	default:
		return RiskTierNone
	}
}

// CapFraction is the share of the token reserve a single distribution may take
func (t RiskTier) CapFraction() decimal.Decimal {
	switch t {
	case RiskTierNone:
		return decimal.NewFromInt(1)
	case RiskTierMedium:
		return decimal.RequireFromString("0.75")
	case RiskTierHigh:
		return decimal.RequireFromString("0.5")
	default:
		return decimal.Zero
	}
}

// IsHalted returns true when no distribution may proceed
func (t RiskTier) IsHalted() bool {
	return t == RiskTierExtreme
}

// Score maps the tier to the volatility component of the health score
func (t RiskTier) Score() decimal.Decimal {
	switch t {
	case RiskTierNone:
		return decimal.NewFromInt(100)
	case RiskTierMedium:
		return decimal.NewFromInt(60)
	case RiskTierHigh:
		return decimal.NewFromInt(30)
	default:
		return decimal.Zero
	}
}
