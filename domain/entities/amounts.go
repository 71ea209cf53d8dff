package entities

import "github.com/shopspring/decimal"

// Fractional digits kept when amounts are persisted
const (
	USDPlaces   int32 = 2
	TokenPlaces int32 = 8
)

// RoundUSD rounds a USD amount to cents, half away from zero
func RoundUSD(d decimal.Decimal) decimal.Decimal {
	return d.Round(USDPlaces)
}

// RoundTokens rounds a token amount to the smallest persisted unit
func RoundTokens(d decimal.Decimal) decimal.Decimal {
	return d.Round(TokenPlaces)
}
