package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// TreasuryAccount is the single active funding pool backing token distributions
type TreasuryAccount struct {
	ID               int64           `db:"id"`
	TotalFunding     decimal.Decimal `db:"total_funding"`     // Cumulative USD deposited, never decreases
	TotalDistributed decimal.Decimal `db:"total_distributed"` // Cumulative USD paid out, never decreases
	TokenReserve     decimal.Decimal `db:"token_reserve"`
	IsActive         bool            `db:"is_active"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

// AvailableFunding is the spendable USD headroom
func (a *TreasuryAccount) AvailableFunding() decimal.Decimal {
	return a.TotalFunding.Sub(a.TotalDistributed)
}

// LiabilityRatio is the share of all funding already paid out.
// An unfunded treasury reports zero.
func (a *TreasuryAccount) LiabilityRatio() decimal.Decimal {
	if a.TotalFunding.IsZero() {
		return decimal.Zero
	}
	return a.TotalDistributed.DivRound(a.TotalFunding, 4)
}

// ReserveValue values the token reserve at price
func (a *TreasuryAccount) ReserveValue(price decimal.Decimal) decimal.Decimal {
	return RoundUSD(a.TokenReserve.Mul(price))
}

// Validate checks the solvency invariants of the account
func (a *TreasuryAccount) Validate() error {
	if a.TokenReserve.IsNegative() {
		return ErrNegativeReserve
	}
	if a.AvailableFunding().IsNegative() {
		return ErrNegativeAvailableFunding
	}
	return nil
}
