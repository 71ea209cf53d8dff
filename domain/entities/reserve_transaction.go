package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReserveTransaction is an immutable entry in the treasury log.
// Amounts are unsigned; the direction follows from TransactionType.
type ReserveTransaction struct {
	ID                int64           `db:"id"`
	TreasuryID        int64           `db:"treasury_id"`
	TransactionType   TransactionType `db:"transaction_type"`
	TokenAmount       decimal.Decimal `db:"token_amount"`
	CashValue         decimal.Decimal `db:"cash_value"`
	BalanceAfter      decimal.Decimal `db:"balance_after"` // Available funding right after this entry
	TokenReserveAfter decimal.Decimal `db:"token_reserve_after"`
	Description       string          `db:"description"`
	RelatedEntityType *string         `db:"related_entity_type"`
	RelatedEntityID   *string         `db:"related_entity_id"`
	ExternalRef       *string         `db:"external_ref"`
	CreatedAt         time.Time       `db:"created_at"`
}

// SignedCashValue returns the cash value with the sign of its effect on available funding
func (rt *ReserveTransaction) SignedCashValue() decimal.Decimal {
	if rt.TransactionType.IsDebit() {
		return rt.CashValue.Neg()
	}
	return rt.CashValue
}

// SignedTokenAmount returns the token amount with the sign of its effect on the reserve
func (rt *ReserveTransaction) SignedTokenAmount() decimal.Decimal {
	if rt.TransactionType.IsDebit() {
		return rt.TokenAmount.Neg()
	}
	return rt.TokenAmount
}
