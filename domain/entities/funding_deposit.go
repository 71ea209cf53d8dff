package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositStatus tracks the state of a funding deposit
type DepositStatus string

const (
	DepositStatusCompleted DepositStatus = "completed"
)

// FundingDeposit records an operator or externally sourced funding event
type FundingDeposit struct {
	ID                   int64           `db:"id"`
	TreasuryID           int64           `db:"treasury_id"`
	DepositedBy          string          `db:"deposited_by"`
	AmountUSD            decimal.Decimal `db:"amount_usd"`
	TokensPurchased      decimal.Decimal `db:"tokens_purchased"`
	TokenPrice           decimal.Decimal `db:"token_price"`
	PriceSource          string          `db:"price_source"`
	Method               string          `db:"method"`
	Notes                *string         `db:"notes"`
	ExternalTxRef        *string         `db:"external_tx_ref"`
	Status               DepositStatus   `db:"status"`
	ReserveTransactionID int64           `db:"reserve_transaction_id"`
	CreatedAt            time.Time       `db:"created_at"`
}
