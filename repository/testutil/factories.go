package testutil

import (
	"context"
	"testing"

	"treasury/database"
	"treasury/domain/entities"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// SeedTreasury inserts the active treasury with the given balances and returns its ID
func SeedTreasury(t *testing.T, db *database.DB, funding, distributed, reserve string) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO treasury_accounts (total_funding, total_distributed, token_reserve)
		VALUES ($1, $2, $3)
		RETURNING id
	`, funding, distributed, reserve).Scan(&id)
	require.NoError(t, err)
	return id
}

// Dec parses a decimal literal
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// NewDistributionRecord builds an unsaved distribution log entry
func NewDistributionRecord(treasuryID int64, tokens, cash, balanceAfter, reserveAfter string) *entities.ReserveTransaction {
	return &entities.ReserveTransaction{
		TreasuryID:        treasuryID,
		TransactionType:   entities.TransactionTypeDistribution,
		TokenAmount:       Dec(tokens),
		CashValue:         Dec(cash),
		BalanceAfter:      Dec(balanceAfter),
		TokenReserveAfter: Dec(reserveAfter),
		Description:       "test distribution",
	}
}
