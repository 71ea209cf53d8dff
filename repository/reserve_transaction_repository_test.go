package repository

import (
	"context"
	"testing"
	"time"

	"treasury/domain"
	"treasury/domain/entities"
	"treasury/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveTransactionRepository_RecordAndGet(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	treasuryID := testutil.SeedTreasury(t, testDB.DB, "100.00", "50.00", "500")

	repo := NewReserveTransactionRepository(testDB.DB)

	refType, refID := "checkin", "42"
	record := testutil.NewDistributionRecord(treasuryID, "500", "50.00", "50.00", "500")
	record.RelatedEntityType = &refType
	record.RelatedEntityID = &refID

	require.NoError(t, repo.Record(ctx, record))
	assert.NotZero(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())

	loaded, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, entities.TransactionTypeDistribution, loaded.TransactionType)
	assert.Equal(t, "500", loaded.TokenAmount.String())
	assert.Equal(t, "50", loaded.CashValue.String())
	assert.Equal(t, "checkin", *loaded.RelatedEntityType)
	assert.Equal(t, "42", *loaded.RelatedEntityID)
	assert.Nil(t, loaded.ExternalRef)

	missing, err := repo.GetByID(ctx, record.ID+1000)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReserveTransactionRepository_ExternalRefIsUnique(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	treasuryID := testutil.SeedTreasury(t, testDB.DB, "100.00", "0", "1000")

	repo := NewReserveTransactionRepository(testDB.DB)
	ref := "0xfeed"

	newCredit := func() *entities.ReserveTransaction {
		return &entities.ReserveTransaction{
			TreasuryID:        treasuryID,
			TransactionType:   entities.TransactionTypeDeposit,
			TokenAmount:       testutil.Dec("10"),
			CashValue:         testutil.Dec("1"),
			BalanceAfter:      testutil.Dec("101"),
			TokenReserveAfter: testutil.Dec("1010"),
			ExternalRef:       &ref,
		}
	}

	exists, err := repo.ExistsByExternalRef(ctx, ref)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Record(ctx, newCredit()))

	exists, err = repo.ExistsByExternalRef(ctx, ref)
	require.NoError(t, err)
	assert.True(t, exists)

	err = repo.Record(ctx, newCredit())
	assert.ErrorIs(t, err, domain.ErrDuplicateInflow)
}

func TestReserveTransactionRepository_AppendOnly(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	treasuryID := testutil.SeedTreasury(t, testDB.DB, "100.00", "10.00", "900")

	repo := NewReserveTransactionRepository(testDB.DB)
	record := testutil.NewDistributionRecord(treasuryID, "100", "10.00", "90.00", "900")
	require.NoError(t, repo.Record(ctx, record))

	_, err := testDB.DB.Exec(ctx, `UPDATE reserve_transactions SET cash_value = 0 WHERE id = $1`, record.ID)
	assert.ErrorContains(t, err, "append-only")

	_, err = testDB.DB.Exec(ctx, `DELETE FROM reserve_transactions WHERE id = $1`, record.ID)
	assert.ErrorContains(t, err, "append-only")
}

func TestReserveTransactionRepository_Queries(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	treasuryID := testutil.SeedTreasury(t, testDB.DB, "100.00", "60.00", "400")

	repo := NewReserveTransactionRepository(testDB.DB)
	for _, cash := range []string{"10.00", "20.00", "30.00"} {
		require.NoError(t, repo.Record(ctx, testutil.NewDistributionRecord(treasuryID, "100", cash, "40.00", "400")))
	}
	require.NoError(t, repo.Record(ctx, &entities.ReserveTransaction{
		TreasuryID:        treasuryID,
		TransactionType:   entities.TransactionTypeDeposit,
		TokenAmount:       testutil.Dec("1000"),
		CashValue:         testutil.Dec("100.00"),
		BalanceAfter:      testutil.Dec("100.00"),
		TokenReserveAfter: testutil.Dec("1000"),
	}))

	t.Run("list recent newest first", func(t *testing.T) {
		txs, err := repo.ListRecent(ctx, treasuryID, 2)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, entities.TransactionTypeDeposit, txs[0].TransactionType)
		assert.Equal(t, "30", txs[1].CashValue.String())
	})

	t.Run("list since by type oldest first", func(t *testing.T) {
		txs, err := repo.ListSince(ctx, treasuryID, entities.TransactionTypeDistribution, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, txs, 3)
		assert.Equal(t, "10", txs[0].CashValue.String())
		assert.Equal(t, "30", txs[2].CashValue.String())
	})

	t.Run("sum since", func(t *testing.T) {
		total, err := repo.SumCashValueSince(ctx, treasuryID, entities.TransactionTypeDistribution, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "60", total.String())

		none, err := repo.SumCashValueSince(ctx, treasuryID, entities.TransactionTypeDistribution, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, none.IsZero())
	})
}
