package services

import (
	"context"
	"testing"
	"time"

	"treasury/domain/entities"
	"treasury/domain/interfaces"
	"treasury/domain/testhelpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const testTreasuryID = int64(1)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, d(expected).Equal(actual), append([]interface{}{"expected %s, got %s", expected, actual.String()}, msgAndArgs...)...)
}

// createTestAccount builds an account with the given funding, distributed total and reserve
func createTestAccount(funding, distributed, reserve string) *entities.TreasuryAccount {
	return &entities.TreasuryAccount{
		ID:               testTreasuryID,
		TotalFunding:     d(funding),
		TotalDistributed: d(distributed),
		TokenReserve:     d(reserve),
		IsActive:         true,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
}

func calmAssessment(price, reserve string) *interfaces.Assessment {
	return &interfaces.Assessment{
		Tier:          entities.RiskTierNone,
		ChangePercent: decimal.Zero,
		MaxSafeTokens: d(reserve),
		Quote:         &entities.PriceQuote{Price: d(price), Source: "test"},
	}
}

// ledgerMocks aggregates the mocks a ledger service needs
type ledgerMocks struct {
	TreasuryRepo   *testhelpers.MockTreasuryRepository
	ReserveTxRepo  *testhelpers.MockReserveTransactionRepository
	DepositRepo    *testhelpers.MockFundingDepositRepository
	EventPublisher *testhelpers.MockEventPublisher
}

func newLedgerMocks() *ledgerMocks {
	return &ledgerMocks{
		TreasuryRepo:   new(testhelpers.MockTreasuryRepository),
		ReserveTxRepo:  new(testhelpers.MockReserveTransactionRepository),
		DepositRepo:    new(testhelpers.MockFundingDepositRepository),
		EventPublisher: new(testhelpers.MockEventPublisher),
	}
}

func (m *ledgerMocks) service(minimumBalance string) interfaces.LedgerService {
	return NewLedgerService(m.TreasuryRepo, m.ReserveTxRepo, m.DepositRepo, m.EventPublisher, d(minimumBalance))
}

func (m *ledgerMocks) expectLocked(account *entities.TreasuryAccount) {
	m.TreasuryRepo.On("GetOrCreateActiveForUpdate", mock.Anything).Return(account, nil).Once()
}

func (m *ledgerMocks) expectRecord(id int64) {
	m.ReserveTxRepo.On("Record", mock.Anything, mock.AnythingOfType("*entities.ReserveTransaction")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*entities.ReserveTransaction).ID = id
		}).
		Return(nil).Once()
}

func (m *ledgerMocks) assertExpectations(t *testing.T) {
	m.TreasuryRepo.AssertExpectations(t)
	m.ReserveTxRepo.AssertExpectations(t)
	m.DepositRepo.AssertExpectations(t)
	m.EventPublisher.AssertExpectations(t)
}

var testCtx = context.Background()
