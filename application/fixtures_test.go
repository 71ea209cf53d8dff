package application

import (
	"context"
	"sync"
	"time"

	"treasury/domain/entities"
	"treasury/domain/interfaces"
	"treasury/domain/services"
	"treasury/domain/testhelpers"

	"github.com/shopspring/decimal"
)

const testTreasuryID = int64(1)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createTestAccount(funding, distributed, reserve string) *entities.TreasuryAccount {
	return &entities.TreasuryAccount{
		ID:               testTreasuryID,
		TotalFunding:     d(funding),
		TotalDistributed: d(distributed),
		TokenReserve:     d(reserve),
		IsActive:         true,
	}
}

func assessment(tier entities.RiskTier, price, maxSafe string) *interfaces.Assessment {
	return &interfaces.Assessment{
		Tier:          tier,
		ChangePercent: decimal.Zero,
		MaxSafeTokens: d(maxSafe),
		Quote:         &entities.PriceQuote{Price: d(price), Source: "test"},
	}
}

// fakeUnitOfWork hands out mocks and counts transaction calls
type fakeUnitOfWork struct {
	mu sync.Mutex

	TreasuryRepo    *testhelpers.MockTreasuryRepository
	ReserveTxRepo   *testhelpers.MockReserveTransactionRepository
	DepositRepo     *testhelpers.MockFundingDepositRepository
	PriceSampleRepo *testhelpers.MockPriceSampleRepository
	Publisher       *testhelpers.MockEventPublisher

	BeginErr  error
	CommitErr error

	began      int
	committed  int
	rolledBack int
}

func newFakeUnitOfWork() *fakeUnitOfWork {
	return &fakeUnitOfWork{
		TreasuryRepo:    new(testhelpers.MockTreasuryRepository),
		ReserveTxRepo:   new(testhelpers.MockReserveTransactionRepository),
		DepositRepo:     new(testhelpers.MockFundingDepositRepository),
		PriceSampleRepo: new(testhelpers.MockPriceSampleRepository),
		Publisher:       new(testhelpers.MockEventPublisher),
	}
}

func (f *fakeUnitOfWork) Begin(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BeginErr != nil {
		return f.BeginErr
	}
	f.began++
	return nil
}

func (f *fakeUnitOfWork) Commit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CommitErr != nil {
		return f.CommitErr
	}
	f.committed++
	return nil
}

func (f *fakeUnitOfWork) Rollback() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rolledBack++
	return nil
}

func (f *fakeUnitOfWork) TreasuryRepository() interfaces.TreasuryRepository {
	return f.TreasuryRepo
}

func (f *fakeUnitOfWork) ReserveTransactionRepository() interfaces.ReserveTransactionRepository {
	return f.ReserveTxRepo
}

func (f *fakeUnitOfWork) FundingDepositRepository() interfaces.FundingDepositRepository {
	return f.DepositRepo
}

func (f *fakeUnitOfWork) PriceSampleRepository() interfaces.PriceSampleRepository {
	return f.PriceSampleRepo
}

func (f *fakeUnitOfWork) EventBus() interfaces.EventPublisher {
	return f.Publisher
}

func (f *fakeUnitOfWork) counts() (began, committed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.began, f.committed
}

// fakeUnitOfWorkFactory returns the same fake for every Create call
type fakeUnitOfWorkFactory struct {
	uow *fakeUnitOfWork
}

func (f *fakeUnitOfWorkFactory) Create() UnitOfWork {
	return f.uow
}

type recordedOperation struct {
	operation string
	outcome   string
}

// recordingMetrics captures ledger metrics
type recordingMetrics struct {
	mu         sync.Mutex
	operations []recordedOperation
	tokens     float64
}

func (m *recordingMetrics) RecordLedgerOperation(operation, outcome string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations = append(m.operations, recordedOperation{operation: operation, outcome: outcome})
}

func (m *recordingMetrics) RecordTokensDistributed(tokens float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens += tokens
}

type ledgerFixture struct {
	uow     *fakeUnitOfWork
	guard   *testhelpers.MockVolatilityGuard
	oracle  *testhelpers.MockPriceOracle
	metrics *recordingMetrics
	ledger  *TreasuryLedger
}

func newLedgerFixture(minimumBalance string) *ledgerFixture {
	f := &ledgerFixture{
		uow:     newFakeUnitOfWork(),
		guard:   new(testhelpers.MockVolatilityGuard),
		oracle:  new(testhelpers.MockPriceOracle),
		metrics: &recordingMetrics{},
	}
	f.ledger = NewTreasuryLedger(
		&fakeUnitOfWorkFactory{uow: f.uow},
		f.guard,
		f.oracle,
		services.ReportingConfig{MinimumBalance: d(minimumBalance)},
		f.metrics,
	)
	return f
}
