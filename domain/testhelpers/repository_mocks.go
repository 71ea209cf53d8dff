package testhelpers

import (
	"context"
	"time"

	"treasury/domain/entities"
	"treasury/domain/events"
	"treasury/domain/interfaces"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockTreasuryRepository is a mock implementation of TreasuryRepository
type MockTreasuryRepository struct {
	mock.Mock
}

func (m *MockTreasuryRepository) GetActive(ctx context.Context) (*entities.TreasuryAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TreasuryAccount), args.Error(1)
}

func (m *MockTreasuryRepository) GetOrCreateActiveForUpdate(ctx context.Context) (*entities.TreasuryAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TreasuryAccount), args.Error(1)
}

func (m *MockTreasuryRepository) UpdateBalances(ctx context.Context, account *entities.TreasuryAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// MockReserveTransactionRepository is a mock implementation of ReserveTransactionRepository
type MockReserveTransactionRepository struct {
	mock.Mock
}

func (m *MockReserveTransactionRepository) Record(ctx context.Context, tx *entities.ReserveTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockReserveTransactionRepository) GetByID(ctx context.Context, id int64) (*entities.ReserveTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReserveTransaction), args.Error(1)
}

func (m *MockReserveTransactionRepository) ExistsByExternalRef(ctx context.Context, externalRef string) (bool, error) {
	args := m.Called(ctx, externalRef)
	return args.Bool(0), args.Error(1)
}

func (m *MockReserveTransactionRepository) ListRecent(ctx context.Context, treasuryID int64, limit int) ([]*entities.ReserveTransaction, error) {
	args := m.Called(ctx, treasuryID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ReserveTransaction), args.Error(1)
}

func (m *MockReserveTransactionRepository) ListSince(ctx context.Context, treasuryID int64, txType entities.TransactionType, since time.Time) ([]*entities.ReserveTransaction, error) {
	args := m.Called(ctx, treasuryID, txType, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ReserveTransaction), args.Error(1)
}

func (m *MockReserveTransactionRepository) SumCashValueSince(ctx context.Context, treasuryID int64, txType entities.TransactionType, since time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, treasuryID, txType, since)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockFundingDepositRepository is a mock implementation of FundingDepositRepository
type MockFundingDepositRepository struct {
	mock.Mock
}

func (m *MockFundingDepositRepository) Create(ctx context.Context, deposit *entities.FundingDeposit) error {
	args := m.Called(ctx, deposit)
	return args.Error(0)
}

func (m *MockFundingDepositRepository) GetByID(ctx context.Context, id int64) (*entities.FundingDeposit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.FundingDeposit), args.Error(1)
}

func (m *MockFundingDepositRepository) GetByExternalTxRef(ctx context.Context, externalTxRef string) (*entities.FundingDeposit, error) {
	args := m.Called(ctx, externalTxRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.FundingDeposit), args.Error(1)
}

// MockPriceSampleRepository is a mock implementation of PriceSampleRepository
type MockPriceSampleRepository struct {
	mock.Mock
}

func (m *MockPriceSampleRepository) Record(ctx context.Context, sample *entities.PriceSample) error {
	args := m.Called(ctx, sample)
	return args.Error(0)
}

func (m *MockPriceSampleRepository) GetLatest(ctx context.Context) (*entities.PriceSample, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PriceSample), args.Error(1)
}

func (m *MockPriceSampleRepository) GetClosestBefore(ctx context.Context, t time.Time) (*entities.PriceSample, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PriceSample), args.Error(1)
}

func (m *MockPriceSampleRepository) GetEarliest(ctx context.Context) (*entities.PriceSample, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PriceSample), args.Error(1)
}

func (m *MockPriceSampleRepository) ListSince(ctx context.Context, since time.Time) ([]*entities.PriceSample, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PriceSample), args.Error(1)
}

func (m *MockPriceSampleRepository) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockPriceOracle is a mock implementation of PriceOracle
type MockPriceOracle struct {
	mock.Mock
}

func (m *MockPriceOracle) GetCurrentPrice(ctx context.Context) (*entities.PriceQuote, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PriceQuote), args.Error(1)
}

// MockPriceCache is a mock implementation of PriceCache
type MockPriceCache struct {
	mock.Mock
}

func (m *MockPriceCache) Get(ctx context.Context) (*entities.PriceQuote, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PriceQuote), args.Error(1)
}

func (m *MockPriceCache) Set(ctx context.Context, quote *entities.PriceQuote) error {
	args := m.Called(ctx, quote)
	return args.Error(0)
}

// MockVolatilityGuard is a mock implementation of VolatilityGuard
type MockVolatilityGuard struct {
	mock.Mock
}

func (m *MockVolatilityGuard) Assess(ctx context.Context, tokenReserve decimal.Decimal) *interfaces.Assessment {
	args := m.Called(ctx, tokenReserve)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*interfaces.Assessment)
}

func (m *MockVolatilityGuard) CheckVolatility(ctx context.Context) interfaces.VolatilityReport {
	args := m.Called(ctx)
	return args.Get(0).(interfaces.VolatilityReport)
}

func (m *MockVolatilityGuard) Observe(quote *entities.PriceQuote) entities.RiskTier {
	args := m.Called(quote)
	return args.Get(0).(entities.RiskTier)
}

func (m *MockVolatilityGuard) CurrentTier() entities.RiskTier {
	args := m.Called()
	return args.Get(0).(entities.RiskTier)
}

// StaticPriceOracle always returns the same quote
type StaticPriceOracle struct {
	Quote *entities.PriceQuote
	Err   error
}

func (o *StaticPriceOracle) GetCurrentPrice(ctx context.Context) (*entities.PriceQuote, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	quote := *o.Quote
	return &quote, nil
}

// NewStaticPriceOracle returns an oracle quoting price from a live source
func NewStaticPriceOracle(price string) *StaticPriceOracle {
	return &StaticPriceOracle{Quote: &entities.PriceQuote{
		Price:  decimal.RequireFromString(price),
		Source: "static",
	}}
}
