package interfaces

import (
	"context"
	"time"

	"treasury/domain/entities"

	"github.com/shopspring/decimal"
)

// PriceOracle provides the current token price in USD
type PriceOracle interface {
	// GetCurrentPrice returns the best available quote. Quotes served from a cache
	// or the configured fallback are marked Degraded.
	GetCurrentPrice(ctx context.Context) (*entities.PriceQuote, error)
}

// PriceCache stores the last good live price for use when the live feed fails
type PriceCache interface {
	Get(ctx context.Context) (*entities.PriceQuote, error)
	Set(ctx context.Context, quote *entities.PriceQuote) error
}

// VolatilityReport is the measured price swing over the rolling window
type VolatilityReport struct {
	ChangePercent decimal.Decimal
	Samples       int
	Window        time.Duration
}

// Assessment is the guard's verdict for the next distribution
type Assessment struct {
	Tier          entities.RiskTier
	ChangePercent decimal.Decimal
	MaxSafeTokens decimal.Decimal
	Quote         *entities.PriceQuote // nil when the oracle produced no price
	Reason        string
	Err           error // Oracle failure that forced a halt
}

// Halted returns true when distributions must not proceed
func (a *Assessment) Halted() bool {
	return a.Tier.IsHalted()
}

// VolatilityGuard gates distributions on recent price movement
type VolatilityGuard interface {
	// Assess fetches a price and classifies the risk for a reserve of tokenReserve.
	// The fetched price is weighed against the window but never stored in it.
	Assess(ctx context.Context, tokenReserve decimal.Decimal) *Assessment

	// CheckVolatility returns the swing across the current window without fetching a price
	CheckVolatility(ctx context.Context) VolatilityReport

	// Observe records a price sampled outside of a distribution and returns the resulting tier
	Observe(quote *entities.PriceQuote) entities.RiskTier

	// CurrentTier returns the tier of the most recent assessment
	CurrentTier() entities.RiskTier
}

// DistributionRequest asks the ledger to pay out tokens
type DistributionRequest struct {
	TokenAmount       decimal.Decimal
	Description       string
	RelatedEntityType *string
	RelatedEntityID   *string
}

// DistributionResult is the outcome of a committed distribution
type DistributionResult struct {
	TokensDistributed decimal.Decimal
	CashValue         decimal.Decimal
	RemainingBalance  decimal.Decimal
	TokenReserve      decimal.Decimal
	TransactionID     int64
	Tier              entities.RiskTier
	Price             decimal.Decimal
	PriceSource       string
}

// DepositRequest records new operator funding
type DepositRequest struct {
	DepositedBy   string
	AmountUSD     decimal.Decimal
	Method        string
	Notes         *string
	ExternalTxRef *string
}

// ReserveCredit adds externally detected tokens to the reserve
type ReserveCredit struct {
	TokenAmount decimal.Decimal
	CashValue   decimal.Decimal
	Description string
	ExternalRef *string
}

// DistributionCheck is the fail-fast answer to CanDistribute
type DistributionCheck struct {
	Allowed       bool
	Reason        string
	Code          string
	Tier          entities.RiskTier
	MaxSafeTokens decimal.Decimal
	CashValue     decimal.Decimal
}

// Stats is a point-in-time view of the treasury
type Stats struct {
	TotalFunding     decimal.Decimal
	TotalDistributed decimal.Decimal
	AvailableFunding decimal.Decimal
	TokenReserve     decimal.Decimal
	ReserveValueUSD  decimal.Decimal
	TokenPrice       decimal.Decimal
	PriceSource      string
	PriceDegraded    bool
	LiabilityRatio   decimal.Decimal
	MinimumBalance   decimal.Decimal
	IsHealthy        bool
}

// LedgerService applies balance changes to a treasury row locked in the current transaction
type LedgerService interface {
	Distribute(ctx context.Context, req DistributionRequest, assessment *Assessment) (*DistributionResult, error)
	Deposit(ctx context.Context, req DepositRequest, quote *entities.PriceQuote) (*entities.FundingDeposit, error)
	AddToReserve(ctx context.Context, credit ReserveCredit) (*entities.ReserveTransaction, error)
}

// HealthStatus summarizes treasury health for operators
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusWarning  HealthStatus = "warning"
	HealthStatusCritical HealthStatus = "critical"
)

// HealthCheck is the operator-facing health verdict
type HealthCheck struct {
	Status          HealthStatus
	Recommendations []string
	Stats           *Stats
	Tier            entities.RiskTier
	RunwayDays      *decimal.Decimal
}

// RunwayEstimate projects how long available funding lasts at the recent payout rate
type RunwayEstimate struct {
	AvailableFunding decimal.Decimal
	DailyRate        decimal.Decimal
	LookbackDays     int
	RunwayDays       *decimal.Decimal // nil when nothing was distributed in the lookback window
	DepletionDate    *time.Time
}

// HealthScore is the weighted treasury score and its components, each on a 0-100 scale
type HealthScore struct {
	Score              decimal.Decimal
	Grade              string
	FundingAdequacy    decimal.Decimal
	VolatilityScore    decimal.Decimal
	LiquidityScore     decimal.Decimal
	ConcentrationScore decimal.Decimal
}

// PerformanceDelta is the change in reserve value over a period
type PerformanceDelta struct {
	Period        string
	StartPrice    decimal.Decimal
	EndPrice      decimal.Decimal
	ValueChange   decimal.Decimal
	PercentChange decimal.Decimal
	Available     bool
}

// PortfolioPerformance is reserve value change over standard periods
type PortfolioPerformance struct {
	TokenReserve decimal.Decimal
	CurrentPrice decimal.Decimal
	CurrentValue decimal.Decimal
	Day          PerformanceDelta
	Week         PerformanceDelta
	AllTime      PerformanceDelta
}

// TreasuryReport bundles the reporting views
type TreasuryReport struct {
	Runway      *RunwayEstimate
	HealthScore *HealthScore
	Performance *PortfolioPerformance
}
