package services

import (
	"context"
	"fmt"
	"time"

	"treasury/domain/entities"
	"treasury/domain/interfaces"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	liquidityHorizonDays = 30
	highLiabilityRatio   = "0.9"
	priceSourceNone      = "unavailable"
)

var (
	hundred = decimal.NewFromInt(100)

	weightFunding       = decimal.RequireFromString("0.4")
	weightVolatility    = decimal.RequireFromString("0.3")
	weightLiquidity     = decimal.RequireFromString("0.2")
	weightConcentration = decimal.RequireFromString("0.1")
)

// ReportingConfig holds thresholds for the derived treasury views
type ReportingConfig struct {
	MinimumBalance    decimal.Decimal
	LookbackDays      int
	TargetRunwayDays  int
	WarningRunwayDays int
}

// ReportingService computes read-only views over the treasury and its log.
// It never locks and tolerates slightly stale reads.
type ReportingService struct {
	treasuryRepo    interfaces.TreasuryRepository
	reserveTxRepo   interfaces.ReserveTransactionRepository
	priceSampleRepo interfaces.PriceSampleRepository
	oracle          interfaces.PriceOracle
	guard           interfaces.VolatilityGuard
	config          ReportingConfig
	now             func() time.Time
}

// NewReportingService creates a new reporting service
func NewReportingService(
	treasuryRepo interfaces.TreasuryRepository,
	reserveTxRepo interfaces.ReserveTransactionRepository,
	priceSampleRepo interfaces.PriceSampleRepository,
	oracle interfaces.PriceOracle,
	guard interfaces.VolatilityGuard,
	config ReportingConfig,
) *ReportingService {
	if config.LookbackDays <= 0 {
		config.LookbackDays = 7
	}
	if config.TargetRunwayDays <= 0 {
		config.TargetRunwayDays = 90
	}
	if config.WarningRunwayDays <= 0 {
		config.WarningRunwayDays = 30
	}
	return &ReportingService{
		treasuryRepo:    treasuryRepo,
		reserveTxRepo:   reserveTxRepo,
		priceSampleRepo: priceSampleRepo,
		oracle:          oracle,
		guard:           guard,
		config:          config,
		now:             time.Now,
	}
}

// account returns the active treasury, or an empty one before first use
func (s *ReportingService) account(ctx context.Context) (*entities.TreasuryAccount, error) {
	account, err := s.treasuryRepo.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get treasury: %w", err)
	}
	if account == nil {
		return &entities.TreasuryAccount{IsActive: true}, nil
	}
	return account, nil
}

// GetStats returns the current treasury figures. Price failures leave the valuation at zero.
func (s *ReportingService) GetStats(ctx context.Context) (*interfaces.Stats, error) {
	account, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	return s.statsFor(ctx, account), nil
}

func (s *ReportingService) statsFor(ctx context.Context, account *entities.TreasuryAccount) *interfaces.Stats {
	available := account.AvailableFunding()
	stats := &interfaces.Stats{
		TotalFunding:     account.TotalFunding,
		TotalDistributed: account.TotalDistributed,
		AvailableFunding: available,
		TokenReserve:     account.TokenReserve,
		ReserveValueUSD:  decimal.Zero,
		TokenPrice:       decimal.Zero,
		PriceSource:      priceSourceNone,
		LiabilityRatio:   account.LiabilityRatio(),
		MinimumBalance:   s.config.MinimumBalance,
		IsHealthy:        !available.LessThan(s.config.MinimumBalance),
	}

	quote, err := s.oracle.GetCurrentPrice(ctx)
	if err != nil || quote == nil {
		log.WithError(err).Warn("No price available for treasury valuation")
		return stats
	}
	stats.TokenPrice = quote.Price
	stats.PriceSource = quote.Source
	stats.PriceDegraded = quote.Degraded
	stats.ReserveValueUSD = account.ReserveValue(quote.Price)
	return stats
}

// EstimateRunway projects available funding against the recent daily distribution rate
func (s *ReportingService) EstimateRunway(ctx context.Context) (*interfaces.RunwayEstimate, error) {
	account, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	return s.runwayFor(ctx, account)
}

func (s *ReportingService) runwayFor(ctx context.Context, account *entities.TreasuryAccount) (*interfaces.RunwayEstimate, error) {
	now := s.now()
	since := now.AddDate(0, 0, -s.config.LookbackDays)

	estimate := &interfaces.RunwayEstimate{
		AvailableFunding: account.AvailableFunding(),
		DailyRate:        decimal.Zero,
		LookbackDays:     s.config.LookbackDays,
	}
	if account.ID == 0 {
		return estimate, nil
	}

	total, err := s.reserveTxRepo.SumCashValueSince(ctx, account.ID, entities.TransactionTypeDistribution, since)
	if err != nil {
		return nil, fmt.Errorf("failed to sum recent distributions: %w", err)
	}

	estimate.LookbackDays = s.observedDays(account, now)
	rate := total.Div(decimal.NewFromInt(int64(estimate.LookbackDays)))
	estimate.DailyRate = rate.Round(entities.USDPlaces)
	if !rate.IsPositive() {
		return estimate, nil
	}

	exact := estimate.AvailableFunding.Div(rate)
	days := exact.Round(1)
	estimate.RunwayDays = &days

	hours := exact.Mul(decimal.NewFromInt(24)).Round(0).IntPart()
	depletion := now.Add(time.Duration(hours) * time.Hour).UTC()
	estimate.DepletionDate = &depletion
	return estimate, nil
}

// observedDays is the lookback window shortened to the treasury's age, in whole
// days and never below one
func (s *ReportingService) observedDays(account *entities.TreasuryAccount, now time.Time) int {
	if account.CreatedAt.IsZero() {
		return s.config.LookbackDays
	}
	age := now.Sub(account.CreatedAt)
	days := int((age + 24*time.Hour - 1) / (24 * time.Hour))
	if days < 1 {
		return 1
	}
	if days > s.config.LookbackDays {
		return s.config.LookbackDays
	}
	return days
}

// HealthScore computes the weighted treasury score and its letter grade
func (s *ReportingService) HealthScore(ctx context.Context) (*interfaces.HealthScore, error) {
	account, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	stats := s.statsFor(ctx, account)
	runway, err := s.runwayFor(ctx, account)
	if err != nil {
		return nil, err
	}
	return s.scoreFor(ctx, account, stats, runway, s.currentTier(ctx, account))
}

func (s *ReportingService) scoreFor(ctx context.Context, account *entities.TreasuryAccount, stats *interfaces.Stats, runway *interfaces.RunwayEstimate, tier entities.RiskTier) (*interfaces.HealthScore, error) {
	funding := s.fundingAdequacy(stats, runway)
	volatility := tier.Score()
	liquidity := liquidityScore(stats.ReserveValueUSD, runway.DailyRate)

	concentration, err := s.concentrationScore(ctx, account)
	if err != nil {
		return nil, err
	}

	score := funding.Mul(weightFunding).
		Add(volatility.Mul(weightVolatility)).
		Add(liquidity.Mul(weightLiquidity)).
		Add(concentration.Mul(weightConcentration)).
		Round(1)

	return &interfaces.HealthScore{
		Score:              score,
		Grade:              GradeFor(score),
		FundingAdequacy:    funding,
		VolatilityScore:    volatility,
		LiquidityScore:     liquidity,
		ConcentrationScore: concentration,
	}, nil
}

func (s *ReportingService) fundingAdequacy(stats *interfaces.Stats, runway *interfaces.RunwayEstimate) decimal.Decimal {
	if stats.TotalFunding.IsZero() || !stats.IsHealthy {
		return decimal.Zero
	}
	if runway.RunwayDays == nil {
		return hundred
	}
	target := decimal.NewFromInt(int64(s.config.TargetRunwayDays))
	return capPercent(runway.RunwayDays.Div(target).Mul(hundred))
}

// liquidityScore compares the reserve value with a month of payouts at the current rate
func liquidityScore(reserveValue, dailyRate decimal.Decimal) decimal.Decimal {
	needed := dailyRate.Mul(decimal.NewFromInt(liquidityHorizonDays))
	if !needed.IsPositive() {
		if reserveValue.IsPositive() {
			return hundred
		}
		return decimal.Zero
	}
	return capPercent(reserveValue.Div(needed).Mul(hundred))
}

// concentrationScore penalizes a window dominated by a single payout
func (s *ReportingService) concentrationScore(ctx context.Context, account *entities.TreasuryAccount) (decimal.Decimal, error) {
	if account.ID == 0 {
		return hundred, nil
	}
	since := s.now().AddDate(0, 0, -s.config.LookbackDays)
	distributions, err := s.reserveTxRepo.ListSince(ctx, account.ID, entities.TransactionTypeDistribution, since)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list recent distributions: %w", err)
	}

	total, largest := decimal.Zero, decimal.Zero
	for _, tx := range distributions {
		total = total.Add(tx.CashValue)
		if tx.CashValue.GreaterThan(largest) {
			largest = tx.CashValue
		}
	}
	if !total.IsPositive() {
		return hundred, nil
	}
	share := largest.Div(total)
	return capPercent(decimal.NewFromInt(1).Sub(share).Mul(hundred)), nil
}

// GradeFor maps a 0-100 score to a letter grade
func GradeFor(score decimal.Decimal) string {
	switch {
	case score.GreaterThanOrEqual(decimal.NewFromInt(90)):
		return "A"
	case score.GreaterThanOrEqual(decimal.NewFromInt(80)):
		return "B"
	case score.GreaterThanOrEqual(decimal.NewFromInt(70)):
		return "C"
	case score.GreaterThanOrEqual(decimal.NewFromInt(60)):
		return "D"
	default:
		return "F"
	}
}

func capPercent(d decimal.Decimal) decimal.Decimal {
	if d.GreaterThan(hundred) {
		return hundred
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(1)
}

// PortfolioPerformance reports reserve value changes from price samples
func (s *ReportingService) PortfolioPerformance(ctx context.Context) (*interfaces.PortfolioPerformance, error) {
	account, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	return s.performanceFor(ctx, account)
}

func (s *ReportingService) performanceFor(ctx context.Context, account *entities.TreasuryAccount) (*interfaces.PortfolioPerformance, error) {
	current, err := s.currentPrice(ctx)
	if err != nil {
		return nil, err
	}

	perf := &interfaces.PortfolioPerformance{
		TokenReserve: account.TokenReserve,
		CurrentPrice: current,
		CurrentValue: account.ReserveValue(current),
	}
	if current.IsZero() {
		return perf, nil
	}

	now := s.now()
	day, err := s.priceSampleRepo.GetClosestBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to get day-old price sample: %w", err)
	}
	week, err := s.priceSampleRepo.GetClosestBefore(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, fmt.Errorf("failed to get week-old price sample: %w", err)
	}
	first, err := s.priceSampleRepo.GetEarliest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get earliest price sample: %w", err)
	}

	perf.Day = performanceDelta("day", day, current, account.TokenReserve)
	perf.Week = performanceDelta("week", week, current, account.TokenReserve)
	perf.AllTime = performanceDelta("all_time", first, current, account.TokenReserve)
	return perf, nil
}

// currentPrice prefers the oracle and falls back to the newest persisted sample
func (s *ReportingService) currentPrice(ctx context.Context) (decimal.Decimal, error) {
	quote, err := s.oracle.GetCurrentPrice(ctx)
	if err == nil && quote != nil && quote.Price.IsPositive() {
		return quote.Price, nil
	}
	latest, sampleErr := s.priceSampleRepo.GetLatest(ctx)
	if sampleErr != nil {
		return decimal.Zero, fmt.Errorf("failed to get latest price sample: %w", sampleErr)
	}
	if latest == nil {
		return decimal.Zero, nil
	}
	return latest.Price, nil
}

func performanceDelta(period string, start *entities.PriceSample, current, reserve decimal.Decimal) interfaces.PerformanceDelta {
	delta := interfaces.PerformanceDelta{Period: period, EndPrice: current}
	if start == nil || !start.Price.IsPositive() {
		return delta
	}
	priceChange := current.Sub(start.Price)
	delta.Available = true
	delta.StartPrice = start.Price
	delta.ValueChange = entities.RoundUSD(reserve.Mul(priceChange))
	delta.PercentChange = priceChange.Div(start.Price).Mul(hundred).Round(2)
	return delta
}

// Report bundles runway, health score and portfolio performance
func (s *ReportingService) Report(ctx context.Context) (*interfaces.TreasuryReport, error) {
	account, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	stats := s.statsFor(ctx, account)
	runway, err := s.runwayFor(ctx, account)
	if err != nil {
		return nil, err
	}
	score, err := s.scoreFor(ctx, account, stats, runway, s.currentTier(ctx, account))
	if err != nil {
		return nil, err
	}
	performance, err := s.performanceFor(ctx, account)
	if err != nil {
		return nil, err
	}
	return &interfaces.TreasuryReport{
		Runway:      runway,
		HealthScore: score,
		Performance: performance,
	}, nil
}

// currentTier uses the guard's last verdict and assesses once if there is none yet
func (s *ReportingService) currentTier(ctx context.Context, account *entities.TreasuryAccount) entities.RiskTier {
	if tier := s.guard.CurrentTier(); tier != "" {
		return tier
	}
	return s.guard.Assess(ctx, account.TokenReserve).Tier
}

// GetHealthCheck summarizes treasury health with operator recommendations
func (s *ReportingService) GetHealthCheck(ctx context.Context) (*interfaces.HealthCheck, error) {
	account, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	stats := s.statsFor(ctx, account)
	runway, err := s.runwayFor(ctx, account)
	if err != nil {
		return nil, err
	}
	tier := s.currentTier(ctx, account)

	check := &interfaces.HealthCheck{
		Status:          interfaces.HealthStatusHealthy,
		Recommendations: []string{},
		Stats:           stats,
		Tier:            tier,
		RunwayDays:      runway.RunwayDays,
	}

	critical := func(msg string) {
		check.Status = interfaces.HealthStatusCritical
		check.Recommendations = append(check.Recommendations, msg)
	}
	warning := func(msg string) {
		if check.Status != interfaces.HealthStatusCritical {
			check.Status = interfaces.HealthStatusWarning
		}
		check.Recommendations = append(check.Recommendations, msg)
	}

	if stats.TotalFunding.IsZero() {
		critical("Treasury has no funding; make an initial deposit before enabling distributions")
	} else if !stats.IsHealthy {
		critical(fmt.Sprintf("Available funding %s USD is below the minimum balance of %s USD; deposit funds or pause distributions",
			stats.AvailableFunding.StringFixed(entities.USDPlaces), s.config.MinimumBalance.StringFixed(entities.USDPlaces)))
	}
	if tier.IsHalted() {
		critical("Distributions are halted by the volatility guard; check the price oracle and market conditions")
	}
	if stats.TokenReserve.IsZero() && !stats.TotalFunding.IsZero() {
		critical("Token reserve is empty; top up the reserve to resume distributions")
	}

	if runway.RunwayDays != nil && runway.RunwayDays.LessThan(decimal.NewFromInt(int64(s.config.WarningRunwayDays))) {
		warning(fmt.Sprintf("Estimated runway is %s days at %s USD/day; plan a deposit within %d days",
			runway.RunwayDays.StringFixed(1), runway.DailyRate.StringFixed(entities.USDPlaces), s.config.WarningRunwayDays))
	}
	if tier == entities.RiskTierMedium || tier == entities.RiskTierHigh {
		warning(fmt.Sprintf("Volatility tier is %s; distributions are capped at %s%% of the reserve",
			tier, tier.CapFraction().Mul(hundred).StringFixed(0)))
	}
	if stats.LiabilityRatio.GreaterThan(decimal.RequireFromString(highLiabilityRatio)) {
		warning(fmt.Sprintf("Liability ratio is %s; more than 90%% of all funding has been distributed", stats.LiabilityRatio.StringFixed(2)))
	}
	if stats.PriceDegraded {
		warning(fmt.Sprintf("Token price is served from %s instead of the live oracle", stats.PriceSource))
	}

	return check, nil
}
