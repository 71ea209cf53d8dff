package services

import (
	"fmt"

	"treasury/domain"
	"treasury/domain/entities"
	"treasury/domain/interfaces"

	"github.com/shopspring/decimal"
)

// DistributionPlan holds the balances a distribution will persist
type DistributionPlan struct {
	TokenAmount         decimal.Decimal
	CashValue           decimal.Decimal
	NewTotalDistributed decimal.Decimal
	NewTokenReserve     decimal.Decimal
	RemainingFunding    decimal.Decimal
}

// NormalizeTokenAmount rounds a requested token amount to persisted precision and rejects non-positive values
func NormalizeTokenAmount(tokens decimal.Decimal) (decimal.Decimal, error) {
	rounded := entities.RoundTokens(tokens)
	if !rounded.IsPositive() {
		return decimal.Zero, domain.NewInvalidAmountError(fmt.Sprintf("token amount must be positive, got %s", tokens.String()))
	}
	return rounded, nil
}

// CheckAssessment applies the volatility gate. It never touches storage, so callers
// run it before taking the treasury lock.
func CheckAssessment(assessment *interfaces.Assessment, tokens decimal.Decimal) error {
	if assessment == nil {
		return domain.NewOracleUnavailableError(fmt.Errorf("no volatility assessment"))
	}
	if assessment.Halted() {
		if assessment.Err != nil || assessment.Quote == nil {
			return domain.NewOracleUnavailableError(assessment.Err)
		}
		reason := ""
		if assessment.Reason == ReasonDegradedPrice {
			reason = "price feed degraded"
		}
		return domain.NewVolatilityHaltError(assessment.ChangePercent, reason)
	}
	// Calm markets impose no cap; the reserve check under lock decides
	if assessment.Tier != entities.RiskTierNone && tokens.GreaterThan(assessment.MaxSafeTokens) {
		return domain.NewVolatilityCapExceededError(tokens, assessment.MaxSafeTokens, assessment.Tier, assessment.ChangePercent)
	}
	return nil
}

// PlanDistribution validates a distribution against account balances at price.
// Amounts are rounded to persisted precision first so the checks see exactly what will be written.
func PlanDistribution(account *entities.TreasuryAccount, tokens, price, minimumBalance decimal.Decimal) (*DistributionPlan, error) {
	tokens, err := NormalizeTokenAmount(tokens)
	if err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, domain.NewOracleUnavailableError(fmt.Errorf("non-positive price %s", price.String()))
	}

	cashValue := entities.RoundUSD(tokens.Mul(price))
	available := account.AvailableFunding()

	if account.TokenReserve.LessThan(tokens) {
		return nil, domain.NewInsufficientReserveError(tokens, account.TokenReserve)
	}
	if available.LessThan(cashValue) {
		return nil, domain.NewInsufficientFundingError(cashValue, available)
	}

	remaining := available.Sub(cashValue)
	if remaining.LessThan(minimumBalance) {
		return nil, domain.NewMinimumBalanceBreachError(remaining, minimumBalance)
	}

	return &DistributionPlan{
		TokenAmount:         tokens,
		CashValue:           cashValue,
		NewTotalDistributed: account.TotalDistributed.Add(cashValue),
		NewTokenReserve:     account.TokenReserve.Sub(tokens),
		RemainingFunding:    remaining,
	}, nil
}

// TierCap is the largest distribution a tier allows for a reserve
func TierCap(tier entities.RiskTier, reserve decimal.Decimal) decimal.Decimal {
	return entities.RoundTokens(reserve.Mul(tier.CapFraction()))
}
