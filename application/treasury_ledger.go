package application

import (
	"context"
	"fmt"
	"time"

	"treasury/domain"
	"treasury/domain/entities"
	"treasury/domain/interfaces"
	"treasury/domain/services"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Ledger operation names used in logs and metrics
const (
	OperationDistribute    = "distribute"
	OperationDeposit       = "deposit"
	OperationAddToReserve  = "add_to_reserve"
	OperationCanDistribute = "can_distribute"
)

// Metric outcomes
const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

const (
	defaultTransactionPage = 50
	maxTransactionPage     = 500
)

// LedgerMetrics receives ledger outcomes
type LedgerMetrics interface {
	RecordLedgerOperation(operation, outcome string, duration time.Duration)
	RecordTokensDistributed(tokens float64)
}

type noopLedgerMetrics struct{}

func (noopLedgerMetrics) RecordLedgerOperation(string, string, time.Duration) {}
func (noopLedgerMetrics) RecordTokensDistributed(float64)                     {}

// TreasuryLedger orchestrates ledger operations. The volatility guard and the
// price oracle are always consulted before a transaction takes the treasury lock.
type TreasuryLedger struct {
	uowFactory UnitOfWorkFactory
	guard      interfaces.VolatilityGuard
	oracle     interfaces.PriceOracle
	reporting  services.ReportingConfig
	metrics    LedgerMetrics
}

// NewTreasuryLedger creates a new treasury ledger. A nil metrics sink disables metrics.
func NewTreasuryLedger(
	uowFactory UnitOfWorkFactory,
	guard interfaces.VolatilityGuard,
	oracle interfaces.PriceOracle,
	reporting services.ReportingConfig,
	metrics LedgerMetrics,
) *TreasuryLedger {
	if metrics == nil {
		metrics = noopLedgerMetrics{}
	}
	return &TreasuryLedger{
		uowFactory: uowFactory,
		guard:      guard,
		oracle:     oracle,
		reporting:  reporting,
		metrics:    metrics,
	}
}

// EnsureTreasury creates the active treasury row if it does not exist yet
func (l *TreasuryLedger) EnsureTreasury(ctx context.Context) (*entities.TreasuryAccount, error) {
	var account *entities.TreasuryAccount
	err := l.inTransaction(ctx, func(uow UnitOfWork) error {
		var err error
		account, err = uow.TreasuryRepository().GetOrCreateActiveForUpdate(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure treasury: %w", err)
	}
	return account, nil
}

// Distribute pays out tokens if the guard, the balances and the floor allow it
func (l *TreasuryLedger) Distribute(ctx context.Context, req interfaces.DistributionRequest) (result *interfaces.DistributionResult, err error) {
	start := time.Now()
	defer func() { l.record(OperationDistribute, start, err) }()

	tokens, err := services.NormalizeTokenAmount(req.TokenAmount)
	if err != nil {
		return nil, err
	}

	snapshot, err := l.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	// The oracle is called here, never while the row lock is held
	assessment := l.guard.Assess(ctx, snapshot.TokenReserve)
	if err := services.CheckAssessment(assessment, tokens); err != nil {
		return nil, err
	}

	err = l.inTransaction(ctx, func(uow UnitOfWork) error {
		var err error
		result, err = l.ledgerFor(uow).Distribute(ctx, req, assessment)
		return err
	})
	if err != nil {
		return nil, err
	}

	tokensFloat, _ := result.TokensDistributed.Float64()
	l.metrics.RecordTokensDistributed(tokensFloat)

	log.WithFields(log.Fields{
		"operation":     OperationDistribute,
		"tokens":        result.TokensDistributed.String(),
		"cashValue":     result.CashValue.StringFixed(entities.USDPlaces),
		"remaining":     result.RemainingBalance.StringFixed(entities.USDPlaces),
		"tier":          result.Tier,
		"transactionId": result.TransactionID,
	}).Info("Tokens distributed")
	return result, nil
}

// Deposit records operator funding priced at the current or fallback price
func (l *TreasuryLedger) Deposit(ctx context.Context, req interfaces.DepositRequest) (deposit *entities.FundingDeposit, err error) {
	start := time.Now()
	defer func() { l.record(OperationDeposit, start, err) }()

	quote, err := l.oracle.GetCurrentPrice(ctx)
	if err != nil {
		if _, ok := domain.AsLedgerError(err); ok {
			return nil, err
		}
		return nil, domain.NewOracleUnavailableError(err)
	}

	err = l.inTransaction(ctx, func(uow UnitOfWork) error {
		var err error
		deposit, err = l.ledgerFor(uow).Deposit(ctx, req, quote)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"operation":   OperationDeposit,
		"depositId":   deposit.ID,
		"amountUsd":   deposit.AmountUSD.StringFixed(entities.USDPlaces),
		"tokens":      deposit.TokensPurchased.String(),
		"price":       deposit.TokenPrice.String(),
		"priceSource": deposit.PriceSource,
		"degraded":    quote.Degraded,
	}).Info("Funding deposit recorded")
	return deposit, nil
}

// AddToReserve credits an external inflow to the reserve
func (l *TreasuryLedger) AddToReserve(ctx context.Context, credit interfaces.ReserveCredit) (record *entities.ReserveTransaction, err error) {
	start := time.Now()
	defer func() { l.record(OperationAddToReserve, start, err) }()

	err = l.inTransaction(ctx, func(uow UnitOfWork) error {
		var err error
		record, err = l.ledgerFor(uow).AddToReserve(ctx, credit)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"operation":     OperationAddToReserve,
		"tokens":        record.TokenAmount.String(),
		"cashValue":     record.CashValue.StringFixed(entities.USDPlaces),
		"transactionId": record.ID,
	}).Info("Reserve credited")
	return record, nil
}

// CanDistribute answers whether a distribution would currently pass, without locking or writing
func (l *TreasuryLedger) CanDistribute(ctx context.Context, tokenAmount decimal.Decimal) (*interfaces.DistributionCheck, error) {
	tokens, err := services.NormalizeTokenAmount(tokenAmount)
	if err != nil {
		return rejectedCheck(err, "", decimal.Zero), nil
	}

	snapshot, err := l.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	assessment := l.guard.Assess(ctx, snapshot.TokenReserve)
	if err := services.CheckAssessment(assessment, tokens); err != nil {
		return rejectedCheck(err, assessment.Tier, assessment.MaxSafeTokens), nil
	}

	plan, err := services.PlanDistribution(snapshot, tokens, assessment.Quote.Price, l.reporting.MinimumBalance)
	if err != nil {
		if _, ok := domain.AsLedgerError(err); ok {
			return rejectedCheck(err, assessment.Tier, assessment.MaxSafeTokens), nil
		}
		return nil, err
	}

	return &interfaces.DistributionCheck{
		Allowed:       true,
		Tier:          assessment.Tier,
		MaxSafeTokens: assessment.MaxSafeTokens,
		CashValue:     plan.CashValue,
	}, nil
}

func rejectedCheck(err error, tier entities.RiskTier, maxSafe decimal.Decimal) *interfaces.DistributionCheck {
	check := &interfaces.DistributionCheck{
		Allowed:       false,
		Reason:        err.Error(),
		Tier:          tier,
		MaxSafeTokens: maxSafe,
	}
	if ledgerErr, ok := domain.AsLedgerError(err); ok {
		check.Code = string(ledgerErr.Code)
	}
	return check
}

// CheckVolatility returns the guard's current window without fetching a price
func (l *TreasuryLedger) CheckVolatility(ctx context.Context) (interfaces.VolatilityReport, entities.RiskTier) {
	return l.guard.CheckVolatility(ctx), l.guard.CurrentTier()
}

// GetStats returns the current treasury figures
func (l *TreasuryLedger) GetStats(ctx context.Context) (stats *interfaces.Stats, err error) {
	err = l.readOnly(ctx, false, func(reporting *services.ReportingService) error {
		stats, err = reporting.GetStats(ctx)
		return err
	})
	return stats, err
}

// GetHealthCheck returns the operator health verdict
func (l *TreasuryLedger) GetHealthCheck(ctx context.Context) (check *interfaces.HealthCheck, err error) {
	err = l.readOnly(ctx, true, func(reporting *services.ReportingService) error {
		check, err = reporting.GetHealthCheck(ctx)
		return err
	})
	return check, err
}

// GetReport returns runway, health score and portfolio performance
func (l *TreasuryLedger) GetReport(ctx context.Context) (report *interfaces.TreasuryReport, err error) {
	err = l.readOnly(ctx, true, func(reporting *services.ReportingService) error {
		report, err = reporting.Report(ctx)
		return err
	})
	return report, err
}

// ListTransactions returns the newest entries of the reserve log
func (l *TreasuryLedger) ListTransactions(ctx context.Context, limit int) ([]*entities.ReserveTransaction, error) {
	if limit <= 0 {
		limit = defaultTransactionPage
	}
	if limit > maxTransactionPage {
		limit = maxTransactionPage
	}

	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.TreasuryRepository().GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get treasury: %w", err)
	}
	if account == nil {
		return []*entities.ReserveTransaction{}, nil
	}

	transactions, err := uow.ReserveTransactionRepository().ListRecent(ctx, account.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

// snapshot reads the active treasury without locking it
func (l *TreasuryLedger) snapshot(ctx context.Context) (*entities.TreasuryAccount, error) {
	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.TreasuryRepository().GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get treasury: %w", err)
	}
	if account == nil {
		return &entities.TreasuryAccount{IsActive: true}, nil
	}
	return account, nil
}

func (l *TreasuryLedger) ledgerFor(uow UnitOfWork) interfaces.LedgerService {
	return services.NewLedgerService(
		uow.TreasuryRepository(),
		uow.ReserveTransactionRepository(),
		uow.FundingDepositRepository(),
		uow.EventBus(),
		l.reporting.MinimumBalance,
	)
}

// inTransaction runs fn in a unit of work and commits when it succeeds
func (l *TreasuryLedger) inTransaction(ctx context.Context, fn func(uow UnitOfWork) error) error {
	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}
	return uow.Commit()
}

// readOnly runs fn against a reporting service bound to a transaction that is
// always rolled back. The price, and the tier when withTier is set, are resolved
// before the transaction opens so no network call holds a pooled connection.
func (l *TreasuryLedger) readOnly(ctx context.Context, withTier bool, fn func(reporting *services.ReportingService) error) error {
	view := &resolvedMarket{VolatilityGuard: l.guard}
	view.quote, view.quoteErr = l.oracle.GetCurrentPrice(ctx)
	if withTier {
		view.tier = l.guard.CurrentTier()
		if view.tier == "" {
			view.tier = l.guard.Assess(ctx, decimal.Zero).Tier
		}
	}

	uow := l.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return fn(services.NewReportingService(
		uow.TreasuryRepository(),
		uow.ReserveTransactionRepository(),
		uow.PriceSampleRepository(),
		view,
		view,
		l.reporting,
	))
}

func (l *TreasuryLedger) record(operation string, start time.Time, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeError
		if ledgerErr, ok := domain.AsLedgerError(err); ok {
			outcome = outcomeRejected
			log.WithFields(log.Fields{
				"operation": operation,
				"code":      ledgerErr.Code,
				"error":     err,
			}).Warn("Ledger operation rejected")
		} else {
			log.WithFields(log.Fields{
				"operation": operation,
				"error":     err,
			}).Error("Ledger operation failed")
		}
	}
	l.metrics.RecordLedgerOperation(operation, outcome, time.Since(start))
}
