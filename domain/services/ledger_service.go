package services

import (
	"context"
	"fmt"
	"strings"

	"treasury/domain"
	"treasury/domain/entities"
	"treasury/domain/events"
	"treasury/domain/interfaces"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ledgerService applies balance changes to the treasury row. Every method
// locks the row through the repository and expects to run inside a unit of work.
type ledgerService struct {
	treasuryRepo   interfaces.TreasuryRepository
	reserveTxRepo  interfaces.ReserveTransactionRepository
	depositRepo    interfaces.FundingDepositRepository
	eventPublisher interfaces.EventPublisher
	minimumBalance decimal.Decimal
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	treasuryRepo interfaces.TreasuryRepository,
	reserveTxRepo interfaces.ReserveTransactionRepository,
	depositRepo interfaces.FundingDepositRepository,
	eventPublisher interfaces.EventPublisher,
	minimumBalance decimal.Decimal,
) interfaces.LedgerService {
	return &ledgerService{
		treasuryRepo:   treasuryRepo,
		reserveTxRepo:  reserveTxRepo,
		depositRepo:    depositRepo,
		eventPublisher: eventPublisher,
		minimumBalance: minimumBalance,
	}
}

// Distribute pays out tokens at the assessed price
func (s *ledgerService) Distribute(ctx context.Context, req interfaces.DistributionRequest, assessment *interfaces.Assessment) (*interfaces.DistributionResult, error) {
	tokens, err := NormalizeTokenAmount(req.TokenAmount)
	if err != nil {
		return nil, err
	}

	// Volatility gate first: a halted ledger never takes the lock
	if err := CheckAssessment(assessment, tokens); err != nil {
		return nil, err
	}

	account, err := s.treasuryRepo.GetOrCreateActiveForUpdate(ctx)
	if err != nil {
		return nil, err
	}

	// The cap was computed from a snapshot; re-apply it to the locked reserve
	lockedCap := TierCap(assessment.Tier, account.TokenReserve)
	if tokens.GreaterThan(lockedCap) && !account.TokenReserve.LessThan(tokens) {
		return nil, domain.NewVolatilityCapExceededError(tokens, lockedCap, assessment.Tier, assessment.ChangePercent)
	}

	plan, err := PlanDistribution(account, tokens, assessment.Quote.Price, s.minimumBalance)
	if err != nil {
		return nil, err
	}

	account.TotalDistributed = plan.NewTotalDistributed
	account.TokenReserve = plan.NewTokenReserve
	if err := account.Validate(); err != nil {
		return nil, fmt.Errorf("distribution would violate treasury invariants: %w", err)
	}

	if err := s.treasuryRepo.UpdateBalances(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update treasury balances: %w", err)
	}

	record := &entities.ReserveTransaction{
		TreasuryID:        account.ID,
		TransactionType:   entities.TransactionTypeDistribution,
		TokenAmount:       plan.TokenAmount,
		CashValue:         plan.CashValue,
		BalanceAfter:      plan.RemainingFunding,
		TokenReserveAfter: account.TokenReserve,
		Description:       strings.TrimSpace(req.Description),
		RelatedEntityType: req.RelatedEntityType,
		RelatedEntityID:   req.RelatedEntityID,
	}
	if err := s.reserveTxRepo.Record(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record distribution: %w", err)
	}

	if err := s.eventPublisher.Publish(events.DistributionCompletedEvent{
		TransactionID:     record.ID,
		TokenAmount:       plan.TokenAmount,
		CashValue:         plan.CashValue,
		RemainingBalance:  plan.RemainingFunding,
		TokenReserveAfter: account.TokenReserve,
		RiskTier:          string(assessment.Tier),
		RelatedEntityType: req.RelatedEntityType,
		RelatedEntityID:   req.RelatedEntityID,
	}); err != nil {
		log.WithError(err).Warn("Failed to queue distribution event")
	}

	return &interfaces.DistributionResult{
		TokensDistributed: plan.TokenAmount,
		CashValue:         plan.CashValue,
		RemainingBalance:  plan.RemainingFunding,
		TokenReserve:      account.TokenReserve,
		TransactionID:     record.ID,
		Tier:              assessment.Tier,
		Price:             assessment.Quote.Price,
		PriceSource:       assessment.Quote.Source,
	}, nil
}

// Deposit adds operator funding and buys tokens at the quoted price
func (s *ledgerService) Deposit(ctx context.Context, req interfaces.DepositRequest, quote *entities.PriceQuote) (*entities.FundingDeposit, error) {
	amount := entities.RoundUSD(req.AmountUSD)
	if !amount.IsPositive() {
		return nil, domain.NewInvalidAmountError(fmt.Sprintf("deposit amount must be positive, got %s", req.AmountUSD.String()))
	}
	depositedBy := strings.TrimSpace(req.DepositedBy)
	if depositedBy == "" {
		return nil, domain.NewInvalidAmountError("deposited_by is required")
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		return nil, domain.NewInvalidAmountError("deposit method is required")
	}
	if quote == nil || !quote.Price.IsPositive() {
		return nil, domain.NewOracleUnavailableError(fmt.Errorf("no price available for deposit"))
	}

	tokens := amount.DivRound(quote.Price, entities.TokenPlaces)

	account, err := s.treasuryRepo.GetOrCreateActiveForUpdate(ctx)
	if err != nil {
		return nil, err
	}

	// Checked under the treasury lock so concurrent retries of the same deposit serialize here
	if req.ExternalTxRef != nil {
		existing, err := s.depositRepo.GetByExternalTxRef(ctx, *req.ExternalTxRef)
		if err != nil {
			return nil, fmt.Errorf("failed to look up deposit reference: %w", err)
		}
		if existing != nil {
			return nil, domain.NewDuplicateInflowError(*req.ExternalTxRef)
		}
	}

	account.TotalFunding = account.TotalFunding.Add(amount)
	account.TokenReserve = account.TokenReserve.Add(tokens)
	if err := s.treasuryRepo.UpdateBalances(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update treasury balances: %w", err)
	}

	record := &entities.ReserveTransaction{
		TreasuryID:        account.ID,
		TransactionType:   entities.TransactionTypeDeposit,
		TokenAmount:       tokens,
		CashValue:         amount,
		BalanceAfter:      account.AvailableFunding(),
		TokenReserveAfter: account.TokenReserve,
		Description:       fmt.Sprintf("Funding deposit by %s via %s", depositedBy, method),
	}
	if err := s.reserveTxRepo.Record(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record deposit transaction: %w", err)
	}

	deposit := &entities.FundingDeposit{
		TreasuryID:           account.ID,
		DepositedBy:          depositedBy,
		AmountUSD:            amount,
		TokensPurchased:      tokens,
		TokenPrice:           quote.Price,
		PriceSource:          quote.Source,
		Method:               method,
		Notes:                req.Notes,
		ExternalTxRef:        req.ExternalTxRef,
		Status:               entities.DepositStatusCompleted,
		ReserveTransactionID: record.ID,
	}
	if err := s.depositRepo.Create(ctx, deposit); err != nil {
		return nil, fmt.Errorf("failed to create funding deposit: %w", err)
	}

	if err := s.eventPublisher.Publish(events.DepositCompletedEvent{
		DepositID:       deposit.ID,
		TransactionID:   record.ID,
		DepositedBy:     depositedBy,
		AmountUSD:       amount,
		TokensPurchased: tokens,
		TokenPrice:      quote.Price,
		PriceSource:     quote.Source,
		Method:          method,
	}); err != nil {
		log.WithError(err).Warn("Failed to queue deposit event")
	}

	return deposit, nil
}

// AddToReserve credits an externally detected inflow without a funding deposit record
func (s *ledgerService) AddToReserve(ctx context.Context, credit interfaces.ReserveCredit) (*entities.ReserveTransaction, error) {
	tokens, err := NormalizeTokenAmount(credit.TokenAmount)
	if err != nil {
		return nil, err
	}
	cashValue := entities.RoundUSD(credit.CashValue)
	if cashValue.IsNegative() {
		return nil, domain.NewInvalidAmountError(fmt.Sprintf("cash value cannot be negative, got %s", credit.CashValue.String()))
	}

	account, err := s.treasuryRepo.GetOrCreateActiveForUpdate(ctx)
	if err != nil {
		return nil, err
	}

	if credit.ExternalRef != nil {
		exists, err := s.reserveTxRepo.ExistsByExternalRef(ctx, *credit.ExternalRef)
		if err != nil {
			return nil, fmt.Errorf("failed to look up inflow reference: %w", err)
		}
		if exists {
			return nil, domain.NewDuplicateInflowError(*credit.ExternalRef)
		}
	}

	account.TotalFunding = account.TotalFunding.Add(cashValue)
	account.TokenReserve = account.TokenReserve.Add(tokens)
	if err := s.treasuryRepo.UpdateBalances(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update treasury balances: %w", err)
	}

	record := &entities.ReserveTransaction{
		TreasuryID:        account.ID,
		TransactionType:   entities.TransactionTypeDeposit,
		TokenAmount:       tokens,
		CashValue:         cashValue,
		BalanceAfter:      account.AvailableFunding(),
		TokenReserveAfter: account.TokenReserve,
		Description:       strings.TrimSpace(credit.Description),
		ExternalRef:       credit.ExternalRef,
	}
	if err := s.reserveTxRepo.Record(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record reserve credit: %w", err)
	}

	if err := s.eventPublisher.Publish(events.ReserveCreditedEvent{
		TransactionID:     record.ID,
		TokenAmount:       tokens,
		CashValue:         cashValue,
		TokenReserveAfter: account.TokenReserve,
		ExternalRef:       credit.ExternalRef,
	}); err != nil {
		log.WithError(err).Warn("Failed to queue reserve credit event")
	}

	return record, nil
}
