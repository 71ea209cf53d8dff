package infrastructure

import (
	"context"
	"time"

	"treasury/application"
	"treasury/domain/interfaces"
	"treasury/infrastructure/observability"
)

// unitOfWork wraps the repository UnitOfWork and publishes queued events after commit
type unitOfWork struct {
	inner                  application.UnitOfWork
	transactionalPublisher *NATSTransactionalPublisher
	ctx                    context.Context
	startedAt              time.Time
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	u.ctx = ctx
	u.startedAt = time.Now()
	return u.inner.Begin(ctx)
}

// Commit commits the transaction and flushes events on success
func (u *unitOfWork) Commit() error {
	if err := u.inner.Commit(); err != nil {
		u.transactionalPublisher.Discard()
		u.recordTransaction(observability.OutcomeError)
		return err
	}
	u.recordTransaction(observability.OutcomeCommit)

	// Events are best-effort once the transaction is durable
	_ = u.transactionalPublisher.Flush(u.ctx)
	return nil
}

// Rollback discards pending events and rolls back the transaction
func (u *unitOfWork) Rollback() error {
	u.transactionalPublisher.Discard()
	err := u.inner.Rollback()
	u.recordTransaction(observability.OutcomeRollback)
	return err
}

func (u *unitOfWork) recordTransaction(outcome string) {
	if u.startedAt.IsZero() {
		return
	}
	observability.GetMetrics().RecordDatabaseTransaction(outcome, time.Since(u.startedAt))
	u.startedAt = time.Time{}
}

func (u *unitOfWork) TreasuryRepository() interfaces.TreasuryRepository {
	return u.inner.TreasuryRepository()
}

func (u *unitOfWork) ReserveTransactionRepository() interfaces.ReserveTransactionRepository {
	return u.inner.ReserveTransactionRepository()
}

func (u *unitOfWork) FundingDepositRepository() interfaces.FundingDepositRepository {
	return u.inner.FundingDepositRepository()
}

func (u *unitOfWork) PriceSampleRepository() interfaces.PriceSampleRepository {
	return u.inner.PriceSampleRepository()
}

// EventBus returns the transactional event publisher
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	return u.transactionalPublisher
}
