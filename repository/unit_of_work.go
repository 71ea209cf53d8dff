package repository

import (
	"context"
	"fmt"
	"time"

	"treasury/application"
	"treasury/database"
	"treasury/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db              *database.DB
	tx              pgx.Tx
	ctx             context.Context
	lockTimeout     time.Duration
	eventPublisher  interfaces.EventPublisher
	treasuryRepo    interfaces.TreasuryRepository
	reserveTxRepo   interfaces.ReserveTransactionRepository
	depositRepo     interfaces.FundingDepositRepository
	priceSampleRepo interfaces.PriceSampleRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory. A positive lockTimeout
// bounds how long each transaction waits for row locks.
func NewUnitOfWorkFactory(db *database.DB, lockTimeout time.Duration) *unitOfWorkFactory {
	return &unitOfWorkFactory{
		db:          db,
		lockTimeout: lockTimeout,
	}
}

type unitOfWorkFactory struct {
	db          *database.DB
	lockTimeout time.Duration
}

// Create creates a new UnitOfWork without an event publisher
func (f *unitOfWorkFactory) Create() application.UnitOfWork {
	return f.CreateWithPublisher(nil)
}

// CreateWithPublisher creates a new UnitOfWork whose EventBus is the given publisher
func (f *unitOfWorkFactory) CreateWithPublisher(eventPublisher interfaces.EventPublisher) application.UnitOfWork {
	return &unitOfWork{
		db:             f.db,
		lockTimeout:    f.lockTimeout,
		eventPublisher: eventPublisher,
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if u.lockTimeout > 0 {
		if err := database.SetLocalLockTimeout(ctx, tx, u.lockTimeout); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}

	u.tx = tx
	u.ctx = ctx

	u.treasuryRepo = NewTreasuryRepositoryScoped(tx)
	u.reserveTxRepo = NewReserveTransactionRepositoryScoped(tx)
	u.depositRepo = NewFundingDepositRepositoryScoped(tx)
	u.priceSampleRepo = NewPriceSampleRepositoryScoped(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	u.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapLockError(err))
	}
	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// TreasuryRepository returns the treasury repository for this unit of work
func (u *unitOfWork) TreasuryRepository() interfaces.TreasuryRepository {
	if u.treasuryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.treasuryRepo
}

// ReserveTransactionRepository returns the reserve transaction repository for this unit of work
func (u *unitOfWork) ReserveTransactionRepository() interfaces.ReserveTransactionRepository {
	if u.reserveTxRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.reserveTxRepo
}

// FundingDepositRepository returns the funding deposit repository for this unit of work
func (u *unitOfWork) FundingDepositRepository() interfaces.FundingDepositRepository {
	if u.depositRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.depositRepo
}

// PriceSampleRepository returns the price sample repository for this unit of work
func (u *unitOfWork) PriceSampleRepository() interfaces.PriceSampleRepository {
	if u.priceSampleRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.priceSampleRepo
}

// EventBus returns the event publisher for this unit of work
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if u.eventPublisher == nil {
		panic("event publisher not configured")
	}
	return u.eventPublisher
}
