package interfaces

import (
	"context"
	"time"

	"treasury/domain/entities"
	"treasury/domain/events"

	"github.com/shopspring/decimal"
)

// TreasuryRepository defines the interface for the singleton treasury account
type TreasuryRepository interface {
	// GetActive returns the active treasury without locking, or nil if none exists yet
	GetActive(ctx context.Context) (*entities.TreasuryAccount, error)

	// GetOrCreateActiveForUpdate returns the active treasury with an exclusive row lock
	// held until the surrounding transaction ends, creating it on first use
	GetOrCreateActiveForUpdate(ctx context.Context) (*entities.TreasuryAccount, error)

	// UpdateBalances persists the counters of a locked account
	UpdateBalances(ctx context.Context, account *entities.TreasuryAccount) error
}

// ReserveTransactionRepository defines the interface for the append-only treasury log
type ReserveTransactionRepository interface {
	// Record appends a transaction and fills in its ID and CreatedAt
	Record(ctx context.Context, tx *entities.ReserveTransaction) error

	// GetByID retrieves a transaction by its ID
	GetByID(ctx context.Context, id int64) (*entities.ReserveTransaction, error)

	// ExistsByExternalRef reports whether an inflow with this reference was already credited
	ExistsByExternalRef(ctx context.Context, externalRef string) (bool, error)

	// ListRecent returns the newest transactions first
	ListRecent(ctx context.Context, treasuryID int64, limit int) ([]*entities.ReserveTransaction, error)

	// ListSince returns transactions of a type created at or after since, oldest first
	ListSince(ctx context.Context, treasuryID int64, txType entities.TransactionType, since time.Time) ([]*entities.ReserveTransaction, error)

	// SumCashValueSince totals the cash value of a transaction type since a point in time
	SumCashValueSince(ctx context.Context, treasuryID int64, txType entities.TransactionType, since time.Time) (decimal.Decimal, error)
}

// FundingDepositRepository defines the interface for funding deposit records
type FundingDepositRepository interface {
	// Create inserts a deposit and fills in its ID and CreatedAt
	Create(ctx context.Context, deposit *entities.FundingDeposit) error

	// GetByID retrieves a deposit by its ID
	GetByID(ctx context.Context, id int64) (*entities.FundingDeposit, error)

	// GetByExternalTxRef finds a deposit by its external transaction reference
	GetByExternalTxRef(ctx context.Context, externalTxRef string) (*entities.FundingDeposit, error)
}

// PriceSampleRepository defines the interface for persisted price observations
type PriceSampleRepository interface {
	// Record stores a sample and fills in its ID
	Record(ctx context.Context, sample *entities.PriceSample) error

	// GetLatest returns the most recent sample or nil
	GetLatest(ctx context.Context) (*entities.PriceSample, error)

	// GetClosestBefore returns the newest sample at or before t, or nil
	GetClosestBefore(ctx context.Context, t time.Time) (*entities.PriceSample, error)

	// GetEarliest returns the oldest sample or nil
	GetEarliest(ctx context.Context) (*entities.PriceSample, error)

	// ListSince returns samples taken at or after since, oldest first
	ListSince(ctx context.Context, since time.Time) ([]*entities.PriceSample, error)

	// DeleteBefore prunes samples older than t and returns the number removed
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}
