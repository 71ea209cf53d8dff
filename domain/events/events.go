package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeDistributionCompleted EventType = "distribution_completed"
	EventTypeDepositCompleted      EventType = "deposit_completed"
	EventTypeReserveCredited       EventType = "reserve_credited"
	EventTypeVolatilityTierChanged EventType = "volatility_tier_changed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// DistributionCompletedEvent is emitted after a distribution commits
type DistributionCompletedEvent struct {
	TransactionID     int64           `json:"transaction_id"`
	TokenAmount       decimal.Decimal `json:"token_amount"`
	CashValue         decimal.Decimal `json:"cash_value"`
	RemainingBalance  decimal.Decimal `json:"remaining_balance"`
	TokenReserveAfter decimal.Decimal `json:"token_reserve_after"`
	RiskTier          string          `json:"risk_tier"`
	RelatedEntityType *string         `json:"related_entity_type,omitempty"`
	RelatedEntityID   *string         `json:"related_entity_id,omitempty"`
}

func (e DistributionCompletedEvent) Type() EventType {
	return EventTypeDistributionCompleted
}

// DepositCompletedEvent is emitted after a funding deposit commits
type DepositCompletedEvent struct {
	DepositID       int64           `json:"deposit_id"`
	TransactionID   int64           `json:"transaction_id"`
	DepositedBy     string          `json:"deposited_by"`
	AmountUSD       decimal.Decimal `json:"amount_usd"`
	TokensPurchased decimal.Decimal `json:"tokens_purchased"`
	TokenPrice      decimal.Decimal `json:"token_price"`
	PriceSource     string          `json:"price_source"`
	Method          string          `json:"method"`
}

func (e DepositCompletedEvent) Type() EventType {
	return EventTypeDepositCompleted
}

// ReserveCreditedEvent is emitted after an external inflow is credited
type ReserveCreditedEvent struct {
	TransactionID     int64           `json:"transaction_id"`
	TokenAmount       decimal.Decimal `json:"token_amount"`
	CashValue         decimal.Decimal `json:"cash_value"`
	TokenReserveAfter decimal.Decimal `json:"token_reserve_after"`
	ExternalRef       *string         `json:"external_ref,omitempty"`
}

func (e ReserveCreditedEvent) Type() EventType {
	return EventTypeReserveCredited
}

// VolatilityTierChangedEvent is emitted when the guard moves between risk tiers
type VolatilityTierChangedEvent struct {
	OldTier       string          `json:"old_tier"`
	NewTier       string          `json:"new_tier"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Reason        string          `json:"reason,omitempty"`
	ObservedAt    time.Time       `json:"observed_at"`
}

func (e VolatilityTierChangedEvent) Type() EventType {
	return EventTypeVolatilityTierChanged
}
