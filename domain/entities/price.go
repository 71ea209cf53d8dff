package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is a token price in USD as returned by the price oracle
type PriceQuote struct {
	Price      decimal.Decimal
	Source     string
	Degraded   bool // Served from a cache or the configured fallback instead of the live feed
	ObservedAt time.Time
}

// PriceSample is a persisted price observation used for performance reporting
type PriceSample struct {
	ID        int64           `db:"id"`
	Price     decimal.Decimal `db:"price"`
	Source    string          `db:"source"`
	Degraded  bool            `db:"degraded"`
	SampledAt time.Time       `db:"sampled_at"`
}
