package application

import (
	"context"
	"errors"

	"treasury/domain/entities"
	"treasury/domain/interfaces"
)

var errNoQuote = errors.New("no price quote resolved")

// resolvedMarket answers price and tier lookups from values fetched up front.
// Everything else goes to the wrapped guard.
type resolvedMarket struct {
	interfaces.VolatilityGuard

	quote    *entities.PriceQuote
	quoteErr error
	tier     entities.RiskTier
}

func (m *resolvedMarket) GetCurrentPrice(ctx context.Context) (*entities.PriceQuote, error) {
	if m.quoteErr != nil {
		return nil, m.quoteErr
	}
	if m.quote == nil {
		return nil, errNoQuote
	}
	quote := *m.quote
	return &quote, nil
}

func (m *resolvedMarket) CurrentTier() entities.RiskTier {
	return m.tier
}
