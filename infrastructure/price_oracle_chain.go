package infrastructure

import (
	"context"
	"errors"
	"sync"
	"time"

	"treasury/domain"
	"treasury/domain/entities"
	"treasury/domain/interfaces"
	"treasury/infrastructure/observability"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Price sources reported in metrics
const (
	priceSourceLive     = "live"
	priceSourceMemory   = "memory"
	priceSourceCache    = "cache"
	priceSourceFallback = "fallback"
)

const liveFetchKey = "live"

var errNoLiveOracle = errors.New("no live price oracle configured")

// PriceOracleChainConfig configures the degraded sources and the in-memory live quote
type PriceOracleChainConfig struct {
	FallbackPrice  decimal.Decimal // Non-positive disables the fallback
	FallbackSource string
	LiveQuoteTTL   time.Duration // Live quotes younger than this are served without a fetch
	RateLimitGrace time.Duration // How long a live quote stays live while the feed is rate limited
}

// PriceOracleChain serves the live price when possible, then the last good cached
// price, then the configured fallback. Anything but a live quote is degraded.
// Concurrent callers share one upstream fetch.
type PriceOracleChain struct {
	live   interfaces.PriceOracle
	cache  interfaces.PriceCache
	config PriceOracleChainConfig
	now    func() time.Time

	fetches singleflight.Group

	mu         sync.Mutex
	lastLive   *entities.PriceQuote
	lastLiveAt time.Time
}

// NewPriceOracleChain creates a new oracle chain. live and cache may be nil.
func NewPriceOracleChain(live interfaces.PriceOracle, cache interfaces.PriceCache, config PriceOracleChainConfig) *PriceOracleChain {
	if config.FallbackSource == "" {
		config.FallbackSource = priceSourceFallback
	}
	if config.RateLimitGrace < config.LiveQuoteTTL {
		config.RateLimitGrace = config.LiveQuoteTTL
	}
	return &PriceOracleChain{
		live:   live,
		cache:  cache,
		config: config,
		now:    time.Now,
	}
}

// GetCurrentPrice returns the best available quote
func (c *PriceOracleChain) GetCurrentPrice(ctx context.Context) (*entities.PriceQuote, error) {
	metrics := observability.GetMetrics()

	if quote, ok := c.recentLive(c.config.LiveQuoteTTL); ok {
		metrics.RecordOracleFetch(priceSourceMemory, observability.OutcomeSuccess)
		return quote, nil
	}

	liveErr := errNoLiveOracle
	if c.live != nil {
		quote, err := c.fetchLive(ctx)
		if err == nil {
			return quote, nil
		}
		liveErr = err

		// Throttling says nothing about the market; a recent live quote is still live
		if errors.Is(err, ErrRateLimited) {
			if quote, ok := c.recentLive(c.config.RateLimitGrace); ok {
				metrics.RecordOracleFetch(priceSourceMemory, observability.OutcomeSuccess)
				log.WithField("price", quote.Price.String()).Debug("Price oracle rate limited, serving recent live quote")
				return quote, nil
			}
		}
		log.WithError(err).Warn("Live price oracle failed, trying degraded sources")
	}

	if c.cache != nil {
		cached, err := c.cache.Get(ctx)
		switch {
		case err != nil:
			metrics.RecordOracleFetch(priceSourceCache, observability.OutcomeError)
			log.WithError(err).Warn("Failed to read last good price")
		case cached != nil && cached.Price.IsPositive():
			metrics.RecordOracleFetch(priceSourceCache, observability.OutcomeSuccess)
			cached.Degraded = true
			return cached, nil
		}
	}

	if c.config.FallbackPrice.IsPositive() {
		metrics.RecordOracleFetch(priceSourceFallback, observability.OutcomeSuccess)
		log.WithFields(log.Fields{
			"price":  c.config.FallbackPrice.String(),
			"source": c.config.FallbackSource,
		}).Warn("Serving configured fallback price")
		return &entities.PriceQuote{
			Price:      c.config.FallbackPrice,
			Source:     c.config.FallbackSource,
			Degraded:   true,
			ObservedAt: c.now().UTC(),
		}, nil
	}

	return nil, domain.NewOracleUnavailableError(liveErr)
}

// fetchLive joins the in-flight upstream fetch or starts one. The fetch is
// detached from the caller's cancellation so one impatient caller cannot fail
// the others; each caller still stops waiting when its own context ends.
func (c *PriceOracleChain) fetchLive(ctx context.Context) (*entities.PriceQuote, error) {
	results := c.fetches.DoChan(liveFetchKey, func() (interface{}, error) {
		if quote, ok := c.recentLive(c.config.LiveQuoteTTL); ok {
			return quote, nil
		}

		fetchCtx := context.WithoutCancel(ctx)
		metrics := observability.GetMetrics()
		quote, err := c.live.GetCurrentPrice(fetchCtx)
		if err != nil {
			metrics.RecordOracleFetch(priceSourceLive, observability.OutcomeError)
			return nil, err
		}
		metrics.RecordOracleFetch(priceSourceLive, observability.OutcomeSuccess)
		c.remember(fetchCtx, quote)
		return quote, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}
		quote := *result.Val.(*entities.PriceQuote)
		return &quote, nil
	}
}

// recentLive returns a copy of the last live quote if it was fetched within maxAge
func (c *PriceOracleChain) recentLive(maxAge time.Duration) (*entities.PriceQuote, bool) {
	if maxAge <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastLive == nil || c.now().Sub(c.lastLiveAt) >= maxAge {
		return nil, false
	}
	quote := *c.lastLive
	return &quote, true
}

// remember keeps a live quote in memory and stores it as the last good price;
// cache failures only cost the outage bridge
func (c *PriceOracleChain) remember(ctx context.Context, quote *entities.PriceQuote) {
	c.mu.Lock()
	kept := *quote
	c.lastLive = &kept
	c.lastLiveAt = c.now()
	c.mu.Unlock()

	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, quote); err != nil {
		log.WithError(err).Warn("Failed to cache live price")
	}
}
