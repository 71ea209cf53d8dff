package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"treasury/domain/entities"
	"treasury/domain/events"
	"treasury/domain/interfaces"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Assessment reasons reported alongside a tier
const (
	ReasonOracleUnavailable = "oracle_unavailable"
	ReasonDegradedPrice     = "degraded_price"
)

// VolatilityGuardConfig configures the rolling price window. MaxSamples bounds
// memory by splitting the window into that many time buckets; history only
// leaves the window by age.
type VolatilityGuardConfig struct {
	Window              time.Duration
	MaxSamples          int
	HaltOnDegradedPrice bool
}

// priceBucket folds every observation in one slice of the window into its extremes
type priceBucket struct {
	start time.Time
	last  time.Time
	low   decimal.Decimal
	high  decimal.Decimal
	count int
}

// VolatilityGuard classifies recent price movement into risk tiers and caps distributions accordingly.
// Any failure to obtain a price is treated as extreme volatility.
type VolatilityGuard struct {
	oracle         interfaces.PriceOracle
	eventPublisher interfaces.EventPublisher
	config         VolatilityGuardConfig
	now            func() time.Time

	mu          sync.Mutex
	bucketWidth time.Duration
	buckets     []priceBucket
	currentTier entities.RiskTier
}

// NewVolatilityGuard creates a new volatility guard
func NewVolatilityGuard(oracle interfaces.PriceOracle, eventPublisher interfaces.EventPublisher, config VolatilityGuardConfig) *VolatilityGuard {
	if config.Window <= 0 {
		config.Window = time.Hour
	}
	if config.MaxSamples <= 1 {
		config.MaxSamples = 120
	}
	return &VolatilityGuard{
		oracle:         oracle,
		eventPublisher: eventPublisher,
		config:         config,
		now:            time.Now,
		bucketWidth:    config.Window / time.Duration(config.MaxSamples),
	}
}

// Seed loads persisted samples into the window, typically at startup
func (g *VolatilityGuard) Seed(samples []*entities.PriceSample) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, sample := range samples {
		if sample == nil || sample.Degraded || !sample.Price.IsPositive() {
			continue
		}
		g.addLocked(sample.Price, sample.SampledAt)
	}
	g.pruneLocked(g.now())
}

// Observe records a sampled quote and reclassifies the tier. Degraded quotes
// carry no market information and stay out of the window. Only the price
// sampler feeds the window; request-time quotes go through Assess.
func (g *VolatilityGuard) Observe(quote *entities.PriceQuote) entities.RiskTier {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if quote != nil && !quote.Degraded && quote.Price.IsPositive() {
		at := quote.ObservedAt
		if at.IsZero() {
			at = now
		}
		g.addLocked(quote.Price, at)
	}
	g.pruneLocked(now)

	change := g.swingLocked()
	tier := entities.ClassifyRiskTier(change)
	g.transitionLocked(tier, change, "")
	return tier
}

// Assess fetches the current price and returns the distribution verdict for a
// reserve. The fresh quote is classified against the window but never stored.
func (g *VolatilityGuard) Assess(ctx context.Context, tokenReserve decimal.Decimal) *interfaces.Assessment {
	quote, err := g.oracle.GetCurrentPrice(ctx)
	if err == nil && (quote == nil || !quote.Price.IsPositive()) {
		err = fmt.Errorf("oracle returned no usable price")
	}
	if err != nil {
		log.WithError(err).Error("Price oracle unavailable, halting distributions")
		g.haltWith(ReasonOracleUnavailable)
		return &interfaces.Assessment{
			Tier:          entities.RiskTierExtreme,
			ChangePercent: decimal.Zero,
			MaxSafeTokens: decimal.Zero,
			Reason:        ReasonOracleUnavailable,
			Err:           err,
		}
	}

	if quote.Degraded && g.config.HaltOnDegradedPrice {
		log.WithFields(log.Fields{
			"source": quote.Source,
			"price":  quote.Price.String(),
		}).Warn("Price feed degraded, halting distributions")
		g.haltWith(ReasonDegradedPrice)
		return &interfaces.Assessment{
			Tier:          entities.RiskTierExtreme,
			ChangePercent: decimal.Zero,
			MaxSafeTokens: decimal.Zero,
			Quote:         quote,
			Reason:        ReasonDegradedPrice,
		}
	}

	g.mu.Lock()
	g.pruneLocked(g.now())
	var change decimal.Decimal
	if quote.Degraded {
		change = g.swingLocked()
	} else {
		change = g.swingLocked(quote.Price)
	}
	tier := entities.ClassifyRiskTier(change)
	g.transitionLocked(tier, change, "")
	g.mu.Unlock()

	assessment := &interfaces.Assessment{
		Tier:          tier,
		ChangePercent: change,
		MaxSafeTokens: TierCap(tier, tokenReserve),
		Quote:         quote,
	}
	if tier != entities.RiskTierNone {
		log.WithFields(log.Fields{
			"tier":          tier,
			"changePercent": change.StringFixed(2),
			"maxSafeTokens": assessment.MaxSafeTokens.String(),
		}).Warn("Volatility guard restricting distributions")
	}
	return assessment
}

// CheckVolatility returns the swing across the current window
func (g *VolatilityGuard) CheckVolatility(ctx context.Context) interfaces.VolatilityReport {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pruneLocked(g.now())
	return interfaces.VolatilityReport{
		ChangePercent: g.swingLocked(),
		Samples:       g.sampleCountLocked(),
		Window:        g.config.Window,
	}
}

// CurrentTier returns the tier of the latest observation or assessment
func (g *VolatilityGuard) CurrentTier() entities.RiskTier {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentTier
}

func (g *VolatilityGuard) haltWith(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transitionLocked(entities.RiskTierExtreme, decimal.Zero, reason)
}

// addLocked merges a price into the bucket covering its timestamp, keeping
// buckets ordered by start
func (g *VolatilityGuard) addLocked(price decimal.Decimal, at time.Time) {
	start := at.Truncate(g.bucketWidth)
	i := len(g.buckets)
	for i > 0 && g.buckets[i-1].start.After(start) {
		i--
	}
	if i > 0 && g.buckets[i-1].start.Equal(start) {
		b := &g.buckets[i-1]
		b.low = decimal.Min(b.low, price)
		b.high = decimal.Max(b.high, price)
		if at.After(b.last) {
			b.last = at
		}
		b.count++
		return
	}

	g.buckets = append(g.buckets, priceBucket{})
	copy(g.buckets[i+1:], g.buckets[i:])
	g.buckets[i] = priceBucket{start: start, last: at, low: price, high: price, count: 1}
}

// pruneLocked drops buckets whose newest observation has aged out of the window
func (g *VolatilityGuard) pruneLocked(now time.Time) {
	cutoff := now.Add(-g.config.Window)
	kept := g.buckets[:0]
	for _, b := range g.buckets {
		if !b.last.Before(cutoff) {
			kept = append(kept, b)
		}
	}
	g.buckets = kept
}

func (g *VolatilityGuard) sampleCountLocked() int {
	total := 0
	for _, b := range g.buckets {
		total += b.count
	}
	return total
}

// swingLocked is the widest move inside the window, plus any unstored prices,
// as a percentage of the low
func (g *VolatilityGuard) swingLocked(extra ...decimal.Decimal) decimal.Decimal {
	if g.sampleCountLocked()+len(extra) < 2 {
		return decimal.Zero
	}
	var low, high decimal.Decimal
	seen := false
	widen := func(l, h decimal.Decimal) {
		if !seen || l.LessThan(low) {
			low = l
		}
		if !seen || h.GreaterThan(high) {
			high = h
		}
		seen = true
	}
	for _, b := range g.buckets {
		widen(b.low, b.high)
	}
	for _, price := range extra {
		widen(price, price)
	}
	if !low.IsPositive() {
		return decimal.Zero
	}
	return high.Sub(low).Div(low).Mul(decimal.NewFromInt(100)).Round(4)
}

func (g *VolatilityGuard) transitionLocked(tier entities.RiskTier, change decimal.Decimal, reason string) {
	previous := g.currentTier
	g.currentTier = tier
	if previous == "" || previous == tier {
		return
	}

	log.WithFields(log.Fields{
		"oldTier":       previous,
		"newTier":       tier,
		"changePercent": change.StringFixed(2),
		"reason":        reason,
	}).Info("Volatility tier changed")

	if g.eventPublisher == nil {
		return
	}
	if err := g.eventPublisher.Publish(events.VolatilityTierChangedEvent{
		OldTier:       string(previous),
		NewTier:       string(tier),
		ChangePercent: change,
		Reason:        reason,
		ObservedAt:    g.now().UTC(),
	}); err != nil {
		log.WithError(err).Warn("Failed to publish volatility tier change")
	}
}
