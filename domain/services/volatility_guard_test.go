package services

import (
	"errors"
	"testing"
	"time"

	"treasury/domain/entities"
	"treasury/domain/events"
	"treasury/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGuard(oracle *testhelpers.StaticPriceOracle, publisher *testhelpers.MockEventPublisher, config VolatilityGuardConfig) (*VolatilityGuard, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	var guard *VolatilityGuard
	if publisher != nil {
		guard = NewVolatilityGuard(oracle, publisher, config)
	} else {
		guard = NewVolatilityGuard(oracle, nil, config)
	}
	guard.now = clock.Now
	return guard, clock
}

func quoteAt(price string, at time.Time) *entities.PriceQuote {
	return &entities.PriceQuote{Price: d(price), Source: "test", ObservedAt: at}
}

func TestVolatilityGuard_Observe_Tiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		prices     []string
		wantTier   entities.RiskTier
		wantChange string
	}{
		{name: "single sample", prices: []string{"1.00"}, wantTier: entities.RiskTierNone, wantChange: "0"},
		{name: "flat", prices: []string{"1.00", "1.00", "1.00"}, wantTier: entities.RiskTierNone, wantChange: "0"},
		{name: "exactly five percent", prices: []string{"1.00", "1.05"}, wantTier: entities.RiskTierNone, wantChange: "5"},
		{name: "seven percent", prices: []string{"1.00", "1.07"}, wantTier: entities.RiskTierMedium, wantChange: "7"},
		{name: "fifteen percent drop", prices: []string{"1.15", "1.00"}, wantTier: entities.RiskTierHigh, wantChange: "15"},
		{name: "swing measured across whole window", prices: []string{"1.00", "1.06", "0.95"}, wantTier: entities.RiskTierHigh, wantChange: "11.5789"},
		{name: "twenty five percent", prices: []string{"0.10", "0.125"}, wantTier: entities.RiskTierExtreme, wantChange: "25"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			guard, clock := newTestGuard(testhelpers.NewStaticPriceOracle("1"), nil, VolatilityGuardConfig{})
			var tier entities.RiskTier
			for _, price := range tt.prices {
				clock.Advance(time.Minute)
				tier = guard.Observe(quoteAt(price, clock.Now()))
			}

			assert.Equal(t, tt.wantTier, tier)
			assert.Equal(t, tt.wantTier, guard.CurrentTier())
			assertDecimal(t, tt.wantChange, guard.CheckVolatility(testCtx).ChangePercent)
		})
	}
}

func TestVolatilityGuard_Observe_PrunesWindow(t *testing.T) {
	t.Parallel()

	guard, clock := newTestGuard(testhelpers.NewStaticPriceOracle("1"), nil, VolatilityGuardConfig{Window: 10 * time.Minute})

	guard.Observe(quoteAt("0.10", clock.Now()))
	clock.Advance(time.Minute)
	require.Equal(t, entities.RiskTierExtreme, guard.Observe(quoteAt("0.13", clock.Now())))

	// Both spikes age out once the window passes
	clock.Advance(15 * time.Minute)
	tier := guard.Observe(quoteAt("0.13", clock.Now()))

	assert.Equal(t, entities.RiskTierNone, tier)
	report := guard.CheckVolatility(testCtx)
	assert.Equal(t, 1, report.Samples)
	assert.Equal(t, 10*time.Minute, report.Window)
}

func TestVolatilityGuard_Observe_MaxSamplesBoundsMemoryNotHistory(t *testing.T) {
	t.Parallel()

	guard, clock := newTestGuard(testhelpers.NewStaticPriceOracle("1"), nil, VolatilityGuardConfig{Window: time.Hour, MaxSamples: 3})

	guard.Observe(quoteAt("0.50", clock.Now()))
	for i := 0; i < 500; i++ {
		clock.Advance(time.Second)
		guard.Observe(quoteAt("1.00", clock.Now()))
	}

	report := guard.CheckVolatility(testCtx)
	assert.Equal(t, 501, report.Samples)
	assertDecimal(t, "100", report.ChangePercent)
	assert.Equal(t, entities.RiskTierExtreme, guard.CurrentTier())
	guard.mu.Lock()
	assert.LessOrEqual(t, len(guard.buckets), 3)
	guard.mu.Unlock()
}

func TestVolatilityGuard_Observe_IgnoresDegradedQuotes(t *testing.T) {
	t.Parallel()

	guard, clock := newTestGuard(testhelpers.NewStaticPriceOracle("1"), nil, VolatilityGuardConfig{})

	guard.Observe(quoteAt("1.00", clock.Now()))
	clock.Advance(time.Minute)
	degraded := quoteAt("2.00", clock.Now())
	degraded.Degraded = true
	tier := guard.Observe(degraded)

	assert.Equal(t, entities.RiskTierNone, tier)
	assert.Equal(t, 1, guard.CheckVolatility(testCtx).Samples)
}

func TestVolatilityGuard_Assess(t *testing.T) {
	t.Parallel()

	t.Run("calm market allows full reserve", func(t *testing.T) {
		t.Parallel()

		guard, _ := newTestGuard(testhelpers.NewStaticPriceOracle("0.10"), nil, VolatilityGuardConfig{})
		assessment := guard.Assess(testCtx, d("1000"))

		assert.Equal(t, entities.RiskTierNone, assessment.Tier)
		assert.False(t, assessment.Halted())
		assertDecimal(t, "1000", assessment.MaxSafeTokens)
		require.NotNil(t, assessment.Quote)
		assertDecimal(t, "0.10", assessment.Quote.Price)
	})

	t.Run("high tier halves the cap", func(t *testing.T) {
		t.Parallel()

		oracle := testhelpers.NewStaticPriceOracle("0.10")
		guard, clock := newTestGuard(oracle, nil, VolatilityGuardConfig{})
		guard.Observe(quoteAt("0.115", clock.Now()))
		clock.Advance(time.Minute)

		assessment := guard.Assess(testCtx, d("1000"))

		assert.Equal(t, entities.RiskTierHigh, assessment.Tier)
		assertDecimal(t, "15", assessment.ChangePercent)
		assertDecimal(t, "500", assessment.MaxSafeTokens)
	})

	t.Run("extreme swing halts", func(t *testing.T) {
		t.Parallel()

		guard, clock := newTestGuard(testhelpers.NewStaticPriceOracle("0.125"), nil, VolatilityGuardConfig{})
		guard.Observe(quoteAt("0.10", clock.Now()))
		clock.Advance(time.Minute)

		assessment := guard.Assess(testCtx, d("1000"))

		assert.True(t, assessment.Halted())
		assertDecimal(t, "0", assessment.MaxSafeTokens)
		assertDecimal(t, "25", assessment.ChangePercent)
	})

	t.Run("oracle failure is extreme", func(t *testing.T) {
		t.Parallel()

		guard, _ := newTestGuard(&testhelpers.StaticPriceOracle{Err: errors.New("timeout")}, nil, VolatilityGuardConfig{})
		assessment := guard.Assess(testCtx, d("1000"))

		assert.True(t, assessment.Halted())
		assert.Equal(t, ReasonOracleUnavailable, assessment.Reason)
		assert.Error(t, assessment.Err)
		assert.Nil(t, assessment.Quote)
		assertDecimal(t, "0", assessment.MaxSafeTokens)
	})

	t.Run("degraded price halts when configured", func(t *testing.T) {
		t.Parallel()

		oracle := testhelpers.NewStaticPriceOracle("0.10")
		oracle.Quote.Degraded = true
		guard, _ := newTestGuard(oracle, nil, VolatilityGuardConfig{HaltOnDegradedPrice: true})

		assessment := guard.Assess(testCtx, d("1000"))

		assert.True(t, assessment.Halted())
		assert.Equal(t, ReasonDegradedPrice, assessment.Reason)
		assert.NoError(t, assessment.Err)
		require.NotNil(t, assessment.Quote)
	})

	t.Run("degraded price priced normally otherwise", func(t *testing.T) {
		t.Parallel()

		oracle := testhelpers.NewStaticPriceOracle("0.10")
		oracle.Quote.Degraded = true
		guard, _ := newTestGuard(oracle, nil, VolatilityGuardConfig{HaltOnDegradedPrice: false})

		assessment := guard.Assess(testCtx, d("1000"))

		assert.False(t, assessment.Halted())
		assert.True(t, assessment.Quote.Degraded)
		assertDecimal(t, "1000", assessment.MaxSafeTokens)
	})
}

func TestVolatilityGuard_AssessDoesNotFeedWindow(t *testing.T) {
	t.Parallel()

	guard, clock := newTestGuard(testhelpers.NewStaticPriceOracle("0.075"), nil, VolatilityGuardConfig{Window: time.Hour, MaxSamples: 120})
	guard.Observe(quoteAt("0.10", clock.Now().Add(-10*time.Minute)))

	first := guard.Assess(testCtx, d("1000"))
	require.Equal(t, entities.RiskTierExtreme, first.Tier)
	assertDecimal(t, "33.3333", first.ChangePercent)

	// A burst of request-time assessments must not push the spike out of the window
	for i := 0; i < 500; i++ {
		guard.Assess(testCtx, d("1000"))
	}

	last := guard.Assess(testCtx, d("1000"))
	assert.Equal(t, entities.RiskTierExtreme, last.Tier)
	assert.True(t, last.Halted())
	assertDecimal(t, "33.3333", last.ChangePercent)
	assertDecimal(t, "0", last.MaxSafeTokens)
	assert.Equal(t, 1, guard.CheckVolatility(testCtx).Samples)

	// The spike still ages out by time
	clock.Advance(time.Hour)
	assert.Equal(t, entities.RiskTierNone, guard.Assess(testCtx, d("1000")).Tier)
}

func TestVolatilityGuard_PublishesTierChanges(t *testing.T) {
	t.Parallel()

	publisher := new(testhelpers.MockEventPublisher)
	publisher.On("Publish", mock.MatchedBy(func(e events.VolatilityTierChangedEvent) bool {
		return e.OldTier == "none" && e.NewTier == "extreme" && e.ChangePercent.Equal(d("25"))
	})).Return(nil).Once()

	guard, clock := newTestGuard(testhelpers.NewStaticPriceOracle("1"), publisher, VolatilityGuardConfig{})
	guard.Observe(quoteAt("0.10", clock.Now()))
	clock.Advance(time.Minute)
	guard.Observe(quoteAt("0.125", clock.Now()))
	clock.Advance(time.Minute)
	// Same tier again: no second event
	guard.Observe(quoteAt("0.125", clock.Now()))

	publisher.AssertExpectations(t)
	publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestVolatilityGuard_Seed(t *testing.T) {
	t.Parallel()

	guard, clock := newTestGuard(testhelpers.NewStaticPriceOracle("1"), nil, VolatilityGuardConfig{Window: time.Hour})
	guard.Seed([]*entities.PriceSample{
		{Price: d("0.50"), SampledAt: clock.Now().Add(-2 * time.Hour)},
		{Price: d("1.00"), SampledAt: clock.Now().Add(-30 * time.Minute)},
		{Price: d("3.00"), SampledAt: clock.Now().Add(-20 * time.Minute), Degraded: true},
		{Price: d("1.08"), SampledAt: clock.Now().Add(-10 * time.Minute)},
	})

	report := guard.CheckVolatility(testCtx)
	assert.Equal(t, 2, report.Samples)
	assertDecimal(t, "8", report.ChangePercent)
}
