package application

import (
	"context"
	"fmt"
	"time"

	"treasury/domain/entities"
	"treasury/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// WindowSeeder loads persisted samples into an in-memory price window
type WindowSeeder interface {
	Seed(samples []*entities.PriceSample)
}

// PriceSamplerWorker periodically samples the oracle, feeds the volatility guard
// and persists the sample for performance reporting
type PriceSamplerWorker struct {
	uowFactory UnitOfWorkFactory
	oracle     interfaces.PriceOracle
	guard      interfaces.VolatilityGuard
	interval   time.Duration
	retention  time.Duration // 0 keeps every sample
	now        func() time.Time
}

// NewPriceSamplerWorker creates a new price sampler worker
func NewPriceSamplerWorker(
	uowFactory UnitOfWorkFactory,
	oracle interfaces.PriceOracle,
	guard interfaces.VolatilityGuard,
	interval time.Duration,
	retention time.Duration,
) *PriceSamplerWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PriceSamplerWorker{
		uowFactory: uowFactory,
		oracle:     oracle,
		guard:      guard,
		interval:   interval,
		retention:  retention,
		now:        time.Now,
	}
}

// SeedWindow loads samples from the last window into seeder so volatility
// survives a restart
func (w *PriceSamplerWorker) SeedWindow(ctx context.Context, seeder WindowSeeder, window time.Duration) error {
	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	samples, err := uow.PriceSampleRepository().ListSince(ctx, w.now().Add(-window))
	if err != nil {
		return fmt.Errorf("failed to load price samples: %w", err)
	}

	seeder.Seed(samples)
	log.WithField("samples", len(samples)).Info("Seeded volatility window from price samples")
	return nil
}

// Start runs the sampler until ctx is cancelled or the returned stop function is called
func (w *PriceSamplerWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithField("interval", w.interval).Info("Price sampler worker started")

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			if err := w.SampleOnce(ctx); err != nil {
				log.WithError(err).Warn("Price sample failed")
			}

			select {
			case <-ctx.Done():
				log.Info("Price sampler worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Price sampler worker shutting down (stop requested)...")
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// SampleOnce takes one price sample
func (w *PriceSamplerWorker) SampleOnce(ctx context.Context) error {
	quote, err := w.oracle.GetCurrentPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch price: %w", err)
	}

	tier := w.guard.Observe(quote)

	sampledAt := quote.ObservedAt
	if sampledAt.IsZero() {
		sampledAt = w.now()
	}
	sample := &entities.PriceSample{
		Price:     quote.Price,
		Source:    quote.Source,
		Degraded:  quote.Degraded,
		SampledAt: sampledAt,
	}

	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.PriceSampleRepository().Record(ctx, sample); err != nil {
		return fmt.Errorf("failed to record price sample: %w", err)
	}

	var pruned int64
	if w.retention > 0 {
		pruned, err = uow.PriceSampleRepository().DeleteBefore(ctx, w.now().Add(-w.retention))
		if err != nil {
			return fmt.Errorf("failed to prune price samples: %w", err)
		}
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"price":    quote.Price.String(),
		"source":   quote.Source,
		"degraded": quote.Degraded,
		"tier":     tier,
		"pruned":   pruned,
	}).Debug("Price sampled")
	return nil
}
