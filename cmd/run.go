package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"treasury/api"
	"treasury/application"
	"treasury/config"
	"treasury/database"
	"treasury/domain/interfaces"
	"treasury/domain/services"
	"treasury/infrastructure"
	"treasury/infrastructure/observability"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// app holds the wired service graph and the resources it must release
type app struct {
	cfg        *config.Config
	db         *database.DB
	redis      *redis.Client
	natsClient *infrastructure.NATSClient
	publisher  interfaces.EventPublisher
	oracle     interfaces.PriceOracle
	guard      *services.VolatilityGuard
	uowFactory *infrastructure.UnitOfWorkFactory
	ledger     *application.TreasuryLedger
}

// ConfigureLogging applies the configured level and formatter to logrus
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Invalid LOG_LEVEL %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.IsDevelopment() {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		return
	}
	log.SetFormatter(&log.JSONFormatter{})
}

// setup connects infrastructure and builds the ledger. withMessaging controls
// whether NATS is used for events; admin commands run without it.
func setup(ctx context.Context, cfg *config.Config, withMessaging bool) (*app, error) {
	a := &app{cfg: cfg}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	log.Info("Database connection established successfully")

	// Price oracle chain: live feed, last good price in Redis, configured fallback
	var live interfaces.PriceOracle
	if cfg.PriceOracleURL != "" {
		live = infrastructure.NewHTTPPriceOracle(infrastructure.HTTPPriceOracleConfig{
			URL:       cfg.PriceOracleURL,
			Token:     cfg.PriceOracleToken,
			Timeout:   cfg.PriceOracleTimeout,
			RateLimit: cfg.PriceOracleRateLimit,
		})
	} else {
		log.Warn("PRICE_ORACLE_URL not set, only cached and fallback prices are available")
	}

	var cache interfaces.PriceCache
	if cfg.RedisAddr != "" {
		redisClient, err := infrastructure.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			// The cache only bridges oracle outages; run without it
			log.WithError(err).Warn("Redis unavailable, last good price cache disabled")
		} else {
			a.redis = redisClient
			cache = infrastructure.NewRedisPriceCache(redisClient, cfg.PriceCacheTTL)
			log.Info("Redis price cache connected")
		}
	}
	a.oracle = infrastructure.NewPriceOracleChain(live, cache, infrastructure.PriceOracleChainConfig{
		FallbackPrice:  cfg.FallbackPrice,
		FallbackSource: cfg.FallbackPriceSource,
		LiveQuoteTTL:   cfg.PriceLiveQuoteTTL,
		RateLimitGrace: cfg.PriceRateLimitGrace,
	})

	// Event publishing
	a.publisher = infrastructure.NewNoopEventPublisher()
	if withMessaging && cfg.NATSEnabled {
		log.Info("Connecting to NATS...")
		natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.natsClient = natsClient

		natsPublisher := infrastructure.NewNATSEventPublisher(natsClient, infrastructure.NewEventSubjectMapper())
		if err := natsPublisher.EnsureEventStream(natsClient); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to ensure event stream: %w", err)
		}
		if err := natsClient.EnsureInflowStream(); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to ensure inflow stream: %w", err)
		}
		a.publisher = natsPublisher
		log.Info("NATS event publishing enabled")
	}

	a.guard = services.NewVolatilityGuard(a.oracle, a.publisher, services.VolatilityGuardConfig{
		Window:              cfg.VolatilityWindow,
		MaxSamples:          cfg.VolatilityMaxSamples,
		HaltOnDegradedPrice: cfg.HaltOnDegradedPrice,
	})

	a.uowFactory = infrastructure.NewUnitOfWorkFactory(db, cfg.LedgerLockTimeout, a.publisher)
	a.ledger = application.NewTreasuryLedger(a.uowFactory, a.guard, a.oracle, services.ReportingConfig{
		MinimumBalance:    cfg.MinimumBalance,
		LookbackDays:      cfg.RunwayLookbackDays,
		TargetRunwayDays:  cfg.TargetRunwayDays,
		WarningRunwayDays: cfg.WarningRunwayDays,
	}, observability.GetMetrics())

	account, err := a.ledger.EnsureTreasury(ctx)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize treasury: %w", err)
	}
	log.WithFields(log.Fields{
		"treasuryId":       account.ID,
		"availableFunding": account.AvailableFunding().String(),
		"tokenReserve":     account.TokenReserve.String(),
	}).Info("Treasury ready")

	return a, nil
}

func (a *app) close() {
	if a.natsClient != nil {
		if err := a.natsClient.Close(); err != nil {
			log.Errorf("Error closing NATS client: %v", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Errorf("Error closing Redis client: %v", err)
		}
	}
	if a.db != nil {
		log.Info("Closing database connection...")
		a.db.Close()
	}
}

// Run initializes and starts the treasury service
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)
	log.Info("Starting treasury service...")

	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	a, err := setup(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	// Warm the volatility window from persisted samples, then keep sampling
	sampler := application.NewPriceSamplerWorker(a.uowFactory, a.oracle, a.guard, cfg.PriceSampleInterval, cfg.PriceSampleRetention)
	if err := sampler.SeedWindow(ctx, a.guard, cfg.VolatilityWindow); err != nil {
		log.WithError(err).Warn("Failed to seed volatility window, starting empty")
	}
	stopSampler := sampler.Start(ctx)
	defer stopSampler()

	// Inflow consumer
	if a.natsClient != nil {
		subscriber := infrastructure.NewNATSEventSubscriber(a.natsClient)
		if err := subscriber.Subscribe(infrastructure.SubjectInflowsDetected, application.NewInflowHandler(a.ledger)); err != nil {
			return fmt.Errorf("failed to subscribe to inflows: %w", err)
		}
		log.Infof("Consuming inflows from %s", infrastructure.SubjectInflowsDetected)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(a.ledger, cfg.HTTPRequestTimeout).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("HTTP API listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	log.Infof("Treasury service is running in %s mode...", cfg.Environment)
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	log.Info("Shutting down treasury service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Error shutting down HTTP server: %v", err)
	}
	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.Errorf("Error shutting down metrics: %v", err)
	}

	log.Info("Shutdown completed")
	return nil
}

// Deposit records operator funding from the command line. Events are not published.
func Deposit(ctx context.Context, depositedBy, amount, method string, externalRef *string) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	amountUSD, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amount, err)
	}

	a, err := setup(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	deposit, err := a.ledger.Deposit(ctx, interfaces.DepositRequest{
		DepositedBy:   depositedBy,
		AmountUSD:     amountUSD,
		Method:        method,
		ExternalTxRef: externalRef,
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"depositId":       deposit.ID,
		"amountUsd":       deposit.AmountUSD.String(),
		"tokensPurchased": deposit.TokensPurchased.String(),
		"tokenPrice":      deposit.TokenPrice.String(),
		"priceSource":     deposit.PriceSource,
	}).Info("Deposit recorded")
	return nil
}
