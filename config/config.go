package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"treasury/database"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// HTTP configuration
	HTTPAddr           string
	HTTPRequestTimeout time.Duration

	// Ledger configuration
	MinimumBalance    decimal.Decimal // USD floor available funding may never drop below
	LedgerLockTimeout time.Duration   // Bound on waiting for the treasury row lock

	// Price oracle configuration
	PriceOracleURL       string
	PriceOracleToken     string
	PriceOracleTimeout   time.Duration
	PriceOracleRateLimit float64 // Requests per second towards the upstream oracle
	FallbackPrice        decimal.Decimal
	FallbackPriceSource  string
	PriceCacheTTL        time.Duration
	PriceLiveQuoteTTL    time.Duration // Live quotes are reused in memory for this long
	PriceRateLimitGrace  time.Duration // A live quote stays live this long while the feed is rate limited
	PriceSampleInterval  time.Duration
	PriceSampleRetention time.Duration // 0 keeps every sample

	// Volatility guard configuration
	VolatilityWindow     time.Duration
	VolatilityMaxSamples int
	HaltOnDegradedPrice  bool // Treat fallback-priced distributions as halted

	// Reporting configuration
	RunwayLookbackDays int
	TargetRunwayDays   int
	WarningRunwayDays  int

	// Redis configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// NATS configuration
	NATSEnabled bool
	NATSServers string // NATS server addresses (comma-separated)

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelExporterType         string // "console", "otlp" or "none"
	OTelOTLPEndpoint         string
	OTelServiceName          string
	OTelExportIntervalMillis int

	// Logging
	LogLevel string

	// Environment
	Environment string // "development" or "production"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			// In test environment, use a default test config instead of panicking
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A missing .env file is normal outside local development
	_ = godotenv.Load()

	config := &Config{
		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// HTTP
		HTTPAddr:           getEnvWithDefault("HTTP_ADDR", ":8080"),
		HTTPRequestTimeout: 15 * time.Second,

		// Ledger
		MinimumBalance:    decimal.Zero,
		LedgerLockTimeout: 2 * time.Second,

		// Price oracle
		PriceOracleURL:       os.Getenv("PRICE_ORACLE_URL"),
		PriceOracleToken:     os.Getenv("PRICE_ORACLE_TOKEN"),
		PriceOracleTimeout:   5 * time.Second,
		PriceOracleRateLimit: 2,
		FallbackPrice:        decimal.Zero,
		FallbackPriceSource:  getEnvWithDefault("FALLBACK_PRICE_SOURCE", "fallback"),
		PriceCacheTTL:        10 * time.Minute,
		PriceLiveQuoteTTL:    5 * time.Second,
		PriceRateLimitGrace:  time.Minute,
		PriceSampleInterval:  time.Minute,

		// Volatility guard
		VolatilityWindow:     time.Hour,
		VolatilityMaxSamples: 120,
		HaltOnDegradedPrice:  getEnvWithDefault("HALT_ON_DEGRADED_PRICE", "true") == "true",

		// Reporting
		RunwayLookbackDays: 7,
		TargetRunwayDays:   90,
		WarningRunwayDays:  30,

		// Redis
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		// NATS
		NATSEnabled: getEnvWithDefault("NATS_ENABLED", "true") == "true",
		NATSServers: getEnvWithDefault("NATS_SERVERS", "nats://nats:4222"),

		// OpenTelemetry
		OTelEnabled:              os.Getenv("OTEL_ENABLED") == "true",
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317"),
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "treasury"),
		OTelExportIntervalMillis: 30000,

		// Logging
		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	var err error
	if config.MinimumBalance, err = getDecimalEnv("MINIMUM_BALANCE", config.MinimumBalance); err != nil {
		return nil, err
	}
	if config.FallbackPrice, err = getDecimalEnv("FALLBACK_PRICE", config.FallbackPrice); err != nil {
		return nil, err
	}

	// Override defaults if environment variables are set
	config.LedgerLockTimeout = getDurationMillisEnv("LEDGER_LOCK_TIMEOUT_MS", config.LedgerLockTimeout)
	config.PriceOracleTimeout = getDurationMillisEnv("PRICE_ORACLE_TIMEOUT_MS", config.PriceOracleTimeout)
	config.PriceCacheTTL = getDurationMillisEnv("PRICE_CACHE_TTL_MS", config.PriceCacheTTL)
	config.PriceLiveQuoteTTL = getDurationMillisEnv("PRICE_LIVE_QUOTE_TTL_MS", config.PriceLiveQuoteTTL)
	config.PriceRateLimitGrace = getDurationMillisEnv("PRICE_RATE_LIMIT_GRACE_MS", config.PriceRateLimitGrace)
	config.PriceSampleInterval = getDurationMillisEnv("PRICE_SAMPLE_INTERVAL_MS", config.PriceSampleInterval)
	config.VolatilityWindow = getDurationMillisEnv("VOLATILITY_WINDOW_MS", config.VolatilityWindow)
	config.HTTPRequestTimeout = getDurationMillisEnv("HTTP_REQUEST_TIMEOUT_MS", config.HTTPRequestTimeout)
	config.PriceSampleRetention = time.Duration(getIntEnv("PRICE_SAMPLE_RETENTION_DAYS", 0)) * 24 * time.Hour

	if rateLimit := os.Getenv("PRICE_ORACLE_RATE_LIMIT"); rateLimit != "" {
		if parsed, err := strconv.ParseFloat(rateLimit, 64); err == nil {
			config.PriceOracleRateLimit = parsed
		}
	}
	config.VolatilityMaxSamples = getIntEnv("VOLATILITY_MAX_SAMPLES", config.VolatilityMaxSamples)
	config.RunwayLookbackDays = getIntEnv("RUNWAY_LOOKBACK_DAYS", config.RunwayLookbackDays)
	config.TargetRunwayDays = getIntEnv("TARGET_RUNWAY_DAYS", config.TargetRunwayDays)
	config.WarningRunwayDays = getIntEnv("WARNING_RUNWAY_DAYS", config.WarningRunwayDays)
	config.RedisDB = getIntEnv("REDIS_DB", config.RedisDB)
	config.OTelExportIntervalMillis = getIntEnv("OTEL_EXPORT_INTERVAL_MILLIS", config.OTelExportIntervalMillis)

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		// If DatabaseName is provided, ensure it's not empty
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
		if config.MinimumBalance.IsNegative() {
			return nil, fmt.Errorf("MINIMUM_BALANCE cannot be negative")
		}
		if config.FallbackPrice.IsNegative() {
			return nil, fmt.Errorf("FALLBACK_PRICE cannot be negative")
		}
		if config.LedgerLockTimeout <= 0 {
			return nil, fmt.Errorf("LEDGER_LOCK_TIMEOUT_MS must be positive")
		}
		if config.PriceSampleRetention < 0 {
			return nil, fmt.Errorf("PRICE_SAMPLE_RETENTION_DAYS cannot be negative")
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationMillisEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return defaultValue
}

// getDecimalEnv parses a decimal setting; money values must never go through float64
func getDecimalEnv(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:          "test",
		HTTPAddr:             ":0",
		HTTPRequestTimeout:   5 * time.Second,
		MinimumBalance:       decimal.Zero,
		LedgerLockTimeout:    2 * time.Second,
		PriceOracleTimeout:   time.Second,
		PriceOracleRateLimit: 100,
		FallbackPrice:        decimal.RequireFromString("0.10"),
		FallbackPriceSource:  "fallback",
		PriceCacheTTL:        time.Minute,
		PriceLiveQuoteTTL:    time.Second,
		PriceRateLimitGrace:  time.Minute,
		PriceSampleInterval:  time.Minute,
		VolatilityWindow:     time.Hour,
		VolatilityMaxSamples: 120,
		HaltOnDegradedPrice:  false,
		RunwayLookbackDays:   7,
		TargetRunwayDays:     90,
		WarningRunwayDays:    30,
		NATSEnabled:          false,
		OTelExporterType:     "none",
		OTelServiceName:      "treasury-test",
		LogLevel:             "debug",
	}
}
