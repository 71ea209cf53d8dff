package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"treasury/domain/entities"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const maxOracleResponseBytes = 1 << 16

// ErrRateLimited means the request was throttled locally and never reached the feed
var ErrRateLimited = errors.New("price oracle rate limited")

// HTTPPriceOracleConfig configures the upstream price feed
type HTTPPriceOracleConfig struct {
	URL       string
	Token     string
	Timeout   time.Duration
	RateLimit float64 // Requests per second, 0 disables limiting
	Source    string
}

type priceResponse struct {
	Price     decimal.Decimal `json:"price"`
	Source    string          `json:"source"`
	Timestamp *time.Time      `json:"timestamp"`
}

// HTTPPriceOracle fetches the live token price from an HTTP JSON endpoint.
// Quotes from this oracle are never degraded.
type HTTPPriceOracle struct {
	client  *http.Client
	limiter *rate.Limiter
	url     string
	token   string
	source  string
	now     func() time.Time
}

// NewHTTPPriceOracle creates a new HTTP price oracle
func NewHTTPPriceOracle(config HTTPPriceOracleConfig) *HTTPPriceOracle {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Source == "" {
		config.Source = "oracle"
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &HTTPPriceOracle{
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		url:     config.URL,
		token:   config.Token,
		source:  config.Source,
		now:     time.Now,
	}
}

// GetCurrentPrice fetches the current price from the upstream feed
func (o *HTTPPriceOracle) GetCurrentPrice(ctx context.Context) (*entities.PriceQuote, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build oracle request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price oracle returned status %d", resp.StatusCode)
	}

	var body priceResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOracleResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}

	if !body.Price.IsPositive() {
		return nil, fmt.Errorf("price oracle returned non-positive price %s", body.Price.String())
	}

	quote := &entities.PriceQuote{
		Price:      body.Price,
		Source:     o.source,
		ObservedAt: o.now().UTC(),
	}
	if body.Source != "" {
		quote.Source = body.Source
	}
	if body.Timestamp != nil {
		quote.ObservedAt = body.Timestamp.UTC()
	}
	return quote, nil
}
