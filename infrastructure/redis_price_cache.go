package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"treasury/domain/entities"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

const lastGoodPriceKey = "treasury:price:last_good"

type cachedPrice struct {
	Price      decimal.Decimal `json:"price"`
	Source     string          `json:"source"`
	ObservedAt time.Time       `json:"observed_at"`
}

// RedisPriceCache keeps the last good live quote in Redis so a feed outage
// can be bridged for up to the TTL
type RedisPriceCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisPriceCache creates a new Redis backed price cache
func NewRedisPriceCache(client redis.Cmdable, ttl time.Duration) *RedisPriceCache {
	return &RedisPriceCache{
		client: client,
		ttl:    ttl,
	}
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func encodeCachedPrice(quote *entities.PriceQuote) ([]byte, error) {
	return json.Marshal(cachedPrice{
		Price:      quote.Price,
		Source:     quote.Source,
		ObservedAt: quote.ObservedAt.UTC(),
	})
}

// Get returns the cached quote, or nil when nothing is cached
func (c *RedisPriceCache) Get(ctx context.Context) (*entities.PriceQuote, error) {
	raw, err := c.client.Get(ctx, lastGoodPriceKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached price: %w", err)
	}

	var cached cachedPrice
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("failed to decode cached price: %w", err)
	}

	return &entities.PriceQuote{
		Price:      cached.Price,
		Source:     cached.Source,
		ObservedAt: cached.ObservedAt,
	}, nil
}

// Set stores a live quote as the last good price
func (c *RedisPriceCache) Set(ctx context.Context, quote *entities.PriceQuote) error {
	data, err := encodeCachedPrice(quote)
	if err != nil {
		return fmt.Errorf("failed to encode price: %w", err)
	}
	if err := c.client.Set(ctx, lastGoodPriceKey, string(data), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache price: %w", err)
	}
	return nil
}
