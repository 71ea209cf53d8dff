package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"treasury/database"
	"treasury/domain/entities"

	"github.com/jackc/pgx/v5"
)

const priceSampleColumns = `id, price::text, source, degraded, sampled_at`

// PriceSampleRepository implements price history data access
type PriceSampleRepository struct {
	q Queryable
}

// NewPriceSampleRepository creates a new price sample repository
func NewPriceSampleRepository(db *database.DB) *PriceSampleRepository {
	return &PriceSampleRepository{q: db.Pool}
}

// NewPriceSampleRepositoryScoped creates a new price sample repository bound to a transaction
func NewPriceSampleRepositoryScoped(tx Queryable) *PriceSampleRepository {
	return &PriceSampleRepository{q: tx}
}

func scanPriceSample(row pgx.Row) (*entities.PriceSample, error) {
	var sample entities.PriceSample
	var price string
	if err := row.Scan(&sample.ID, &price, &sample.Source, &sample.Degraded, &sample.SampledAt); err != nil {
		return nil, err
	}
	var err error
	if sample.Price, err = parseNumeric("price", price); err != nil {
		return nil, err
	}
	return &sample, nil
}

func (r *PriceSampleRepository) queryOne(ctx context.Context, query string, args ...any) (*entities.PriceSample, error) {
	sample, err := scanPriceSample(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price sample: %w", err)
	}
	return sample, nil
}

// Record inserts a sample; a zero SampledAt is stamped by the database
func (r *PriceSampleRepository) Record(ctx context.Context, sample *entities.PriceSample) error {
	query := `
		INSERT INTO price_samples (price, source, degraded, sampled_at)
		VALUES ($1, $2, $3, COALESCE($4, NOW()))
		RETURNING id, sampled_at
	`

	var sampledAt *time.Time
	if !sample.SampledAt.IsZero() {
		sampledAt = &sample.SampledAt
	}

	err := r.q.QueryRow(ctx, query,
		entities.RoundTokens(sample.Price).String(),
		sample.Source,
		sample.Degraded,
		sampledAt,
	).Scan(&sample.ID, &sample.SampledAt)
	if err != nil {
		return fmt.Errorf("failed to record price sample: %w", err)
	}
	return nil
}

// GetLatest returns the newest sample
func (r *PriceSampleRepository) GetLatest(ctx context.Context) (*entities.PriceSample, error) {
	return r.queryOne(ctx, `SELECT `+priceSampleColumns+` FROM price_samples ORDER BY sampled_at DESC, id DESC LIMIT 1`)
}

// GetClosestBefore returns the newest sample taken at or before t
func (r *PriceSampleRepository) GetClosestBefore(ctx context.Context, t time.Time) (*entities.PriceSample, error) {
	return r.queryOne(ctx, `
		SELECT `+priceSampleColumns+`
		FROM price_samples
		WHERE sampled_at <= $1
		ORDER BY sampled_at DESC, id DESC
		LIMIT 1
	`, t)
}

// GetEarliest returns the oldest retained sample
func (r *PriceSampleRepository) GetEarliest(ctx context.Context) (*entities.PriceSample, error) {
	return r.queryOne(ctx, `SELECT `+priceSampleColumns+` FROM price_samples ORDER BY sampled_at ASC, id ASC LIMIT 1`)
}

// ListSince returns samples taken at or after since, oldest first
func (r *PriceSampleRepository) ListSince(ctx context.Context, since time.Time) ([]*entities.PriceSample, error) {
	query := `
		SELECT ` + priceSampleColumns + `
		FROM price_samples
		WHERE sampled_at >= $1
		ORDER BY sampled_at ASC, id ASC
	`

	rows, err := r.q.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list price samples: %w", err)
	}
	defer rows.Close()

	var samples []*entities.PriceSample
	for rows.Next() {
		sample, err := scanPriceSample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price sample: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price samples: %w", err)
	}
	return samples, nil
}

// DeleteBefore prunes samples older than t and returns how many were removed
func (r *PriceSampleRepository) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM price_samples WHERE sampled_at < $1`, t)
	if err != nil {
		return 0, fmt.Errorf("failed to prune price samples: %w", err)
	}
	return tag.RowsAffected(), nil
}
