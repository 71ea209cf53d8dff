package repository

import (
	"context"
	"errors"
	"fmt"

	"treasury/database"
	"treasury/domain/entities"

	"github.com/jackc/pgx/v5"
)

const fundingDepositColumns = `
	id, treasury_id, deposited_by, amount_usd::text, tokens_purchased::text, token_price::text,
	price_source, method, notes, external_tx_ref, status, reserve_transaction_id, created_at
`

// FundingDepositRepository implements funding deposit data access
type FundingDepositRepository struct {
	q Queryable
}

// NewFundingDepositRepository creates a new funding deposit repository
func NewFundingDepositRepository(db *database.DB) *FundingDepositRepository {
	return &FundingDepositRepository{q: db.Pool}
}

// NewFundingDepositRepositoryScoped creates a new funding deposit repository bound to a transaction
func NewFundingDepositRepositoryScoped(tx Queryable) *FundingDepositRepository {
	return &FundingDepositRepository{q: tx}
}

func scanFundingDeposit(row pgx.Row) (*entities.FundingDeposit, error) {
	var deposit entities.FundingDeposit
	var amount, tokens, price string
	err := row.Scan(
		&deposit.ID,
		&deposit.TreasuryID,
		&deposit.DepositedBy,
		&amount,
		&tokens,
		&price,
		&deposit.PriceSource,
		&deposit.Method,
		&deposit.Notes,
		&deposit.ExternalTxRef,
		&deposit.Status,
		&deposit.ReserveTransactionID,
		&deposit.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if deposit.AmountUSD, err = parseNumeric("amount_usd", amount); err != nil {
		return nil, err
	}
	if deposit.TokensPurchased, err = parseNumeric("tokens_purchased", tokens); err != nil {
		return nil, err
	}
	if deposit.TokenPrice, err = parseNumeric("token_price", price); err != nil {
		return nil, err
	}
	return &deposit, nil
}

// Create inserts a deposit and fills in its ID and timestamp
func (r *FundingDepositRepository) Create(ctx context.Context, deposit *entities.FundingDeposit) error {
	query := `
		INSERT INTO funding_deposits (
			treasury_id, deposited_by, amount_usd, tokens_purchased, token_price,
			price_source, method, notes, external_tx_ref, status, reserve_transaction_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		deposit.TreasuryID,
		deposit.DepositedBy,
		entities.RoundUSD(deposit.AmountUSD).String(),
		entities.RoundTokens(deposit.TokensPurchased).String(),
		entities.RoundTokens(deposit.TokenPrice).String(),
		deposit.PriceSource,
		deposit.Method,
		deposit.Notes,
		deposit.ExternalTxRef,
		deposit.Status,
		deposit.ReserveTransactionID,
	).Scan(&deposit.ID, &deposit.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create funding deposit: %w", err)
	}
	return nil
}

// GetByID retrieves a deposit by its ID
func (r *FundingDepositRepository) GetByID(ctx context.Context, id int64) (*entities.FundingDeposit, error) {
	query := `SELECT ` + fundingDepositColumns + ` FROM funding_deposits WHERE id = $1`

	deposit, err := scanFundingDeposit(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get funding deposit %d: %w", id, err)
	}
	return deposit, nil
}

// GetByExternalTxRef retrieves a deposit by its external payment reference
func (r *FundingDepositRepository) GetByExternalTxRef(ctx context.Context, externalTxRef string) (*entities.FundingDeposit, error) {
	query := `SELECT ` + fundingDepositColumns + ` FROM funding_deposits WHERE external_tx_ref = $1 LIMIT 1`

	deposit, err := scanFundingDeposit(r.q.QueryRow(ctx, query, externalTxRef))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get funding deposit by reference: %w", err)
	}
	return deposit, nil
}
