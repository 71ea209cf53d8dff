package repository

import (
	"context"
	"errors"
	"fmt"

	"treasury/database"
	"treasury/domain/entities"

	"github.com/jackc/pgx/v5"
)

// Key for the advisory lock serializing creation of the active treasury
const treasuryCreateLockKey int64 = 0x7472656173

const treasuryColumns = `id, total_funding::text, total_distributed::text, token_reserve::text, is_active, created_at, updated_at`

// TreasuryRepository implements treasury account data access
type TreasuryRepository struct {
	q Queryable
}

// NewTreasuryRepository creates a new treasury repository
func NewTreasuryRepository(db *database.DB) *TreasuryRepository {
	return &TreasuryRepository{q: db.Pool}
}

// NewTreasuryRepositoryScoped creates a new treasury repository bound to a transaction
func NewTreasuryRepositoryScoped(tx Queryable) *TreasuryRepository {
	return &TreasuryRepository{q: tx}
}

func scanTreasuryAccount(row pgx.Row) (*entities.TreasuryAccount, error) {
	var account entities.TreasuryAccount
	var funding, distributed, reserve string
	err := row.Scan(
		&account.ID,
		&funding,
		&distributed,
		&reserve,
		&account.IsActive,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if account.TotalFunding, err = parseNumeric("total_funding", funding); err != nil {
		return nil, err
	}
	if account.TotalDistributed, err = parseNumeric("total_distributed", distributed); err != nil {
		return nil, err
	}
	if account.TokenReserve, err = parseNumeric("token_reserve", reserve); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetActive returns the active treasury without locking it, or nil if none exists yet
func (r *TreasuryRepository) GetActive(ctx context.Context) (*entities.TreasuryAccount, error) {
	query := `SELECT ` + treasuryColumns + ` FROM treasury_accounts WHERE is_active`

	account, err := scanTreasuryAccount(r.q.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active treasury: %w", err)
	}
	return account, nil
}

// GetOrCreateActiveForUpdate locks the active treasury row for the rest of the
// transaction, creating it on first use
func (r *TreasuryRepository) GetOrCreateActiveForUpdate(ctx context.Context) (*entities.TreasuryAccount, error) {
	account, err := r.lockActive(ctx)
	if err != nil || account != nil {
		return account, err
	}

	// No row to lock yet; concurrent creators queue on the advisory lock instead
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, treasuryCreateLockKey); err != nil {
		return nil, fmt.Errorf("failed to acquire treasury creation lock: %w", mapLockError(err))
	}

	account, err = r.lockActive(ctx)
	if err != nil || account != nil {
		return account, err
	}

	query := `INSERT INTO treasury_accounts DEFAULT VALUES RETURNING ` + treasuryColumns
	account, err = scanTreasuryAccount(r.q.QueryRow(ctx, query))
	if err != nil {
		return nil, fmt.Errorf("failed to create treasury: %w", err)
	}
	return account, nil
}

func (r *TreasuryRepository) lockActive(ctx context.Context) (*entities.TreasuryAccount, error) {
	query := `SELECT ` + treasuryColumns + ` FROM treasury_accounts WHERE is_active FOR UPDATE`

	account, err := scanTreasuryAccount(r.q.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock treasury: %w", mapLockError(err))
	}
	return account, nil
}

// UpdateBalances persists the balance columns of a locked account
func (r *TreasuryRepository) UpdateBalances(ctx context.Context, account *entities.TreasuryAccount) error {
	query := `
		UPDATE treasury_accounts
		SET total_funding = $2, total_distributed = $3, token_reserve = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		account.ID,
		entities.RoundUSD(account.TotalFunding).String(),
		entities.RoundUSD(account.TotalDistributed).String(),
		entities.RoundTokens(account.TokenReserve).String(),
	).Scan(&account.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("treasury %d not found", account.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update treasury balances: %w", err)
	}
	return nil
}
