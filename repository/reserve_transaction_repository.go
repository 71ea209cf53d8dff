package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"treasury/database"
	"treasury/domain"
	"treasury/domain/entities"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const reserveTransactionColumns = `
	id, treasury_id, transaction_type, token_amount::text, cash_value::text,
	balance_after::text, token_reserve_after::text, description,
	related_entity_type, related_entity_id, external_ref, created_at
`

// ReserveTransactionRepository implements access to the append-only treasury log
type ReserveTransactionRepository struct {
	q Queryable
}

// NewReserveTransactionRepository creates a new reserve transaction repository
func NewReserveTransactionRepository(db *database.DB) *ReserveTransactionRepository {
	return &ReserveTransactionRepository{q: db.Pool}
}

// NewReserveTransactionRepositoryScoped creates a new reserve transaction repository bound to a transaction
func NewReserveTransactionRepositoryScoped(tx Queryable) *ReserveTransactionRepository {
	return &ReserveTransactionRepository{q: tx}
}

func scanReserveTransaction(row pgx.Row) (*entities.ReserveTransaction, error) {
	var rt entities.ReserveTransaction
	var tokenAmount, cashValue, balanceAfter, reserveAfter string
	err := row.Scan(
		&rt.ID,
		&rt.TreasuryID,
		&rt.TransactionType,
		&tokenAmount,
		&cashValue,
		&balanceAfter,
		&reserveAfter,
		&rt.Description,
		&rt.RelatedEntityType,
		&rt.RelatedEntityID,
		&rt.ExternalRef,
		&rt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rt.TokenAmount, err = parseNumeric("token_amount", tokenAmount); err != nil {
		return nil, err
	}
	if rt.CashValue, err = parseNumeric("cash_value", cashValue); err != nil {
		return nil, err
	}
	if rt.BalanceAfter, err = parseNumeric("balance_after", balanceAfter); err != nil {
		return nil, err
	}
	if rt.TokenReserveAfter, err = parseNumeric("token_reserve_after", reserveAfter); err != nil {
		return nil, err
	}
	return &rt, nil
}

func collectReserveTransactions(rows pgx.Rows) ([]*entities.ReserveTransaction, error) {
	defer rows.Close()

	var txs []*entities.ReserveTransaction
	for rows.Next() {
		rt, err := scanReserveTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reserve transaction: %w", err)
		}
		txs = append(txs, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reserve transactions: %w", err)
	}
	return txs, nil
}

// Record appends an entry to the log and fills in its ID and timestamp
func (r *ReserveTransactionRepository) Record(ctx context.Context, rt *entities.ReserveTransaction) error {
	if !rt.TransactionType.IsValid() {
		return fmt.Errorf("invalid transaction type %q", rt.TransactionType)
	}

	query := `
		INSERT INTO reserve_transactions (
			treasury_id, transaction_type, token_amount, cash_value, balance_after,
			token_reserve_after, description, related_entity_type, related_entity_id, external_ref
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		rt.TreasuryID,
		rt.TransactionType,
		entities.RoundTokens(rt.TokenAmount).String(),
		entities.RoundUSD(rt.CashValue).String(),
		entities.RoundUSD(rt.BalanceAfter).String(),
		entities.RoundTokens(rt.TokenReserveAfter).String(),
		rt.Description,
		rt.RelatedEntityType,
		rt.RelatedEntityID,
		rt.ExternalRef,
	).Scan(&rt.ID, &rt.CreatedAt)
	if err != nil {
		if rt.ExternalRef != nil && isUniqueViolation(err, "reserve_transactions_external_ref_idx") {
			return domain.NewDuplicateInflowError(*rt.ExternalRef)
		}
		return fmt.Errorf("failed to record reserve transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a log entry by its ID
func (r *ReserveTransactionRepository) GetByID(ctx context.Context, id int64) (*entities.ReserveTransaction, error) {
	query := `SELECT ` + reserveTransactionColumns + ` FROM reserve_transactions WHERE id = $1`

	rt, err := scanReserveTransaction(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reserve transaction %d: %w", id, err)
	}
	return rt, nil
}

// ExistsByExternalRef reports whether an inflow reference was already credited
func (r *ReserveTransactionRepository) ExistsByExternalRef(ctx context.Context, externalRef string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reserve_transactions WHERE external_ref = $1)`,
		externalRef,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check external reference: %w", err)
	}
	return exists, nil
}

// ListRecent returns the newest entries first
func (r *ReserveTransactionRepository) ListRecent(ctx context.Context, treasuryID int64, limit int) ([]*entities.ReserveTransaction, error) {
	query := `
		SELECT ` + reserveTransactionColumns + `
		FROM reserve_transactions
		WHERE treasury_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, treasuryID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reserve transactions: %w", err)
	}
	return collectReserveTransactions(rows)
}

// ListSince returns entries of a type created at or after since, oldest first
func (r *ReserveTransactionRepository) ListSince(ctx context.Context, treasuryID int64, txType entities.TransactionType, since time.Time) ([]*entities.ReserveTransaction, error) {
	query := `
		SELECT ` + reserveTransactionColumns + `
		FROM reserve_transactions
		WHERE treasury_id = $1 AND transaction_type = $2 AND created_at >= $3
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.q.Query(ctx, query, treasuryID, txType, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list reserve transactions since %s: %w", since.Format(time.RFC3339), err)
	}
	return collectReserveTransactions(rows)
}

// SumCashValueSince totals the cash value of entries of a type created at or after since
func (r *ReserveTransactionRepository) SumCashValueSince(ctx context.Context, treasuryID int64, txType entities.TransactionType, since time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(cash_value), 0)::text
		FROM reserve_transactions
		WHERE treasury_id = $1 AND transaction_type = $2 AND created_at >= $3
	`

	var total string
	if err := r.q.QueryRow(ctx, query, treasuryID, txType, since).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum reserve transactions: %w", err)
	}
	return parseNumeric("cash_value", total)
}
