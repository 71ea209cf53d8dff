package repository

import (
	"errors"
	"fmt"

	"treasury/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
)

func pgErrorCode(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isUniqueViolation(err error, constraint string) bool {
	code, name := pgErrorCode(err)
	return code == pgUniqueViolation && (constraint == "" || name == constraint)
}

// mapLockError turns an exceeded lock_timeout into the retryable domain error
func mapLockError(err error) error {
	if code, _ := pgErrorCode(err); code == pgLockNotAvailable {
		return domain.NewLockTimeoutError(err)
	}
	return err
}

// parseNumeric parses a NUMERIC column selected as text
func parseNumeric(column, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", column, raw, err)
	}
	return d, nil
}
