package domain

import (
	"errors"
	"fmt"

	"treasury/domain/entities"

	"github.com/shopspring/decimal"
)

// ErrorCode identifies a ledger failure class. Codes are stable and safe to expose to callers.
type ErrorCode string

const (
	CodeInsufficientFunding   ErrorCode = "insufficient_funding"
	CodeInsufficientReserve   ErrorCode = "insufficient_reserve"
	CodeMinimumBalanceBreach  ErrorCode = "minimum_balance_breach"
	CodeVolatilityHalt        ErrorCode = "volatility_halt"
	CodeVolatilityCapExceeded ErrorCode = "volatility_cap_exceeded"
	CodeOracleUnavailable     ErrorCode = "oracle_unavailable"
	CodeLockTimeout           ErrorCode = "lock_timeout"
	CodeInvalidAmount         ErrorCode = "invalid_amount"
	CodeDuplicateInflow       ErrorCode = "duplicate_inflow"
)

// LedgerError is the typed result of a rejected ledger operation.
// A LedgerError always means no balance or log write was committed.
type LedgerError struct {
	Code          ErrorCode
	Message       string
	Requested     decimal.Decimal
	Allowed       decimal.Decimal
	Tier          entities.RiskTier
	ChangePercent decimal.Decimal
	Err           error
}

func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Is matches ledger errors by code. An unavailable oracle also matches
// ErrVolatilityHalt since it halts distributions the same way.
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return t.Code == CodeVolatilityHalt && e.Code == CodeOracleUnavailable
}

// Sentinels for errors.Is checks
var (
	ErrInsufficientFunding   = &LedgerError{Code: CodeInsufficientFunding, Message: "insufficient funding"}
	ErrInsufficientReserve   = &LedgerError{Code: CodeInsufficientReserve, Message: "insufficient token reserve"}
	ErrMinimumBalanceBreach  = &LedgerError{Code: CodeMinimumBalanceBreach, Message: "minimum balance would be breached"}
	ErrVolatilityHalt        = &LedgerError{Code: CodeVolatilityHalt, Message: "distribution halted, extreme volatility"}
	ErrVolatilityCapExceeded = &LedgerError{Code: CodeVolatilityCapExceeded, Message: "distribution exceeds volatility cap"}
	ErrOracleUnavailable     = &LedgerError{Code: CodeOracleUnavailable, Message: "price oracle unavailable"}
	ErrLockTimeout           = &LedgerError{Code: CodeLockTimeout, Message: "ledger busy, retry later"}
	ErrInvalidAmount         = &LedgerError{Code: CodeInvalidAmount, Message: "invalid amount"}
	ErrDuplicateInflow       = &LedgerError{Code: CodeDuplicateInflow, Message: "inflow already credited"}
)

// NewInsufficientFundingError reports a distribution worth more than the available funding
func NewInsufficientFundingError(cashValue, available decimal.Decimal) *LedgerError {
	return &LedgerError{
		Code:      CodeInsufficientFunding,
		Message:   fmt.Sprintf("insufficient funding: need %s USD, available %s USD", cashValue.StringFixed(entities.USDPlaces), available.StringFixed(entities.USDPlaces)),
		Requested: cashValue,
		Allowed:   available,
	}
}

// NewInsufficientReserveError reports a distribution larger than the token reserve
func NewInsufficientReserveError(tokens, reserve decimal.Decimal) *LedgerError {
	return &LedgerError{
		Code:      CodeInsufficientReserve,
		Message:   fmt.Sprintf("insufficient token reserve: requested %s, reserve %s", tokens.String(), reserve.String()),
		Requested: tokens,
		Allowed:   reserve,
	}
}

// NewMinimumBalanceBreachError reports a distribution that would leave less than the floor
func NewMinimumBalanceBreachError(remaining, minimum decimal.Decimal) *LedgerError {
	return &LedgerError{
		Code:      CodeMinimumBalanceBreach,
		Message:   fmt.Sprintf("minimum balance breach: remaining %s USD below floor %s USD", remaining.StringFixed(entities.USDPlaces), minimum.StringFixed(entities.USDPlaces)),
		Requested: remaining,
		Allowed:   minimum,
	}
}

// NewVolatilityHaltError reports that distributions are suspended at the measured swing
func NewVolatilityHaltError(changePercent decimal.Decimal, reason string) *LedgerError {
	msg := fmt.Sprintf("distribution halted, extreme volatility (%s%% change)", changePercent.StringFixed(2))
	if reason != "" {
		msg = fmt.Sprintf("distribution halted, %s", reason)
	}
	return &LedgerError{
		Code:          CodeVolatilityHalt,
		Message:       msg,
		Tier:          entities.RiskTierExtreme,
		ChangePercent: changePercent,
	}
}

// NewVolatilityCapExceededError reports a request above the tier cap
func NewVolatilityCapExceededError(requested, allowed decimal.Decimal, tier entities.RiskTier, changePercent decimal.Decimal) *LedgerError {
	return &LedgerError{
		Code:          CodeVolatilityCapExceeded,
		Message:       fmt.Sprintf("distribution of %s tokens exceeds %s volatility cap of %s tokens", requested.String(), tier, allowed.String()),
		Requested:     requested,
		Allowed:       allowed,
		Tier:          tier,
		ChangePercent: changePercent,
	}
}

// NewOracleUnavailableError wraps the oracle failure that forced a halt
func NewOracleUnavailableError(cause error) *LedgerError {
	return &LedgerError{
		Code:    CodeOracleUnavailable,
		Message: "distribution halted, price oracle unavailable",
		Tier:    entities.RiskTierExtreme,
		Err:     cause,
	}
}

// NewLockTimeoutError wraps the database error raised when the treasury row lock was not acquired in time
func NewLockTimeoutError(cause error) *LedgerError {
	return &LedgerError{
		Code:    CodeLockTimeout,
		Message: "ledger busy, retry later",
		Err:     cause,
	}
}

// NewInvalidAmountError reports a malformed amount
func NewInvalidAmountError(message string) *LedgerError {
	return &LedgerError{
		Code:    CodeInvalidAmount,
		Message: message,
	}
}

// NewDuplicateInflowError reports an external reference that was already credited
func NewDuplicateInflowError(externalRef string) *LedgerError {
	return &LedgerError{
		Code:    CodeDuplicateInflow,
		Message: fmt.Sprintf("inflow %s already credited", externalRef),
	}
}

// AsLedgerError extracts the ledger error from err's chain
func AsLedgerError(err error) (*LedgerError, bool) {
	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return ledgerErr, true
	}
	return nil, false
}

// IsRetryable reports whether the caller may retry the same request unchanged
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}
