package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"treasury/domain"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

const (
	codeInvalidRequest = "invalid_request"
	codeNotFound       = "not_found"
	codeInternal       = "internal_error"
)

// Retry-After hints in seconds
const (
	retryAfterLockTimeout = "1"
	retryAfterHalt        = "60"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warnf("Failed to encode response: %v", err)
	}
}

func writeBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:   message,
		Code:    codeInvalidRequest,
		Details: details,
	})
}

// validationDetails maps each failed field to the tag it failed on
func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fmt.Sprintf("validation failed on '%s' tag", fe.Tag())
	}
	return details
}

// statusForLedgerError maps a ledger rejection to its HTTP status and Retry-After hint
func statusForLedgerError(code domain.ErrorCode) (int, string) {
	switch code {
	case domain.CodeInvalidAmount:
		return http.StatusBadRequest, ""
	case domain.CodeInsufficientFunding, domain.CodeInsufficientReserve, domain.CodeMinimumBalanceBreach, domain.CodeDuplicateInflow:
		return http.StatusConflict, ""
	case domain.CodeVolatilityCapExceeded:
		return http.StatusUnprocessableEntity, ""
	case domain.CodeLockTimeout:
		return http.StatusServiceUnavailable, retryAfterLockTimeout
	case domain.CodeVolatilityHalt, domain.CodeOracleUnavailable:
		return http.StatusServiceUnavailable, retryAfterHalt
	default:
		return http.StatusInternalServerError, ""
	}
}

// writeError renders err. Ledger rejections keep their code and limits;
// anything else is logged and reported as an internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ledgerErr, ok := domain.AsLedgerError(err)
	if !ok {
		log.WithField("path", r.URL.Path).Errorf("Request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "internal error",
			Code:  codeInternal,
		})
		return
	}

	status, retryAfter := statusForLedgerError(ledgerErr.Code)
	if retryAfter != "" {
		w.Header().Set("Retry-After", retryAfter)
	}

	resp := errorResponse{
		Error: ledgerErr.Message,
		Code:  string(ledgerErr.Code),
		Tier:  string(ledgerErr.Tier),
	}
	if !ledgerErr.Requested.IsZero() || !ledgerErr.Allowed.IsZero() {
		requested, allowed := ledgerErr.Requested, ledgerErr.Allowed
		resp.Requested = &requested
		resp.Allowed = &allowed
	}
	if !ledgerErr.ChangePercent.IsZero() {
		change := ledgerErr.ChangePercent
		resp.ChangePercent = &change
	}
	writeJSON(w, status, resp)
}
