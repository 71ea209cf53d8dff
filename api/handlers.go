package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"treasury/domain/interfaces"

	"github.com/shopspring/decimal"
)

const maxRequestBody = 1 << 16

// decodeAndValidate reads a JSON body into dst and runs its validate tags
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error(), nil)
		return false
	}
	if err := s.validator.Struct(dst); err != nil {
		writeBadRequest(w, "request validation failed", validationDetails(err))
		return false
	}
	return true
}

func parseAmount(w http.ResponseWriter, field string, value json.Number) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(value.String())
	if err != nil {
		writeBadRequest(w, "invalid amount", map[string]string{field: err.Error()})
		return decimal.Zero, false
	}
	return amount, true
}

// Healthz reports process liveness
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.GetStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

func (s *Server) GetHealthCheck(w http.ResponseWriter, r *http.Request) {
	check, err := s.service.GetHealthCheck(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := healthResponse{
		Status:          string(check.Status),
		Recommendations: check.Recommendations,
		Tier:            string(check.Tier),
		RunwayDays:      check.RunwayDays,
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []string{}
	}
	if check.Stats != nil {
		resp.Stats = toStatsResponse(check.Stats)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.GetReport(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(report))
}

func (s *Server) GetVolatility(w http.ResponseWriter, r *http.Request) {
	report, tier := s.service.CheckVolatility(r.Context())
	writeJSON(w, http.StatusOK, volatilityResponse{
		ChangePercent: report.ChangePercent,
		Samples:       report.Samples,
		WindowSeconds: int64(report.Window.Seconds()),
		Tier:          string(tier),
	})
}

// CanDistribute answers whether ?tokens= could be paid out right now without writing anything
func (s *Server) CanDistribute(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("tokens")
	if raw == "" {
		writeBadRequest(w, "tokens query parameter is required", nil)
		return
	}
	tokens, ok := parseAmount(w, "tokens", json.Number(raw))
	if !ok {
		return
	}

	check, err := s.service.CanDistribute(r.Context(), tokens)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, canDistributeResponse{
		Allowed:       check.Allowed,
		Reason:        check.Reason,
		Code:          check.Code,
		Tier:          string(check.Tier),
		MaxSafeTokens: check.MaxSafeTokens,
		CashValue:     check.CashValue,
	})
}

func (s *Server) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer", nil)
			return
		}
		limit = parsed
	}

	txs, err := s.service.ListTransactions(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		resp = append(resp, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": resp})
}

func (s *Server) Distribute(w http.ResponseWriter, r *http.Request) {
	var req distributionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	tokens, ok := parseAmount(w, "token_amount", req.TokenAmount)
	if !ok {
		return
	}

	result, err := s.service.Distribute(r.Context(), interfaces.DistributionRequest{
		TokenAmount:       tokens,
		Description:       req.Description,
		RelatedEntityType: req.RelatedEntityType,
		RelatedEntityID:   req.RelatedEntityID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDistributionResponse(result))
}

func (s *Server) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, "amount_usd", req.AmountUSD)
	if !ok {
		return
	}

	deposit, err := s.service.Deposit(r.Context(), interfaces.DepositRequest{
		DepositedBy:   req.DepositedBy,
		AmountUSD:     amount,
		Method:        req.Method,
		Notes:         req.Notes,
		ExternalTxRef: req.ExternalTxRef,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDepositResponse(deposit))
}

func (s *Server) AddToReserve(w http.ResponseWriter, r *http.Request) {
	var req reserveCreditRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	tokens, ok := parseAmount(w, "token_amount", req.TokenAmount)
	if !ok {
		return
	}
	cashValue, ok := parseAmount(w, "cash_value", req.CashValue)
	if !ok {
		return
	}

	tx, err := s.service.AddToReserve(r.Context(), interfaces.ReserveCredit{
		TokenAmount: tokens,
		CashValue:   cashValue,
		Description: req.Description,
		ExternalRef: req.ExternalRef,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}
