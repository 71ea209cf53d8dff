package api

import (
	"encoding/json"
	"time"

	"treasury/domain/entities"
	"treasury/domain/interfaces"

	"github.com/shopspring/decimal"
)

// Amounts accept JSON numbers or numeric strings and are parsed as decimals,
// never as floats.

type distributionRequest struct {
	TokenAmount       json.Number `json:"token_amount" validate:"required,numeric"`
	Description       string      `json:"description" validate:"max=500"`
	RelatedEntityType *string     `json:"related_entity_type,omitempty" validate:"omitempty,min=1,max=64"`
	RelatedEntityID   *string     `json:"related_entity_id,omitempty" validate:"omitempty,min=1,max=128"`
}

type depositRequest struct {
	DepositedBy   string      `json:"deposited_by" validate:"required,max=128"`
	AmountUSD     json.Number `json:"amount_usd" validate:"required,numeric"`
	Method        string      `json:"method" validate:"required,max=32"`
	Notes         *string     `json:"notes,omitempty" validate:"omitempty,max=1000"`
	ExternalTxRef *string     `json:"external_tx_ref,omitempty" validate:"omitempty,min=1,max=128"`
}

type reserveCreditRequest struct {
	TokenAmount json.Number `json:"token_amount" validate:"required,numeric"`
	CashValue   json.Number `json:"cash_value" validate:"required,numeric"`
	Description string      `json:"description" validate:"max=500"`
	ExternalRef *string     `json:"external_ref,omitempty" validate:"omitempty,min=1,max=128"`
}

type errorResponse struct {
	Error         string            `json:"error"`
	Code          string            `json:"code"`
	Details       map[string]string `json:"details,omitempty"`
	Requested     *decimal.Decimal  `json:"requested,omitempty"`
	Allowed       *decimal.Decimal  `json:"allowed,omitempty"`
	Tier          string            `json:"tier,omitempty"`
	ChangePercent *decimal.Decimal  `json:"change_percent,omitempty"`
}

type distributionResponse struct {
	TokensDistributed decimal.Decimal `json:"tokens_distributed"`
	CashValue         decimal.Decimal `json:"cash_value"`
	RemainingBalance  decimal.Decimal `json:"remaining_balance"`
	TokenReserve      decimal.Decimal `json:"token_reserve"`
	TransactionID     int64           `json:"transaction_id"`
	Tier              string          `json:"tier"`
	Price             decimal.Decimal `json:"price"`
	PriceSource       string          `json:"price_source"`
}

func toDistributionResponse(r *interfaces.DistributionResult) distributionResponse {
	return distributionResponse{
		TokensDistributed: r.TokensDistributed,
		CashValue:         r.CashValue,
		RemainingBalance:  r.RemainingBalance,
		TokenReserve:      r.TokenReserve,
		TransactionID:     r.TransactionID,
		Tier:              string(r.Tier),
		Price:             r.Price,
		PriceSource:       r.PriceSource,
	}
}

type depositResponse struct {
	ID                   int64           `json:"id"`
	DepositedBy          string          `json:"deposited_by"`
	AmountUSD            decimal.Decimal `json:"amount_usd"`
	TokensPurchased      decimal.Decimal `json:"tokens_purchased"`
	TokenPrice           decimal.Decimal `json:"token_price"`
	PriceSource          string          `json:"price_source"`
	Method               string          `json:"method"`
	Notes                *string         `json:"notes,omitempty"`
	ExternalTxRef        *string         `json:"external_tx_ref,omitempty"`
	Status               string          `json:"status"`
	ReserveTransactionID int64           `json:"reserve_transaction_id"`
	CreatedAt            time.Time       `json:"created_at"`
}

func toDepositResponse(d *entities.FundingDeposit) depositResponse {
	return depositResponse{
		ID:                   d.ID,
		DepositedBy:          d.DepositedBy,
		AmountUSD:            d.AmountUSD,
		TokensPurchased:      d.TokensPurchased,
		TokenPrice:           d.TokenPrice,
		PriceSource:          d.PriceSource,
		Method:               d.Method,
		Notes:                d.Notes,
		ExternalTxRef:        d.ExternalTxRef,
		Status:               string(d.Status),
		ReserveTransactionID: d.ReserveTransactionID,
		CreatedAt:            d.CreatedAt,
	}
}

type transactionResponse struct {
	ID                int64           `json:"id"`
	Type              string          `json:"type"`
	TokenAmount       decimal.Decimal `json:"token_amount"`
	CashValue         decimal.Decimal `json:"cash_value"`
	BalanceAfter      decimal.Decimal `json:"balance_after"`
	TokenReserveAfter decimal.Decimal `json:"token_reserve_after"`
	Description       string          `json:"description"`
	RelatedEntityType *string         `json:"related_entity_type,omitempty"`
	RelatedEntityID   *string         `json:"related_entity_id,omitempty"`
	ExternalRef       *string         `json:"external_ref,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

func toTransactionResponse(t *entities.ReserveTransaction) transactionResponse {
	return transactionResponse{
		ID:                t.ID,
		Type:              string(t.TransactionType),
		TokenAmount:       t.TokenAmount,
		CashValue:         t.CashValue,
		BalanceAfter:      t.BalanceAfter,
		TokenReserveAfter: t.TokenReserveAfter,
		Description:       t.Description,
		RelatedEntityType: t.RelatedEntityType,
		RelatedEntityID:   t.RelatedEntityID,
		ExternalRef:       t.ExternalRef,
		CreatedAt:         t.CreatedAt,
	}
}

type statsResponse struct {
	TotalFunding     decimal.Decimal `json:"total_funding"`
	TotalDistributed decimal.Decimal `json:"total_distributed"`
	AvailableFunding decimal.Decimal `json:"available_funding"`
	TokenReserve     decimal.Decimal `json:"token_reserve"`
	ReserveValueUSD  decimal.Decimal `json:"reserve_value_usd"`
	TokenPrice       decimal.Decimal `json:"token_price"`
	PriceSource      string          `json:"price_source"`
	PriceDegraded    bool            `json:"price_degraded"`
	LiabilityRatio   decimal.Decimal `json:"liability_ratio"`
	MinimumBalance   decimal.Decimal `json:"minimum_balance"`
	IsHealthy        bool            `json:"is_healthy"`
}

func toStatsResponse(s *interfaces.Stats) statsResponse {
	return statsResponse{
		TotalFunding:     s.TotalFunding,
		TotalDistributed: s.TotalDistributed,
		AvailableFunding: s.AvailableFunding,
		TokenReserve:     s.TokenReserve,
		ReserveValueUSD:  s.ReserveValueUSD,
		TokenPrice:       s.TokenPrice,
		PriceSource:      s.PriceSource,
		PriceDegraded:    s.PriceDegraded,
		LiabilityRatio:   s.LiabilityRatio,
		MinimumBalance:   s.MinimumBalance,
		IsHealthy:        s.IsHealthy,
	}
}

type healthResponse struct {
	Status          string           `json:"status"`
	Recommendations []string         `json:"recommendations"`
	Tier            string           `json:"tier"`
	RunwayDays      *decimal.Decimal `json:"runway_days"`
	Stats           statsResponse    `json:"stats"`
}

type canDistributeResponse struct {
	Allowed       bool            `json:"allowed"`
	Reason        string          `json:"reason,omitempty"`
	Code          string          `json:"code,omitempty"`
	Tier          string          `json:"tier,omitempty"`
	MaxSafeTokens decimal.Decimal `json:"max_safe_tokens"`
	CashValue     decimal.Decimal `json:"cash_value"`
}

type volatilityResponse struct {
	ChangePercent decimal.Decimal `json:"change_percent"`
	Samples       int             `json:"samples"`
	WindowSeconds int64           `json:"window_seconds"`
	Tier          string          `json:"tier"`
}

type runwayResponse struct {
	AvailableFunding decimal.Decimal  `json:"available_funding"`
	DailyRate        decimal.Decimal  `json:"daily_rate"`
	LookbackDays     int              `json:"lookback_days"`
	RunwayDays       *decimal.Decimal `json:"runway_days"`
	DepletionDate    *time.Time       `json:"depletion_date"`
}

type healthScoreResponse struct {
	Score              decimal.Decimal `json:"score"`
	Grade              string          `json:"grade"`
	FundingAdequacy    decimal.Decimal `json:"funding_adequacy"`
	VolatilityScore    decimal.Decimal `json:"volatility"`
	LiquidityScore     decimal.Decimal `json:"liquidity"`
	ConcentrationScore decimal.Decimal `json:"concentration"`
}

type performanceDeltaResponse struct {
	Available     bool            `json:"available"`
	StartPrice    decimal.Decimal `json:"start_price"`
	EndPrice      decimal.Decimal `json:"end_price"`
	ValueChange   decimal.Decimal `json:"value_change"`
	PercentChange decimal.Decimal `json:"percent_change"`
}

type performanceResponse struct {
	TokenReserve decimal.Decimal          `json:"token_reserve"`
	CurrentPrice decimal.Decimal          `json:"current_price"`
	CurrentValue decimal.Decimal          `json:"current_value"`
	Day          performanceDeltaResponse `json:"day"`
	Week         performanceDeltaResponse `json:"week"`
	AllTime      performanceDeltaResponse `json:"all_time"`
}

type reportResponse struct {
	Runway      runwayResponse      `json:"runway"`
	HealthScore healthScoreResponse `json:"health_score"`
	Performance performanceResponse `json:"performance"`
}

func toDeltaResponse(d interfaces.PerformanceDelta) performanceDeltaResponse {
	return performanceDeltaResponse{
		Available:     d.Available,
		StartPrice:    d.StartPrice,
		EndPrice:      d.EndPrice,
		ValueChange:   d.ValueChange,
		PercentChange: d.PercentChange,
	}
}

func toReportResponse(r *interfaces.TreasuryReport) reportResponse {
	var resp reportResponse
	if r.Runway != nil {
		resp.Runway = runwayResponse{
			AvailableFunding: r.Runway.AvailableFunding,
			DailyRate:        r.Runway.DailyRate,
			LookbackDays:     r.Runway.LookbackDays,
			RunwayDays:       r.Runway.RunwayDays,
			DepletionDate:    r.Runway.DepletionDate,
		}
	}
	if r.HealthScore != nil {
		resp.HealthScore = healthScoreResponse{
			Score:              r.HealthScore.Score,
			Grade:              r.HealthScore.Grade,
			FundingAdequacy:    r.HealthScore.FundingAdequacy,
			VolatilityScore:    r.HealthScore.VolatilityScore,
			LiquidityScore:     r.HealthScore.LiquidityScore,
			ConcentrationScore: r.HealthScore.ConcentrationScore,
		}
	}
	if r.Performance != nil {
		resp.Performance = performanceResponse{
			TokenReserve: r.Performance.TokenReserve,
			CurrentPrice: r.Performance.CurrentPrice,
			CurrentValue: r.Performance.CurrentValue,
			Day:          toDeltaResponse(r.Performance.Day),
			Week:         toDeltaResponse(r.Performance.Week),
			AllTime:      toDeltaResponse(r.Performance.AllTime),
		}
	}
	return resp
}
