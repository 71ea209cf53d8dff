package services

import (
	"errors"
	"testing"

	"treasury/domain"
	"treasury/domain/entities"
	"treasury/domain/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanDistribution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		account       *entities.TreasuryAccount
		tokens        string
		price         string
		minimum       string
		wantErr       error
		wantCash      string
		wantRemaining string
	}{
		{
			name:          "fits",
			account:       createTestAccount("100.00", "0", "1000"),
			tokens:        "500",
			price:         "0.10",
			minimum:       "0",
			wantCash:      "50.00",
			wantRemaining: "50.00",
		},
		{
			name:          "drains exactly to the floor",
			account:       createTestAccount("100.00", "0", "1000"),
			tokens:        "500",
			price:         "0.10",
			minimum:       "50.00",
			wantCash:      "50.00",
			wantRemaining: "50.00",
		},
		{
			name:    "reserve checked before funding",
			account: createTestAccount("10.00", "0", "100"),
			tokens:  "1200",
			price:   "0.10",
			minimum: "0",
			wantErr: domain.ErrInsufficientReserve,
		},
		{
			name:    "funding short",
			account: createTestAccount("10.00", "0", "1000"),
			tokens:  "200",
			price:   "0.10",
			minimum: "0",
			wantErr: domain.ErrInsufficientFunding,
		},
		{
			name:    "one cent below floor",
			account: createTestAccount("100.00", "0", "1000"),
			tokens:  "500.1",
			price:   "0.10",
			minimum: "50.00",
			wantErr: domain.ErrMinimumBalanceBreach,
		},
		{
			name:    "zero price",
			account: createTestAccount("100.00", "0", "1000"),
			tokens:  "1",
			price:   "0",
			minimum: "0",
			wantErr: domain.ErrOracleUnavailable,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			plan, err := PlanDistribution(tt.account, d(tt.tokens), d(tt.price), d(tt.minimum))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, plan)
				return
			}
			require.NoError(t, err)
			assertDecimal(t, tt.wantCash, plan.CashValue)
			assertDecimal(t, tt.wantRemaining, plan.RemainingFunding)
			assertDecimal(t, tt.account.TotalDistributed.Add(plan.CashValue).String(), plan.NewTotalDistributed)
			assertDecimal(t, tt.account.TokenReserve.Sub(plan.TokenAmount).String(), plan.NewTokenReserve)
		})
	}
}

func TestCheckAssessment(t *testing.T) {
	t.Parallel()

	quote := &entities.PriceQuote{Price: d("0.10"), Source: "test"}

	tests := []struct {
		name       string
		assessment *interfaces.Assessment
		tokens     string
		wantErr    error
		wantReason string
	}{
		{name: "missing assessment", tokens: "1", wantErr: domain.ErrOracleUnavailable},
		{
			name:       "none tier never caps",
			assessment: &interfaces.Assessment{Tier: entities.RiskTierNone, MaxSafeTokens: d("10"), Quote: quote},
			tokens:     "1200",
		},
		{
			name:       "medium within cap",
			assessment: &interfaces.Assessment{Tier: entities.RiskTierMedium, MaxSafeTokens: d("750"), Quote: quote},
			tokens:     "750",
		},
		{
			name:       "high over cap",
			assessment: &interfaces.Assessment{Tier: entities.RiskTierHigh, MaxSafeTokens: d("500"), Quote: quote},
			tokens:     "500.00000001",
			wantErr:    domain.ErrVolatilityCapExceeded,
		},
		{
			name:       "degraded price halt",
			assessment: &interfaces.Assessment{Tier: entities.RiskTierExtreme, Reason: ReasonDegradedPrice, Quote: quote},
			tokens:     "1",
			wantErr:    domain.ErrVolatilityHalt,
			wantReason: "price feed degraded",
		},
		{
			name:       "oracle error",
			assessment: &interfaces.Assessment{Tier: entities.RiskTierExtreme, Err: errors.New("boom")},
			tokens:     "1",
			wantErr:    domain.ErrOracleUnavailable,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckAssessment(tt.assessment, d(tt.tokens))
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantReason != "" {
				assert.Contains(t, err.Error(), tt.wantReason)
			}
		})
	}
}

func TestNormalizeTokenAmount(t *testing.T) {
	t.Parallel()

	rounded, err := NormalizeTokenAmount(d("1.123456789"))
	require.NoError(t, err)
	assertDecimal(t, "1.12345679", rounded)

	_, err = NormalizeTokenAmount(d("0.000000001"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestTierCap(t *testing.T) {
	t.Parallel()

	assertDecimal(t, "1000", TierCap(entities.RiskTierNone, d("1000")))
	assertDecimal(t, "750", TierCap(entities.RiskTierMedium, d("1000")))
	assertDecimal(t, "500", TierCap(entities.RiskTierHigh, d("1000")))
	assertDecimal(t, "0", TierCap(entities.RiskTierExtreme, d("1000")))
}
