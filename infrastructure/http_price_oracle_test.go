package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOracleServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestHTTPOracle(url string) *HTTPPriceOracle {
	oracle := NewHTTPPriceOracle(HTTPPriceOracleConfig{
		URL:     url,
		Token:   "secret",
		Timeout: time.Second,
		Source:  "feed",
	})
	oracle.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	return oracle
}

func TestHTTPPriceOracle_GetCurrentPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantPrice  string
		wantSource string
		wantAt     time.Time
	}{
		{
			name:       "string price",
			body:       `{"price":"0.1234"}`,
			wantPrice:  "0.1234",
			wantSource: "feed",
			wantAt:     time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name:       "numeric price with upstream source and timestamp",
			body:       `{"price":0.5,"source":"dex-twap","timestamp":"2025-03-10T08:59:30Z"}`,
			wantPrice:  "0.5",
			wantSource: "dex-twap",
			wantAt:     time.Date(2025, 3, 10, 8, 59, 30, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newOracleServer(t, http.StatusOK, tt.body)
			quote, err := newTestHTTPOracle(server.URL).GetCurrentPrice(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.wantPrice, quote.Price.String())
			assert.Equal(t, tt.wantSource, quote.Source)
			assert.False(t, quote.Degraded)
			assert.True(t, tt.wantAt.Equal(quote.ObservedAt))
		})
	}
}

func TestHTTPPriceOracle_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "upstream error", status: http.StatusBadGateway, body: `{}`, wantErr: "status 502"},
		{name: "zero price", status: http.StatusOK, body: `{"price":"0"}`, wantErr: "non-positive price"},
		{name: "negative price", status: http.StatusOK, body: `{"price":"-1"}`, wantErr: "non-positive price"},
		{name: "malformed body", status: http.StatusOK, body: `not json`, wantErr: "failed to decode"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newOracleServer(t, tt.status, tt.body)
			quote, err := newTestHTTPOracle(server.URL).GetCurrentPrice(context.Background())
			assert.Nil(t, quote)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestHTTPPriceOracle_CancelledContext(t *testing.T) {
	t.Parallel()

	server := newOracleServer(t, http.StatusOK, `{"price":"1"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestHTTPOracle(server.URL).GetCurrentPrice(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPPriceOracle_RateLimited(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"price":"1"}`))
	}))
	t.Cleanup(server.Close)

	oracle := NewHTTPPriceOracle(HTTPPriceOracleConfig{URL: server.URL, Timeout: time.Second, RateLimit: 0.1})

	_, err := oracle.GetCurrentPrice(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	quote, err := oracle.GetCurrentPrice(ctx)

	assert.Nil(t, quote)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), hits.Load())
}
