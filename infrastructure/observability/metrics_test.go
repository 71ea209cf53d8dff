package observability

import (
	"context"
	"testing"
	"time"

	"treasury/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsProvider_DisabledIsNoop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		enabled  bool
		exporter string
	}{
		{name: "otel disabled", enabled: false, exporter: "console"},
		{name: "exporter none", enabled: true, exporter: "none"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.NewTestConfig()
			cfg.OTelEnabled = tt.enabled
			cfg.OTelExporterType = tt.exporter

			mp := NewMetricsProvider(cfg)
			require.NoError(t, mp.Initialize(context.Background()))
			assert.False(t, mp.isEnabled())

			assert.NotPanics(t, func() {
				mp.RecordLedgerOperation("distribute", OutcomeSuccess, time.Millisecond)
				mp.RecordTokensDistributed(10)
				mp.RecordOracleFetch("oracle", OutcomeSuccess)
				mp.RecordDatabaseTransaction(OutcomeCommit, time.Millisecond)
			})
			assert.NoError(t, mp.Shutdown(context.Background()))
		})
	}
}

func TestMetricsProvider_NilIsNoop(t *testing.T) {
	t.Parallel()

	var mp *MetricsProvider
	assert.NotPanics(t, func() {
		mp.RecordNATSMessagePublished("distribution_completed")
		mp.RecordNATSMessageReceived("treasury.inflows.detected")
	})
}

func TestMetricsProvider_ConsoleExporter(t *testing.T) {
	t.Parallel()

	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	cfg.OTelExporterType = "console"
	cfg.OTelExportIntervalMillis = 60000

	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.Initialize(context.Background()))
	assert.True(t, mp.isEnabled())

	mp.RecordLedgerOperation("deposit", OutcomeSuccess, 5*time.Millisecond)
	mp.RecordTokensDistributed(1.5)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestMetricsProvider_UnknownExporter(t *testing.T) {
	t.Parallel()

	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	cfg.OTelExporterType = "carrier-pigeon"

	err := NewMetricsProvider(cfg).Initialize(context.Background())
	assert.ErrorContains(t, err, "unknown exporter type")
}
