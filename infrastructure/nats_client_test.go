package infrastructure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsumerName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		subject  string
		expected string
	}{
		{SubjectInflowsDetected, "treasury-treasury_inflows_detected"},
		{"treasury.*", "treasury-treasury_wildcard"},
		{"treasury.>", "treasury-treasury_all"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, consumerName(tt.subject))
	}
}

func TestNATSClient_NotConnected(t *testing.T) {
	t.Parallel()
	client := NewNATSClient("nats://localhost:4222")

	assert.False(t, client.IsConnected())
	assert.ErrorIs(t, client.Publish(context.Background(), SubjectDepositCompleted, []byte("{}")), errNotConnected)
	assert.ErrorIs(t, client.Subscribe(SubjectInflowsDetected, func([]byte) error { return nil }), errNotConnected)
	assert.ErrorIs(t, client.EnsureInflowStream(), errNotConnected)
	assert.NoError(t, client.Close())
}
