package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"treasury/domain/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	subject string
	data    []byte
}

type fakeMessagePublisher struct {
	messages []publishedMessage
	err      error
}

func (f *fakeMessagePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, publishedMessage{subject: subject, data: data})
	return nil
}

func TestNATSEventPublisher_PublishWrapsEventInEnvelope(t *testing.T) {
	t.Parallel()

	client := &fakeMessagePublisher{}
	publisher := NewNATSEventPublisher(client, NewEventSubjectMapper())
	fixed := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	publisher.now = func() time.Time { return fixed }

	event := distributionEvent(42)
	require.NoError(t, publisher.Publish(event))
	require.Len(t, client.messages, 1)

	msg := client.messages[0]
	assert.Equal(t, SubjectDistributionCompleted, msg.subject)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(msg.data, &envelope))
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, string(events.EventTypeDistributionCompleted), envelope.EventType)
	assert.Equal(t, "treasury", envelope.SourceService)
	assert.True(t, fixed.Equal(envelope.Timestamp))

	var payload events.DistributionCompletedEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, int64(42), payload.TransactionID)
	assert.Equal(t, "500", payload.TokenAmount.String())
}

func TestNATSEventPublisher_LocalHandlers(t *testing.T) {
	t.Parallel()

	client := &fakeMessagePublisher{}
	publisher := NewNATSEventPublisher(client, NewEventSubjectMapper())

	var received []events.Event
	publisher.RegisterLocalHandler(events.EventTypeDistributionCompleted, func(ctx context.Context, event events.Event) error {
		received = append(received, event)
		return errors.New("handler failed")
	})

	require.NoError(t, publisher.Publish(distributionEvent(1)))
	assert.Len(t, received, 1)
	// A failing local handler does not stop the NATS publish
	assert.Len(t, client.messages, 1)
}

func TestNATSEventPublisher_PublishErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		clientErr error
		wantErr   bool
	}{
		{
			name:      "no stream bound to subject is ignored",
			clientErr: errors.New("failed to publish message to subject x: nats: no response from stream"),
			wantErr:   false,
		},
		{
			name:      "connection failure is returned",
			clientErr: errors.New("not connected to NATS JetStream"),
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			publisher := NewNATSEventPublisher(&fakeMessagePublisher{err: tt.clientErr}, NewEventSubjectMapper())
			err := publisher.Publish(distributionEvent(1))
			if tt.wantErr {
				assert.ErrorContains(t, err, "failed to publish event to NATS")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
