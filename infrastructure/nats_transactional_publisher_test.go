package infrastructure

import (
	"context"
	"errors"
	"testing"

	"treasury/domain/events"
	"treasury/domain/testhelpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func distributionEvent(id int64) events.DistributionCompletedEvent {
	return events.DistributionCompletedEvent{
		TransactionID:    id,
		TokenAmount:      decimal.NewFromInt(500),
		CashValue:        decimal.NewFromInt(50),
		RemainingBalance: decimal.NewFromInt(50),
		RiskTier:         "none",
	}
}

func TestNATSTransactionalPublisher_FlushPublishesInOrder(t *testing.T) {
	t.Parallel()

	realPublisher := new(testhelpers.MockEventPublisher)
	first, second := distributionEvent(1), distributionEvent(2)

	var published []int64
	realPublisher.On("Publish", first).Run(func(args mock.Arguments) {
		published = append(published, 1)
	}).Return(nil).Once()
	realPublisher.On("Publish", second).Run(func(args mock.Arguments) {
		published = append(published, 2)
	}).Return(nil).Once()

	publisher := NewNATSTransactionalPublisher(realPublisher)
	require.NoError(t, publisher.Publish(first))
	require.NoError(t, publisher.Publish(second))

	// Nothing leaves the process before flush
	realPublisher.AssertNotCalled(t, "Publish", first)
	assert.Equal(t, 2, publisher.Pending())

	require.NoError(t, publisher.Flush(context.Background()))
	assert.Equal(t, []int64{1, 2}, published)
	assert.Zero(t, publisher.Pending())
	realPublisher.AssertExpectations(t)
}

func TestNATSTransactionalPublisher_FlushContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	realPublisher := new(testhelpers.MockEventPublisher)
	first, second := distributionEvent(1), distributionEvent(2)
	realPublisher.On("Publish", first).Return(errors.New("nats down")).Once()
	realPublisher.On("Publish", second).Return(nil).Once()

	publisher := NewNATSTransactionalPublisher(realPublisher)
	require.NoError(t, publisher.Publish(first))
	require.NoError(t, publisher.Publish(second))

	assert.NoError(t, publisher.Flush(context.Background()))
	assert.Zero(t, publisher.Pending())
	realPublisher.AssertExpectations(t)
}

func TestNATSTransactionalPublisher_Discard(t *testing.T) {
	t.Parallel()

	realPublisher := new(testhelpers.MockEventPublisher)
	publisher := NewNATSTransactionalPublisher(realPublisher)

	require.NoError(t, publisher.Publish(distributionEvent(1)))
	publisher.Discard()
	require.NoError(t, publisher.Flush(context.Background()))

	realPublisher.AssertNotCalled(t, "Publish", distributionEvent(1))
	assert.Zero(t, publisher.Pending())
}

func TestNATSTransactionalPublisher_FlushWithCancelledContext(t *testing.T) {
	t.Parallel()

	realPublisher := new(testhelpers.MockEventPublisher)
	publisher := NewNATSTransactionalPublisher(realPublisher)
	require.NoError(t, publisher.Publish(distributionEvent(1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, publisher.Flush(ctx))
	realPublisher.AssertNotCalled(t, "Publish", distributionEvent(1))
	assert.Zero(t, publisher.Pending())
}
