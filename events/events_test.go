package events

import (
	"testing"
	"time"

	"github.com/mezonai/zakat/transaction"
	"github.com/mezonai/zakat/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	eventBus := NewEventBus()

	id, eventChan := eventBus.Subscribe()
	assert.Equal(t, 1, eventBus.GetTotalSubscriptions())
	assert.True(t, eventBus.HasSubscriber(id))

	tx, err := transaction.NewGift("A1", "B1", decimal.NewFromInt(5), time.Now())
	require.NoError(t, err)
	eventBus.Publish(NewTransactionAdmitted(tx))

	select {
	case received := <-eventChan:
		assert.Equal(t, EventTransactionAdmitted, received.Type())
		assert.Equal(t, tx.Hash(), received.Key())
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
	}

	assert.True(t, eventBus.Unsubscribe(id))
	assert.Equal(t, 0, eventBus.GetTotalSubscriptions())
	assert.False(t, eventBus.Unsubscribe(id))

	_, open := <-eventChan
	assert.False(t, open, "channel should be closed after unsubscribe")
}

func TestEventBusFilter(t *testing.T) {
	eventBus := NewEventBus()
	_, blocksOnly := eventBus.Subscribe(EventBlockCommitted)

	eventBus.Publish(NewParticipantRegistered(types.NewNode("C9", decimal.NewFromInt(1), time.Now())))
	eventBus.Publish(NewBlockCommitted(3, "abc", "C9", nil))

	select {
	case ev := <-blocksOnly:
		require.Equal(t, EventBlockCommitted, ev.Type())
		committed, ok := ev.(*BlockCommitted)
		require.True(t, ok)
		assert.Equal(t, uint64(3), committed.Index)
		assert.Equal(t, "abc", committed.Key())
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
	}
	assert.Len(t, blocksOnly, 0)
}

func TestEventBusDropsWhenFull(t *testing.T) {
	eventBus := NewEventBus()
	_, ch := eventBus.Subscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		eventBus.Publish(NewBlockCommitted(uint64(i), "h", "M", nil))
	}
	assert.Len(t, ch, subscriberBuffer)
}
