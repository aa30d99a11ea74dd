package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mezonai/zakat/events"
	"github.com/mezonai/zakat/ledger"
	"github.com/mezonai/zakat/transaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T, bus *events.EventBus) *ledger.Ledger {
	t.Helper()
	cfg := ledger.DefaultConfig("C001")
	cfg.EventBus = bus
	l, err := ledger.New(cfg)
	require.NoError(t, err)
	require.NoError(t, l.Register("C002", decimal.NewFromInt(200)))
	return l
}

func TestNewMiningServiceValidates(t *testing.T) {
	l := newLedger(t, nil)
	_, err := NewMiningService(l, "C001", 1, time.Second, 0)
	assert.Error(t, err)
	_, err = NewMiningService(l, "C404", 1, time.Second, time.Second)
	assert.Error(t, err)
	_, err = NewMiningService(nil, "C001", 1, time.Second, time.Second)
	assert.Error(t, err)
}

func TestMineOnce(t *testing.T) {
	l := newLedger(t, nil)
	s, err := NewMiningService(l, "C002", 1, 10*time.Second, time.Hour)
	require.NoError(t, err)

	_, mined, err := s.MineOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, mined, "empty queue is skipped")

	_, err = l.SubmitGift("C001", "C002", decimal.NewFromInt(5))
	require.NoError(t, err)
	idx, mined, err := s.MineOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, mined)
	assert.Equal(t, uint64(1), idx)
	assert.Equal(t, uint64(1), s.Mined())
	assert.Empty(t, l.Pending())
}

func TestMiningServiceLoop(t *testing.T) {
	l := newLedger(t, nil)
	s, err := NewMiningService(l, "C001", 1, 10*time.Second, 10*time.Millisecond)
	require.NoError(t, err)

	s.Start(context.Background())
	s.Start(context.Background())
	assert.True(t, s.Running())

	_, err = l.SubmitTransfer("C002", "C001", decimal.NewFromInt(20))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return l.Height() == 1 }, 5*time.Second, 10*time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())
	s.Stop()
	assert.NoError(t, l.Validate())
}

func TestHealthCheck(t *testing.T) {
	l := newLedger(t, nil)
	hs := NewHealthService(l, nil)

	resp, err := hs.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusServing, resp.Status)
	assert.Equal(t, l.Seed(), resp.Seed)
	assert.True(t, resp.ChainValid)
	assert.Equal(t, 3, resp.Participants)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = hs.Check(ctx)
	assert.Error(t, err)

	resp, err = NewHealthService(nil, nil).Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNotServing, resp.Status)
}

type memorySaver struct {
	mu    sync.Mutex
	snaps []ledger.Snapshot
}

func (m *memorySaver) Save(snap ledger.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *memorySaver) last() (ledger.Snapshot, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snaps) == 0 {
		return ledger.Snapshot{}, 0
	}
	return m.snaps[len(m.snaps)-1], len(m.snaps)
}

func TestPersistService(t *testing.T) {
	bus := events.NewEventBus()
	l := newLedger(t, bus)
	saver := &memorySaver{}
	p := NewPersistService(l, bus, saver)
	p.Start(context.Background())

	_, err := l.SubmitGift("C001", "C002", decimal.NewFromInt(5))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		snap, n := saver.last()
		return n > 0 && len(snap.Pending) == 1
	}, 5*time.Second, 10*time.Millisecond)

	_, err = l.Mine(context.Background(), "C001", 1, 10*time.Second)
	require.NoError(t, err)
	require.NoError(t, p.Stop())

	snap, n := saver.last()
	assert.Len(t, snap.Blocks, 2)
	assert.Empty(t, snap.Pending)
	assert.Equal(t, uint64(n), p.Saves())
	assert.Equal(t, 0, bus.GetTotalSubscriptions())
	assert.NoError(t, p.Stop())
}

func TestTransactionTracker(t *testing.T) {
	bus := events.NewEventBus()
	l := newLedger(t, bus)
	committed, err := l.SubmitGift("C001", "C002", decimal.NewFromInt(3))
	require.NoError(t, err)
	_, err = l.Mine(context.Background(), "C001", 1, 10*time.Second)
	require.NoError(t, err)

	tracker := NewTransactionTracker(bus)
	tracker.Start(context.Background(), l)
	defer tracker.Stop()

	status := tracker.Status(committed.Hash())
	assert.Equal(t, TxIncluded, status.State)
	assert.Equal(t, uint64(1), status.BlockIndex)

	txs, err := l.SubmitTransfer("C002", "C001", decimal.NewFromInt(10))
	require.NoError(t, err)
	hash := txs[0].Hash()
	require.Eventually(t, func() bool { return tracker.Status(hash).State == TxPending }, 5*time.Second, 10*time.Millisecond)

	_, err = l.Mine(context.Background(), "C002", 1, 10*time.Second)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return tracker.Status(hash).State == TxIncluded }, 5*time.Second, 10*time.Millisecond)
	final := tracker.Status(hash)
	assert.Equal(t, uint64(2), final.BlockIndex)
	require.NotNil(t, final.Tx)
	assert.Equal(t, txs[0].Amount.String(), final.Tx.Amount.String())

	pending, included := tracker.Counts()
	assert.Equal(t, int64(0), pending)
	assert.Equal(t, int64(5), included) // genesis, gift, reward, transfer, reward
	assert.Equal(t, TxUnknown, tracker.Status("nope").State)
}

func TestPersistServiceSavesDeactivation(t *testing.T) {
	bus := events.NewEventBus()
	l := newLedger(t, bus)
	saver := &memorySaver{}
	p := NewPersistService(l, bus, saver)
	p.Start(context.Background())
	defer func() { require.NoError(t, p.Stop()) }()

	require.NoError(t, l.Deactivate("C002"))
	require.Eventually(t, func() bool {
		snap, n := saver.last()
		if n == 0 {
			return false
		}
		for _, node := range snap.Nodes {
			if node.ID == "C002" {
				return !node.Active
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
}

func TestTrackerFollowsLargeBlocks(t *testing.T) {
	bus := events.NewEventBus()
	l := newLedger(t, bus)
	tracker := NewTransactionTracker(bus)
	tracker.Start(context.Background(), l)
	defer tracker.Stop()

	// far more transactions than a subscriber buffer holds
	var gifts []*transaction.Transaction
	for i := 0; i < 300; i++ {
		tx, err := l.SubmitGift("C001", "C002", decimal.RequireFromString("0.1"))
		require.NoError(t, err)
		gifts = append(gifts, tx)
	}
	idx, err := l.Mine(context.Background(), "C002", 1, 30*time.Second)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, included := tracker.Counts()
		return included == 302 // genesis, 300 gifts, reward
	}, 5*time.Second, 10*time.Millisecond)
	for _, g := range gifts {
		status := tracker.Status(g.Hash())
		require.Equal(t, TxIncluded, status.State)
		assert.Equal(t, idx, status.BlockIndex)
	}
	pending, _ := tracker.Counts()
	assert.Equal(t, int64(0), pending)
}

func TestTrackerCatchesUpAfterMissedBlocks(t *testing.T) {
	bus := events.NewEventBus()
	l := newLedger(t, bus)
	tracker := NewTransactionTracker(bus)
	tracker.Start(context.Background(), l)
	tracker.Stop()

	// committed while nobody listens
	first, err := l.SubmitGift("C001", "C002", decimal.NewFromInt(1))
	require.NoError(t, err)
	_, err = l.Mine(context.Background(), "C001", 1, 10*time.Second)
	require.NoError(t, err)
	second, err := l.SubmitGift("C001", "C002", decimal.NewFromInt(2))
	require.NoError(t, err)
	_, err = l.Mine(context.Background(), "C001", 1, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, TxUnknown, tracker.Status(first.Hash()).State)

	tip := l.Blocks()[2]
	tracker.onBlockCommitted(events.NewBlockCommitted(tip.Index, tip.Hash, "C001", tip.Transactions))

	assert.Equal(t, uint64(1), tracker.Status(first.Hash()).BlockIndex)
	assert.Equal(t, uint64(2), tracker.Status(second.Hash()).BlockIndex)
	_, included := tracker.Counts()
	assert.Equal(t, int64(5), included)
}
