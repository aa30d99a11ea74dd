package ledger

import (
	"context"
	"testing"
	"time"

	zerrors "github.com/mezonai/zakat/errors"
	"github.com/mezonai/zakat/events"
	"github.com/mezonai/zakat/transaction"
	"github.com/mezonai/zakat/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	c001 types.NodeID = "C001"
	c002 types.NodeID = "C002"
	fund types.NodeID = "Zakat_Fund"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger(t *testing.T, opts ...func(*Config)) *Ledger {
	t.Helper()
	cfg := DefaultConfig(c001)
	for _, opt := range opts {
		opt(&cfg)
	}
	l, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, l.Register(c002, dec("200")))
	return l
}

func requireBalance(t *testing.T, l *Ledger, id types.NodeID, want string) {
	t.Helper()
	got, err := l.Balance(id)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec(want)), "%s holds %s, want %s", id, got, want)
}

func mine(t *testing.T, l *Ledger, miner types.NodeID) uint64 {
	t.Helper()
	idx, err := l.Mine(context.Background(), miner, 2, 10*time.Second)
	require.NoError(t, err)
	return idx
}

func TestNewLedger(t *testing.T) {
	l := newTestLedger(t)

	requireBalance(t, l, c001, "200")
	requireBalance(t, l, c002, "200")
	requireBalance(t, l, fund, "0")
	assert.Equal(t, uint64(0), l.Height())
	assert.NotEmpty(t, l.Seed())
	assert.NoError(t, l.Validate())

	history := l.History()
	require.Len(t, history, 1)
	assert.Equal(t, transaction.KindGenesis, history[0].Transaction.Kind)
	assert.Equal(t, types.GenesisSender, history[0].Transaction.Sender)
}

func TestNewLedgerRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig(c001)
	cfg.Fund = c001
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig("Network")
	_, err = New(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig(c001)
	cfg.MiningReward = decimal.Zero
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestTransferScenario(t *testing.T) {
	l := newTestLedger(t)

	txs, err := l.SubmitTransfer(c001, c002, dec("100"))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Levy.Equal(dec("2.5")))

	pending, err := l.PendingBalance(c001)
	require.NoError(t, err)
	assert.True(t, pending.Equal(dec("97.5")))
	// nothing moves before mining
	requireBalance(t, l, c001, "200")

	idx := mine(t, l, c002)
	assert.Equal(t, uint64(1), idx)

	requireBalance(t, l, c001, "97.5")
	requireBalance(t, l, c002, "310")
	requireBalance(t, l, fund, "2.5")
	assert.Empty(t, l.Pending())
	assert.NoError(t, l.Validate())
}

func TestLevyScenario(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.SubmitTransfer(c001, c002, dec("100"))
	require.NoError(t, err)
	mine(t, l, c002)

	tx, err := l.SubmitLevy(c001, "")
	require.NoError(t, err)
	assert.Equal(t, transaction.KindLevy, tx.Kind)
	assert.Equal(t, fund, tx.Receiver)
	assert.True(t, tx.Amount.IsZero())
	assert.True(t, tx.Levy.Equal(dec("2.4375")), "levy %s", tx.Levy)

	mine(t, l, c002)
	requireBalance(t, l, c001, "95.0625")
	requireBalance(t, l, fund, "4.9375")

	node, err := l.Node(c001)
	require.NoError(t, err)
	assert.True(t, node.LevyPaid.Equal(dec("4.9375")))
	fundNode, err := l.Node(fund)
	require.NoError(t, err)
	assert.True(t, fundNode.LevyReceived.Equal(dec("4.9375")))
}

func TestLevyIsAssessedOnPendingBalance(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.SubmitTransfer(c001, c002, dec("100"))
	require.NoError(t, err)

	// the transfer is still pending, yet the levy sees 97.5
	tx, err := l.SubmitLevy(c001, c002)
	require.NoError(t, err)
	assert.True(t, tx.Levy.Equal(dec("2.4375")))

	mine(t, l, c001)
	requireBalance(t, l, c001, "105.0625") // 97.5 - 2.4375 + 10
	requireBalance(t, l, c002, "302.4375")
	node, err := l.Node(c002)
	require.NoError(t, err)
	assert.True(t, node.LevyReceived.Equal(dec("2.4375")))
}

func TestTransferBeyondBalanceLeavesQueue(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.SubmitGift(c001, c002, dec("1"))
	require.NoError(t, err)
	before := len(l.Pending())

	// 196 * 1.025 = 200.9 > 199
	_, err = l.SubmitTransfer(c001, c002, dec("196"))
	assert.ErrorIs(t, err, zerrors.ErrInsufficientFunds)
	assert.Len(t, l.Pending(), before)
}

func TestPendingSpendIsSimulated(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.SubmitTransfer(c001, c002, dec("100")) // 102.5
	require.NoError(t, err)
	_, err = l.SubmitTransfer(c001, c002, dec("95")) // 97.375
	require.NoError(t, err)

	_, err = l.SubmitGift(c001, c002, dec("1"))
	assert.ErrorIs(t, err, zerrors.ErrInsufficientFunds)
	assert.Len(t, l.Pending(), 2)

	mine(t, l, c002)
	requireBalance(t, l, c001, "0.125")
	assert.NoError(t, l.Validate())
}

func TestSubmitErrors(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.SubmitTransfer(c001, c002, decimal.Zero)
	assert.ErrorIs(t, err, zerrors.ErrInvalidAmount)
	_, err = l.SubmitGift(c001, c002, dec("-1"))
	assert.ErrorIs(t, err, zerrors.ErrInvalidAmount)
	// amount is checked before the participants
	_, err = l.SubmitTransfer("X9", c002, decimal.Zero)
	assert.ErrorIs(t, err, zerrors.ErrInvalidAmount)

	_, err = l.SubmitTransfer("X9", c002, dec("1"))
	assert.ErrorIs(t, err, zerrors.ErrUnknownParticipant)
	_, err = l.SubmitGift(c001, "X9", dec("1"))
	assert.ErrorIs(t, err, zerrors.ErrUnknownParticipant)
	_, err = l.SubmitLevy("X9", "")
	assert.ErrorIs(t, err, zerrors.ErrUnknownParticipant)
	_, err = l.SubmitLevy(c001, "X9")
	assert.ErrorIs(t, err, zerrors.ErrUnknownParticipant)

	// the fund holds nothing, so there is nothing to levy
	_, err = l.SubmitLevy(fund, c001)
	assert.ErrorIs(t, err, zerrors.ErrInvalidAmount)

	_, err = l.SubmitGift("bad id", c002, dec("1"))
	assert.ErrorIs(t, err, zerrors.ErrInvalidIdentifier)
	_, err = l.SubmitTransfer(c001, "a|b", dec("1"))
	assert.ErrorIs(t, err, zerrors.ErrInvalidIdentifier)
	_, err = l.SubmitLevy(" ", "")
	assert.ErrorIs(t, err, zerrors.ErrInvalidIdentifier)

	assert.Empty(t, l.Pending())
}

func TestSubmitRejectsExtremeAmounts(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.SubmitGift(c001, c002, decimal.New(1, -50000000))
	assert.ErrorIs(t, err, zerrors.ErrInvalidAmount)
	_, err = l.SubmitTransfer(c001, c002, decimal.New(1, -19))
	assert.ErrorIs(t, err, zerrors.ErrInvalidAmount)
	_, err = l.SubmitTransfer(c001, c002, decimal.New(1, 40))
	assert.ErrorIs(t, err, zerrors.ErrInvalidAmount)
	assert.ErrorIs(t, l.Register("C003", decimal.New(1, -40)), zerrors.ErrInvalidAmount)
	assert.Empty(t, l.Pending())

	// the smallest accepted amount still flows through a transfer and its levy
	_, err = l.SubmitTransfer(c001, c002, decimal.New(1, -18))
	require.NoError(t, err)
	mine(t, l, c001)
	assert.NoError(t, l.Validate())
}

func TestIdentifiersAreNormalized(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.SubmitGift(" C001", "C002 ", dec("1"))
	require.NoError(t, err)
	pending := l.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, c001, pending[0].Sender)
	assert.Equal(t, c002, pending[0].Receiver)

	requireBalance(t, l, " C002 ", "200")
	got, err := l.PendingBalance(" C002")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("201")))
	node, err := l.Node("C002 ")
	require.NoError(t, err)
	assert.Equal(t, c002, node.ID)

	idx, err := l.Mine(context.Background(), " C002", 1, 10*time.Second)
	require.NoError(t, err)
	assert.Len(t, l.HistoryOf(" C002"), 2)
	b, ok := l.Block(idx)
	require.True(t, ok)
	assert.Equal(t, c002, b.Transactions[len(b.Transactions)-1].Receiver)
	_, ok = l.Block(idx + 1)
	assert.False(t, ok)
}

func TestRegister(t *testing.T) {
	l := newTestLedger(t)

	err := l.Register(c002, dec("5"))
	assert.ErrorIs(t, err, zerrors.ErrDuplicateParticipant)
	requireBalance(t, l, c002, "200")
	assert.Len(t, l.Nodes(), 3)

	assert.ErrorIs(t, l.Register("Genesis", dec("1")), zerrors.ErrInvalidIdentifier)
	assert.ErrorIs(t, l.Register("bad id", dec("1")), zerrors.ErrInvalidIdentifier)
	assert.ErrorIs(t, l.Register("C003", dec("-1")), zerrors.ErrInvalidAmount)
	assert.Len(t, l.Nodes(), 3)

	require.NoError(t, l.Register(" C003 ", dec("0")))
	requireBalance(t, l, "C003", "0")
}

func TestGiftLeavesLevyCounters(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.SubmitGift(c001, c002, dec("50"))
	require.NoError(t, err)
	mine(t, l, c001)

	requireBalance(t, l, c001, "160")
	requireBalance(t, l, c002, "250")
	for _, id := range []types.NodeID{c001, c002} {
		node, err := l.Node(id)
		require.NoError(t, err)
		assert.True(t, node.LevyPaid.IsZero())
		assert.True(t, node.LevyReceived.IsZero())
	}
}

func TestExplicitTransferLevy(t *testing.T) {
	l := newTestLedger(t, func(c *Config) { c.ExplicitTransferLevy = true })

	txs, err := l.SubmitTransfer(c001, c002, dec("100"))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, transaction.KindTransfer, txs[0].Kind)
	assert.True(t, txs[0].Levy.IsZero())
	assert.Equal(t, transaction.KindLevy, txs[1].Kind)
	assert.Equal(t, fund, txs[1].Receiver)
	assert.True(t, txs[1].Levy.Equal(dec("2.5")))

	mine(t, l, c002)
	requireBalance(t, l, c001, "97.5")
	requireBalance(t, l, c002, "310")
	requireBalance(t, l, fund, "2.5")
	assert.NoError(t, l.Validate())
}

func TestExplicitTransferLevyIsAtomic(t *testing.T) {
	l := newTestLedger(t, func(c *Config) { c.ExplicitTransferLevy = true })

	// the transfer alone fits, the levy does not
	_, err := l.SubmitTransfer(c001, c002, dec("199"))
	assert.ErrorIs(t, err, zerrors.ErrInsufficientFunds)
	assert.Empty(t, l.Pending())
}

func TestDeactivate(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Deactivate(c002))
	assert.ErrorIs(t, l.Deactivate("X9"), zerrors.ErrUnknownParticipant)

	_, err := l.SubmitGift(c002, c001, dec("1"))
	assert.ErrorIs(t, err, zerrors.ErrParticipantInactive)
	_, err = l.Mine(context.Background(), c002, 0, 0)
	assert.ErrorIs(t, err, zerrors.ErrParticipantInactive)

	// inactive participants still receive
	_, err = l.SubmitGift(c001, c002, dec("1"))
	require.NoError(t, err)
	mine(t, l, c001)
	requireBalance(t, l, c002, "201")

	node, err := l.Node(c002)
	require.NoError(t, err)
	assert.False(t, node.Active)
	assert.Equal(t, 2, l.Stats().ActiveNodes)
}

func TestMempoolLimit(t *testing.T) {
	l := newTestLedger(t, func(c *Config) { c.MaxPending = 1 })
	_, err := l.SubmitGift(c001, c002, dec("1"))
	require.NoError(t, err)
	_, err = l.SubmitGift(c001, c002, dec("1"))
	assert.ErrorIs(t, err, zerrors.ErrMempoolFull)
}

func TestHistoryAndStats(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.SubmitTransfer(c001, c002, dec("100"))
	require.NoError(t, err)
	mine(t, l, c002)
	_, err = l.SubmitLevy(c001, "")
	require.NoError(t, err)
	mine(t, l, c002)

	st := l.Stats()
	assert.Equal(t, 3, st.Blocks)
	assert.Equal(t, 5, st.Transactions) // genesis, transfer, reward, levy, reward
	assert.True(t, st.LevyCollected.Equal(dec("4.9375")))
	assert.Equal(t, 3, st.Nodes)
	assert.True(t, st.Valid)

	kinds := []transaction.Kind{}
	for _, e := range l.HistoryOf(c001) {
		kinds = append(kinds, e.Transaction.Kind)
	}
	assert.Equal(t, []transaction.Kind{transaction.KindGenesis, transaction.KindTransfer, transaction.KindLevy}, kinds)

	all := l.History()
	require.Len(t, all, 5)
	assert.Equal(t, uint64(2), all[4].BlockIndex)
	assert.Equal(t, l.Blocks()[2].Hash, all[4].BlockHash)
}

func TestEventsArePublished(t *testing.T) {
	bus := events.NewEventBus()
	l := newTestLedger(t, func(c *Config) { c.EventBus = bus })
	_, ch := bus.Subscribe(events.EventTransactionAdmitted, events.EventTransactionRejected,
		events.EventBlockCommitted, events.EventParticipantDeactivated)

	gift, err := l.SubmitGift(c001, c002, dec("1"))
	require.NoError(t, err)
	_, err = l.SubmitGift(c001, c002, dec("1000"))
	require.Error(t, err)
	idx := mine(t, l, c002)
	require.NoError(t, l.Deactivate(" "+c001+" "))

	got := []events.EventType{}
	for i := 0; i < 4; i++ {
		select {
		case ev := <-ch:
			got = append(got, ev.Type())
			switch e := ev.(type) {
			case *events.BlockCommitted:
				assert.Equal(t, idx, e.Index)
				assert.Equal(t, c002, e.Miner)
				require.Equal(t, 2, e.TxCount())
				assert.Equal(t, gift.Hash(), e.Transactions[0].Hash())
			case *events.ParticipantDeactivated:
				assert.Equal(t, c001, e.ID)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for events")
		}
	}
	assert.Equal(t, []events.EventType{
		events.EventTransactionAdmitted,
		events.EventTransactionRejected,
		events.EventBlockCommitted,
		events.EventParticipantDeactivated,
	}, got)
}
