package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mezonai/zakat/events"
	"github.com/mezonai/zakat/exception"
	"github.com/mezonai/zakat/ledger"
	"github.com/mezonai/zakat/logx"
	"github.com/mezonai/zakat/monitoring"
	"github.com/mezonai/zakat/transaction"
)

type TxState string

const (
	TxUnknown  TxState = "unknown"
	TxPending  TxState = "pending"
	TxIncluded TxState = "included"
)

// TxStatus is where a transaction stands. Block fields are set once it is
// included.
type TxStatus struct {
	Hash       string                   `json:"hash"`
	State      TxState                  `json:"state"`
	BlockIndex uint64                   `json:"block_index,omitempty"`
	BlockHash  string                   `json:"block_hash,omitempty"`
	Tx         *transaction.Transaction `json:"transaction,omitempty"`
}

// TransactionTracker answers "where is my transaction" by following ledger
// events. A status only moves forward: an included transaction never goes
// back to pending. Inclusion is learned per block, and a gap in block
// indexes is filled from the chain itself, so a dropped event delays a
// status but never loses it.
type TransactionTracker struct {
	statuses sync.Map // hash -> *TxStatus

	pendingCount  int64
	includedCount int64

	ledger    *ledger.Ledger
	lastIndex uint64 // highest block tracked; owned by the tracking goroutine

	bus    *events.EventBus
	subID  events.SubscriberID
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTransactionTracker(bus *events.EventBus) *TransactionTracker {
	return &TransactionTracker{bus: bus}
}

// Start subscribes to the bus and then seeds the tracker from ld, so nothing
// that happens in between is missed.
func (t *TransactionTracker) Start(ctx context.Context, ld *ledger.Ledger) {
	id, ch := t.bus.Subscribe(events.EventTransactionAdmitted, events.EventBlockCommitted)
	t.subID = id
	t.ledger = ld
	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	done := t.done

	for _, b := range ld.Blocks() {
		t.trackBlock(b.Index, b.Hash, b.Transactions)
	}
	for _, tx := range ld.Pending() {
		t.TrackPending(tx)
	}

	exception.SafeGo("TransactionTracker", func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case *events.TransactionAdmitted:
					t.TrackPending(e.Tx)
				case *events.BlockCommitted:
					t.onBlockCommitted(e)
				}
			}
		}
	})
}

func (t *TransactionTracker) Stop() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	if t.bus.HasSubscriber(t.subID) {
		t.bus.Unsubscribe(t.subID)
	}
	<-t.done
	t.cancel = nil
}

func (t *TransactionTracker) onBlockCommitted(e *events.BlockCommitted) {
	switch {
	case e.Index <= t.lastIndex:
		// seeded from the chain already
	case e.Index == t.lastIndex+1:
		t.trackBlock(e.Index, e.Key(), e.Transactions)
	default:
		logx.Warn("TRACKER", fmt.Sprintf("Missed blocks %d..%d, catching up from the chain", t.lastIndex+1, e.Index-1))
		t.catchUp()
	}
}

// catchUp tracks every committed block above lastIndex.
func (t *TransactionTracker) catchUp() {
	for _, b := range t.ledger.Blocks() {
		if b.Index > t.lastIndex {
			t.trackBlock(b.Index, b.Hash, b.Transactions)
		}
	}
}

func (t *TransactionTracker) trackBlock(index uint64, hash string, txs []*transaction.Transaction) {
	for _, tx := range txs {
		t.TrackIncluded(tx.Hash(), index, hash, tx)
	}
	if index > t.lastIndex {
		t.lastIndex = index
	}
}

// TrackPending records an admitted transaction.
func (t *TransactionTracker) TrackPending(tx *transaction.Transaction) {
	hash := tx.Hash()
	_, loaded := t.statuses.LoadOrStore(hash, &TxStatus{Hash: hash, State: TxPending, Tx: tx})
	if !loaded {
		atomic.AddInt64(&t.pendingCount, 1)
		t.report()
	}
}

// TrackIncluded records that hash was committed in a block. tx may be nil
// when the transaction was already tracked as pending. Track calls come from
// one goroutine at a time: Start seeds before the event loop runs.
func (t *TransactionTracker) TrackIncluded(hash string, index uint64, blockHash string, tx *transaction.Transaction) {
	status := &TxStatus{Hash: hash, State: TxIncluded, BlockIndex: index, BlockHash: blockHash, Tx: tx}
	if v, ok := t.statuses.Load(hash); ok {
		old := v.(*TxStatus)
		if old.State == TxIncluded {
			return
		}
		if status.Tx == nil {
			status.Tx = old.Tx
		}
		atomic.AddInt64(&t.pendingCount, -1)
	}
	t.statuses.Store(hash, status)
	atomic.AddInt64(&t.includedCount, 1)
	t.report()
	logx.Debug("TRACKER", fmt.Sprintf("Transaction %s included in block %d", hash, index))
}

// Status returns the state of hash; TxUnknown when it was never seen.
func (t *TransactionTracker) Status(hash string) TxStatus {
	v, ok := t.statuses.Load(hash)
	if !ok {
		return TxStatus{Hash: hash, State: TxUnknown}
	}
	return *v.(*TxStatus)
}

func (t *TransactionTracker) Counts() (pending, included int64) {
	return atomic.LoadInt64(&t.pendingCount), atomic.LoadInt64(&t.includedCount)
}

func (t *TransactionTracker) report() {
	monitoring.SetTrackedTx(atomic.LoadInt64(&t.pendingCount), string(TxPending))
	monitoring.SetTrackedTx(atomic.LoadInt64(&t.includedCount), string(TxIncluded))
}
