package mempool

import (
	"fmt"
	"sync"

	zerrors "github.com/mezonai/zakat/errors"
	"github.com/mezonai/zakat/logx"
	"github.com/mezonai/zakat/transaction"
)

// Mempool provides a thread-safe FIFO queue of admitted, not yet mined
// transactions. Order of admission is the order they will appear in a block.
type Mempool struct {
	mu      sync.Mutex
	txs     []*transaction.Transaction
	maxTxs  int
	removed uint64 // transactions dropped from the head so far
}

// NewMempool creates a new, empty mempool. maxTxs <= 0 means unbounded.
func NewMempool(maxTxs int) *Mempool {
	return &Mempool{
		txs:    make([]*transaction.Transaction, 0),
		maxTxs: maxTxs,
	}
}

// Add pushes transactions as one unit: either all are queued or none.
func (m *Mempool) Add(txs ...*transaction.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxTxs > 0 && len(m.txs)+len(txs) > m.maxTxs {
		return zerrors.Errorf(zerrors.ErrCodeMempoolFull, "%d queued, limit %d", len(m.txs), m.maxTxs)
	}
	m.txs = append(m.txs, txs...)
	logx.Debug("MEMPOOL", fmt.Sprintf("Queued %d transaction(s), size=%d", len(txs), len(m.txs)))
	return nil
}

// Len returns the number of transactions in the mempool.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txs)
}

// Head returns how many transactions have left the queue so far.
func (m *Mempool) Head() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removed
}

// GetBatch returns up to max transactions from the head without removing
// them, together with the head position they were taken at. max <= 0 takes
// everything.
func (m *Mempool) GetBatch(max int) ([]*transaction.Transaction, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max <= 0 || len(m.txs) < max {
		max = len(m.txs)
	}
	batch := make([]*transaction.Transaction, max)
	copy(batch, m.txs[:max])
	return batch, m.removed
}

// RemoveBatch removes the first n transactions, provided the head is still at
// position head (as returned by GetBatch). It reports whether it removed them.
func (m *Mempool) RemoveBatch(head uint64, n int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if head != m.removed || n > len(m.txs) {
		return false
	}
	m.txs = m.txs[n:]
	m.removed += uint64(n)
	return true
}

// All returns copies of every queued transaction in admission order.
func (m *Mempool) All() []*transaction.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*transaction.Transaction, len(m.txs))
	for i, tx := range m.txs {
		out[i] = tx.Clone()
	}
	return out
}
