package ledger

import (
	"github.com/mezonai/zakat/block"
	"github.com/mezonai/zakat/transaction"
	"github.com/mezonai/zakat/types"
	"github.com/shopspring/decimal"
)

// HistoryEntry is a committed transaction with the block that holds it.
type HistoryEntry struct {
	BlockIndex  uint64                   `json:"block_index"`
	BlockHash   string                   `json:"block_hash"`
	Transaction *transaction.Transaction `json:"transaction"`
}

// Stats summarizes the ledger.
type Stats struct {
	Blocks        int             `json:"total_blocks"`
	Transactions  int             `json:"total_transactions"`
	Pending       int             `json:"pending_transactions"`
	LevyCollected decimal.Decimal `json:"total_zakat_collected"`
	Nodes         int             `json:"total_nodes"`
	ActiveNodes   int             `json:"active_nodes"`
	Valid         bool            `json:"chain_valid"`
}

// History returns every committed transaction in chain order.
func (l *Ledger) History() []HistoryEntry {
	return l.history(func(*transaction.Transaction) bool { return true })
}

// HistoryOf returns the committed transactions id sent or received.
func (l *Ledger) HistoryOf(id types.NodeID) []HistoryEntry {
	if norm, err := normalizeID(id); err == nil {
		id = norm
	}
	return l.history(func(tx *transaction.Transaction) bool {
		return tx.Sender == id || tx.Receiver == id
	})
}

func (l *Ledger) history(keep func(*transaction.Transaction) bool) []HistoryEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []HistoryEntry
	for _, b := range l.chain {
		for _, tx := range b.Transactions {
			if keep(tx) {
				out = append(out, HistoryEntry{BlockIndex: b.Index, BlockHash: b.Hash, Transaction: tx.Clone()})
			}
		}
	}
	return out
}

// Blocks returns deep copies of the committed blocks.
func (l *Ledger) Blocks() []*block.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*block.Block, len(l.chain))
	for i, b := range l.chain {
		out[i] = b.Clone()
	}
	return out
}

// Block returns a deep copy of the block at index.
func (l *Ledger) Block(index uint64) (*block.Block, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index >= uint64(len(l.chain)) {
		return nil, false
	}
	return l.chain[index].Clone(), true
}

func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	st := Stats{
		Blocks:        len(l.chain),
		Pending:       l.mempool.Len(),
		LevyCollected: decimal.Zero,
	}
	for _, b := range l.chain {
		st.Transactions += len(b.Transactions)
		st.LevyCollected = st.LevyCollected.Add(levyOf(b))
	}
	for _, n := range l.registry.Snapshot() {
		st.Nodes++
		if n.Active {
			st.ActiveNodes++
		}
	}
	l.mu.RUnlock()

	st.Valid = l.Validate() == nil
	return st
}

// levyOf sums the levy carried by the transactions of b.
func levyOf(b *block.Block) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range b.Transactions {
		total = total.Add(tx.Levy)
	}
	return total
}
