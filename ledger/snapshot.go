package ledger

import (
	"fmt"
	"time"

	"github.com/mezonai/zakat/block"
	"github.com/mezonai/zakat/common"
	"github.com/mezonai/zakat/logx"
	"github.com/mezonai/zakat/monitoring"
	"github.com/mezonai/zakat/transaction"
	"github.com/mezonai/zakat/types"
	"github.com/shopspring/decimal"
)

// Snapshot is a deep, point-in-time copy of the ledger. Nothing done to the
// ledger afterwards shows through it, and it is also the persisted layout.
type Snapshot struct {
	Seed          string                     `json:"seed"`
	Creator       types.NodeID               `json:"creator"`
	Fund          types.NodeID               `json:"fund"`
	CreatedAt     time.Time                  `json:"created_at"`
	MinDifficulty block.Difficulty           `json:"min_difficulty"`
	Blocks        []*block.Block             `json:"blocks"`
	Nodes         []*types.Node              `json:"nodes"`
	Pending       []*transaction.Transaction `json:"pending"`
	BankHashes    []string                   `json:"bank_hashes,omitempty"`
}

// Snapshot returns a deep copy of the committed state and the pending queue.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	blocks := make([]*block.Block, len(l.chain))
	for i, b := range l.chain {
		blocks[i] = b.Clone()
	}
	return Snapshot{
		Seed:          l.seed,
		Creator:       l.cfg.Creator,
		Fund:          l.cfg.Fund,
		CreatedAt:     l.createdAt,
		MinDifficulty: l.cfg.MinDifficulty,
		Blocks:        blocks,
		Nodes:         l.registry.Snapshot(),
		Pending:       l.mempool.All(),
		BankHashes:    encodeBankHashes(l.bankHashes),
	}
}

// Restore rebuilds a ledger from snap. Creator, fund and minimum difficulty
// come from the snapshot; rates, reward and the event bus from cfg. Restore
// checks the snapshot is structurally sound and that the pending queue still
// applies; it does not verify the chain, which is what Validate is for.
func Restore(cfg Config, snap Snapshot) (*Ledger, error) {
	if len(snap.Blocks) == 0 {
		return nil, fmt.Errorf("snapshot holds no blocks")
	}
	if !common.IsValidSeed(snap.Seed) {
		return nil, fmt.Errorf("snapshot seed %q is not a base58 sha256 digest", snap.Seed)
	}
	if want := common.SeedFromCreator(snap.Creator.String()); snap.Seed != want {
		return nil, fmt.Errorf("snapshot seed %s does not belong to creator %s", snap.Seed, snap.Creator)
	}
	cfg.Creator = snap.Creator
	cfg.Fund = snap.Fund
	cfg.MinDifficulty = snap.MinDifficulty
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger config: %w", err)
	}

	if err := checkSnapshotAmounts(snap); err != nil {
		return nil, err
	}

	l := newLedger(cfg, snap.Seed, snap.CreatedAt)
	for _, node := range snap.Nodes {
		if err := l.registry.Restore(node); err != nil {
			return nil, err
		}
	}
	for _, id := range []types.NodeID{snap.Creator, snap.Fund} {
		if !l.registry.Exists(id) {
			return nil, fmt.Errorf("snapshot registry lacks %s", id)
		}
	}

	for _, b := range snap.Blocks {
		l.chain = append(l.chain, b.Clone())
	}
	if len(snap.BankHashes) == len(snap.Blocks) {
		hashes, err := decodeBankHashes(snap.BankHashes)
		if err != nil {
			return nil, err
		}
		l.bankHashes = hashes
	} else {
		// older exports carry no state hashes; derive them from the chain
		hashes, err := replay(l.registry.Fresh(), l.chain, cfg.Fund)
		if err != nil {
			return nil, err
		}
		l.bankHashes = hashes
	}

	view := l.registry.View(cfg.Fund)
	for i, tx := range snap.Pending {
		if err := view.ApplyTx(tx); err != nil {
			return nil, fmt.Errorf("pending transaction %d: %w", i, err)
		}
		if err := l.mempool.Add(tx.Clone()); err != nil {
			return nil, err
		}
	}

	monitoring.SetBlockHeight(l.chain[len(l.chain)-1].Index)
	monitoring.SetParticipants(l.registry.Len())
	monitoring.SetPendingSize(l.mempool.Len())
	logx.Info("LEDGER", fmt.Sprintf("Restored ledger | creator=%s | blocks=%d | nodes=%d | pending=%d",
		snap.Creator, len(l.chain), l.registry.Len(), l.mempool.Len()))
	return l, nil
}

// checkSnapshotAmounts applies the amount bounds to every value of a
// snapshot, so an edited file cannot make replay arbitrarily expensive.
func checkSnapshotAmounts(snap Snapshot) error {
	check := func(where string, tx *transaction.Transaction) error {
		if err := types.CheckPrecision(tx.Amount); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if err := types.CheckDerivedPrecision(tx.Levy); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		return nil
	}
	for _, b := range snap.Blocks {
		for i, tx := range b.Transactions {
			if err := check(fmt.Sprintf("block %d transaction %d", b.Index, i), tx); err != nil {
				return err
			}
		}
	}
	for i, tx := range snap.Pending {
		if err := check(fmt.Sprintf("pending transaction %d", i), tx); err != nil {
			return err
		}
	}
	for _, n := range snap.Nodes {
		if err := types.CheckPrecision(n.OpeningBalance); err != nil {
			return fmt.Errorf("node %s: %w", n.ID, err)
		}
		for _, d := range []decimal.Decimal{n.Balance, n.LevyPaid, n.LevyReceived} {
			if err := types.CheckDerivedPrecision(d); err != nil {
				return fmt.Errorf("node %s: %w", n.ID, err)
			}
		}
	}
	return nil
}
