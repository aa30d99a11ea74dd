package store

import (
	"sync"

	"github.com/mezonai/zakat/db"
	"github.com/mezonai/zakat/ledger"
	"github.com/mezonai/zakat/logx"
	"github.com/pkg/errors"
)

// ErrNoLedger is returned by Load when the store holds no ledger yet.
var ErrNoLedger = errors.New("no ledger stored")

// ChainStore persists ledger snapshots into a provider. Every Save lands in
// a single batch, so a crash leaves either the old or the new state.
type ChainStore struct {
	mu       sync.Mutex
	provider db.IterableProvider
	blocks   BlockStore
	nodes    NodeStore
	pending  PendingStore
	meta     StateMetaStore
}

func NewChainStore(provider db.IterableProvider) (*ChainStore, error) {
	blocks, err := NewGenericBlockStore(provider)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create block store")
	}
	nodes, err := NewGenericNodeStore(provider)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create node store")
	}
	pending, err := NewGenericPendingStore(provider)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create pending store")
	}
	meta, err := NewGenericStateMetaStore(provider)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create state meta store")
	}
	return &ChainStore{
		provider: provider,
		blocks:   blocks,
		nodes:    nodes,
		pending:  pending,
		meta:     meta,
	}, nil
}

// Exists reports whether a ledger has been saved.
func (cs *ChainStore) Exists() (bool, error) {
	meta, err := cs.meta.LedgerMeta()
	if err != nil {
		return false, err
	}
	return meta != nil, nil
}

// Save writes snap. Blocks already stored are kept as they are; the
// registry, the pending queue and the metadata are replaced. A snapshot of
// a different ledger is refused.
func (cs *ChainStore) Save(snap ledger.Snapshot) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if len(snap.Blocks) == 0 {
		return errors.New("snapshot holds no blocks")
	}
	existing, err := cs.meta.LedgerMeta()
	if err != nil {
		return err
	}
	if existing != nil && existing.Seed != snap.Seed {
		return errors.Errorf("store holds ledger %s, refusing to overwrite with %s", existing.Seed, snap.Seed)
	}

	batch := cs.provider.Batch()
	defer batch.Close()

	if err := cs.blocks.AddBlocks(batch, snap.Blocks); err != nil {
		return err
	}
	if err := cs.nodes.ReplaceNodes(batch, snap.Nodes); err != nil {
		return err
	}
	if err := cs.pending.ReplacePending(batch, snap.Pending); err != nil {
		return err
	}
	meta := &LedgerMeta{
		Seed:          snap.Seed,
		Creator:       snap.Creator,
		Fund:          snap.Fund,
		CreatedAt:     snap.CreatedAt,
		MinDifficulty: snap.MinDifficulty,
	}
	latest := snap.Blocks[len(snap.Blocks)-1].Index
	if err := cs.meta.PutMeta(batch, meta, latest, snap.BankHashes); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "failed to write ledger batch")
	}

	logx.Info("STORE", "Saved ledger", snap.Seed, "| blocks:", len(snap.Blocks), "| nodes:", len(snap.Nodes), "| pending:", len(snap.Pending))
	return nil
}

// Clear removes every stored record, making room for a different ledger.
func (cs *ChainStore) Clear() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	batch := cs.provider.Batch()
	defer batch.Close()
	for _, prefix := range []string{PrefixBlock, PrefixNode, PrefixPending, PrefixStateHash, PrefixStateMeta} {
		if err := deletePrefix(cs.provider, batch, prefix); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "failed to clear store")
	}
	logx.Warn("STORE", "Cleared stored ledger")
	return nil
}

// Load reads the stored ledger back into a snapshot.
func (cs *ChainStore) Load() (ledger.Snapshot, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	meta, err := cs.meta.LedgerMeta()
	if err != nil {
		return ledger.Snapshot{}, err
	}
	if meta == nil {
		return ledger.Snapshot{}, ErrNoLedger
	}

	blocks, err := cs.blocks.Blocks()
	if err != nil {
		return ledger.Snapshot{}, err
	}
	for i, b := range blocks {
		if b.Index != uint64(i) {
			return ledger.Snapshot{}, errors.Errorf("stored chain has a gap at %d", i)
		}
	}
	latest, ok, err := cs.meta.LatestIndex()
	if err != nil {
		return ledger.Snapshot{}, err
	}
	if !ok || len(blocks) == 0 || blocks[len(blocks)-1].Index != latest {
		return ledger.Snapshot{}, errors.Errorf("stored chain does not end at recorded block %d", latest)
	}

	nodes, err := cs.nodes.Nodes()
	if err != nil {
		return ledger.Snapshot{}, err
	}
	pending, err := cs.pending.Pending()
	if err != nil {
		return ledger.Snapshot{}, err
	}
	hashes, err := cs.meta.StateHashes()
	if err != nil {
		return ledger.Snapshot{}, err
	}

	return ledger.Snapshot{
		Seed:          meta.Seed,
		Creator:       meta.Creator,
		Fund:          meta.Fund,
		CreatedAt:     meta.CreatedAt,
		MinDifficulty: meta.MinDifficulty,
		Blocks:        blocks,
		Nodes:         nodes,
		Pending:       pending,
		BankHashes:    hashes,
	}, nil
}

// MustClose closes the underlying database provider
func (cs *ChainStore) MustClose() {
	if err := cs.provider.Close(); err != nil {
		logx.Error("STORE", "Failed to close db provider:", err.Error())
	}
}
