// Package ledger owns the block sequence, the participant registry and the
// pending queue, and serializes every state transition between them.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mezonai/zakat/block"
	"github.com/mezonai/zakat/common"
	zerrors "github.com/mezonai/zakat/errors"
	"github.com/mezonai/zakat/events"
	"github.com/mezonai/zakat/logx"
	"github.com/mezonai/zakat/mempool"
	"github.com/mezonai/zakat/monitoring"
	"github.com/mezonai/zakat/registry"
	"github.com/mezonai/zakat/transaction"
	"github.com/mezonai/zakat/types"
	"github.com/shopspring/decimal"
)

// Ledger is the single authority over its balances and chain.
//
// mu serializes admission, registration and commit. The nonce search of a
// mining attempt runs without it; queries take it shared.
type Ledger struct {
	mu         sync.RWMutex
	cfg        Config
	seed       string
	createdAt  time.Time
	chain      []*block.Block
	bankHashes [][32]byte
	registry   *registry.Registry
	mempool    *mempool.Mempool
	eventBus   *events.EventBus
}

// New creates a ledger: the creator and the fund are registered, and the
// genesis block crediting the creator is sealed and applied.
func New(cfg Config) (*Ledger, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger config: %w", err)
	}

	createdAt := cfg.now()
	l := newLedger(cfg, common.SeedFromCreator(cfg.Creator.String()), createdAt)

	// the creator opens at zero; its balance arrives with the genesis block
	if err := l.registry.Register(cfg.Creator, decimal.Zero, createdAt); err != nil {
		return nil, err
	}
	if err := l.registry.Register(cfg.Fund, decimal.Zero, createdAt); err != nil {
		return nil, err
	}

	genesis, err := l.buildGenesis(createdAt)
	if err != nil {
		return nil, err
	}
	if err := l.appendWithoutLocking(genesis); err != nil {
		return nil, fmt.Errorf("apply genesis block: %w", err)
	}

	for _, p := range cfg.Participants {
		if err := l.registry.Register(p.ID, p.Balance, createdAt); err != nil {
			return nil, fmt.Errorf("register %s: %w", p.ID, err)
		}
	}

	monitoring.SetParticipants(l.registry.Len())
	logx.Info("LEDGER", fmt.Sprintf("Ledger created | creator=%s | fund=%s | seed=%s | genesis=%s",
		cfg.Creator, cfg.Fund, l.seed, genesis.ShortHash()))
	return l, nil
}

func newLedger(cfg Config, seed string, createdAt time.Time) *Ledger {
	return &Ledger{
		cfg:       cfg,
		seed:      seed,
		createdAt: createdAt,
		registry:  registry.New(),
		mempool:   mempool.NewMempool(cfg.MaxPending),
		eventBus:  cfg.EventBus,
	}
}

func (l *Ledger) buildGenesis(ts time.Time) (*block.Block, error) {
	tx, err := transaction.NewGenesis(l.cfg.Creator, l.cfg.CreatorBalance, ts)
	if err != nil {
		return nil, err
	}
	candidate := block.AssembleBlock(0, block.GenesisPrevHash, l.seed, []*transaction.Transaction{tx}, ts)
	res, err := block.Seal(context.Background(), candidate, l.cfg.GenesisDifficulty, 0)
	if err != nil {
		return nil, fmt.Errorf("seal genesis block: %w", err)
	}
	candidate.Apply(res, l.cfg.GenesisDifficulty)
	return candidate, nil
}

// appendWithoutLocking applies a sealed block to the registry and appends it.
// Callers hold mu (or own the ledger exclusively during construction).
func (l *Ledger) appendWithoutLocking(b *block.Block) error {
	touched, err := l.registry.ApplyBlock(b.Transactions, l.cfg.Fund)
	if err != nil {
		return err
	}
	var prev [32]byte
	if n := len(l.bankHashes); n > 0 {
		prev = l.bankHashes[n-1]
	}
	l.chain = append(l.chain, b)
	l.bankHashes = append(l.bankHashes, CombineBankHash(prev, ComputeNodesDeltaHash(touched)))
	monitoring.SetBlockHeight(b.Index)
	return nil
}

// Register adds a participant with an opening balance. raw is normalized
// the way ParseNodeID does; every other lookup normalizes the same way.
func (l *Ledger) Register(raw types.NodeID, opening decimal.Decimal) error {
	id, err := normalizeID(raw)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.registry.Register(id, opening, l.cfg.now()); err != nil {
		return err
	}
	node, _ := l.registry.Get(id)
	monitoring.SetParticipants(l.registry.Len())
	l.publish(events.NewParticipantRegistered(node))
	return nil
}

// Deactivate flags a participant inactive. Its entry and history stay; it
// can no longer send or mine.
func (l *Ledger) Deactivate(raw types.NodeID) error {
	id, err := normalizeID(raw)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.registry.Deactivate(id); err != nil {
		return err
	}
	l.publish(events.NewParticipantDeactivated(id))
	return nil
}

// Balance returns the committed balance of id.
func (l *Ledger) Balance(raw types.NodeID) (decimal.Decimal, error) {
	id, err := normalizeID(raw)
	if err != nil {
		return decimal.Zero, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.registry.Balance(id)
}

// PendingBalance returns the balance id would hold once every pending
// transaction is mined.
func (l *Ledger) PendingBalance(raw types.NodeID) (decimal.Decimal, error) {
	id, err := normalizeID(raw)
	if err != nil {
		return decimal.Zero, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	view, err := l.pendingViewWithoutLocking()
	if err != nil {
		return decimal.Zero, err
	}
	return view.Balance(id)
}

// Node returns a copy of the registry entry of id.
func (l *Ledger) Node(raw types.NodeID) (*types.Node, error) {
	id, err := normalizeID(raw)
	if err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.registry.Get(id)
}

// Nodes returns copies of every registry entry in registration order.
func (l *Ledger) Nodes() []*types.Node {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.registry.Snapshot()
}

// Pending returns copies of the queued transactions in admission order.
func (l *Ledger) Pending() []*transaction.Transaction {
	return l.mempool.All()
}

func (l *Ledger) Height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1].Index
}

func (l *Ledger) Seed() string {
	return l.seed
}

func (l *Ledger) Fund() types.NodeID {
	return l.cfg.Fund
}

func (l *Ledger) Creator() types.NodeID {
	return l.cfg.Creator
}

func (l *Ledger) MinDifficulty() block.Difficulty {
	return l.cfg.MinDifficulty
}

// pendingViewWithoutLocking simulates the whole pending queue on top of the
// committed registry.
func (l *Ledger) pendingViewWithoutLocking() (*registry.View, error) {
	view := l.registry.View(l.cfg.Fund)
	for i, tx := range l.mempool.All() {
		if err := view.ApplyTx(tx); err != nil {
			return nil, zerrors.Errorf(zerrors.ErrCodeInternal, "pending transaction %d no longer applies: %v", i, err)
		}
	}
	return view, nil
}

func (l *Ledger) publish(ev events.LedgerEvent) {
	if l.eventBus != nil {
		l.eventBus.Publish(ev)
	}
}

func normalizeID(raw types.NodeID) (types.NodeID, error) {
	return types.ParseNodeID(raw.String())
}

// normalizePair returns a and b unchanged on error so they can still be
// reported.
func normalizePair(a, b types.NodeID) (types.NodeID, types.NodeID, error) {
	na, err := normalizeID(a)
	if err != nil {
		return a, b, err
	}
	nb, err := normalizeID(b)
	if err != nil {
		return a, b, err
	}
	return na, nb, nil
}
