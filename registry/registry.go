// Package registry holds participant account state. Balances only change by
// applying transactions of a committed block; entries are never removed.
package registry

import (
	"fmt"
	"sync"
	"time"

	zerrors "github.com/mezonai/zakat/errors"
	"github.com/mezonai/zakat/logx"
	"github.com/mezonai/zakat/transaction"
	"github.com/mezonai/zakat/types"
	"github.com/shopspring/decimal"
)

type Registry struct {
	mu    sync.RWMutex
	nodes map[types.NodeID]*types.Node
	order []types.NodeID // registration order
}

func New() *Registry {
	return &Registry{
		nodes: make(map[types.NodeID]*types.Node),
	}
}

// Register creates an entry with the given opening balance and zeroed counters.
func (r *Registry) Register(id types.NodeID, opening decimal.Decimal, joinedAt time.Time) error {
	if id.IsSentinel() {
		return zerrors.Errorf(zerrors.ErrCodeInvalidIdentifier, "%s is reserved", id)
	}
	if opening.IsNegative() {
		return zerrors.Errorf(zerrors.ErrCodeInvalidAmount, "opening balance must not be negative, got %s", opening)
	}
	if err := types.CheckPrecision(opening); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertWithoutLocking(types.NewNode(id, opening, joinedAt))
}

// Restore inserts an entry exactly as given, counters included.
func (r *Registry) Restore(node *types.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertWithoutLocking(node.Clone())
}

func (r *Registry) insertWithoutLocking(node *types.Node) error {
	if _, ok := r.nodes[node.ID]; ok {
		return zerrors.Errorf(zerrors.ErrCodeDuplicateParticipant, "participant %s already registered", node.ID)
	}
	r.nodes[node.ID] = node
	r.order = append(r.order, node.ID)
	logx.Info("REGISTRY", fmt.Sprintf("Registered %s with opening balance %s", node.ID, node.OpeningBalance))
	return nil
}

func (r *Registry) Exists(id types.NodeID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[id]
	return ok
}

// Get returns a copy of the entry.
func (r *Registry) Get(id types.NodeID) (*types.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.nodes[id]
	if !ok {
		return nil, unknown(id)
	}
	return node.Clone(), nil
}

func (r *Registry) Balance(id types.NodeID) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.nodes[id]
	if !ok {
		return decimal.Zero, unknown(id)
	}
	return node.Balance, nil
}

// Deactivate clears the active flag. The entry and its history stay.
func (r *Registry) Deactivate(id types.NodeID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[id]
	if !ok {
		return unknown(id)
	}
	node.Active = false
	logx.Info("REGISTRY", "Deactivated ", id)
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Snapshot returns copies of all entries in registration order.
func (r *Registry) Snapshot() []*types.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Node, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.nodes[id].Clone())
	}
	return out
}

// Clone returns an independent registry with the same entries.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := &Registry{
		nodes: make(map[types.NodeID]*types.Node, len(r.nodes)),
		order: append([]types.NodeID(nil), r.order...),
	}
	for id, node := range r.nodes {
		cp.nodes[id] = node.Clone()
	}
	return cp
}

// Fresh returns a registry holding every entry as it was at registration.
func (r *Registry) Fresh() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := &Registry{
		nodes: make(map[types.NodeID]*types.Node, len(r.nodes)),
		order: append([]types.NodeID(nil), r.order...),
	}
	for id, node := range r.nodes {
		cp.nodes[id] = node.Fresh()
	}
	return cp
}

// ApplyBlock applies txs in order, all or nothing: the effects are computed on
// copies of the touched entries and written back only if every transaction
// applies without driving a balance negative. It returns the touched entries
// as they are after the block, in first-touch order.
func (r *Registry) ApplyBlock(txs []*transaction.Transaction, fund types.NodeID) ([]*types.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := make(map[types.NodeID]*types.Node)
	var order []types.NodeID
	load := func(id types.NodeID) (*types.Node, error) {
		if n, ok := staged[id]; ok {
			return n, nil
		}
		n, ok := r.nodes[id]
		if !ok {
			return nil, unknown(id)
		}
		cp := n.Clone()
		staged[id] = cp
		return cp, nil
	}

	touched := make(map[types.NodeID]struct{})
	for i, tx := range txs {
		ids, err := applyTx(tx, fund, load)
		if err != nil {
			return nil, fmt.Errorf("transaction %d (%s): %w", i, tx.Kind, err)
		}
		for _, id := range ids {
			if _, seen := touched[id]; !seen {
				touched[id] = struct{}{}
				order = append(order, id)
			}
		}
	}

	out := make([]*types.Node, 0, len(order))
	for id, n := range staged {
		r.nodes[id] = n
	}
	for _, id := range order {
		out = append(out, r.nodes[id].Clone())
	}
	return out, nil
}

// Diff compares balances and counters with other and describes the first
// divergence in registration order, or returns "" if both agree.
func (r *Registry) Diff(other *Registry) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	if len(r.nodes) != len(other.nodes) {
		return fmt.Sprintf("registry sizes differ: %d vs %d", len(r.nodes), len(other.nodes))
	}
	for _, id := range r.order {
		a := r.nodes[id]
		b, ok := other.nodes[id]
		if !ok {
			return fmt.Sprintf("participant %s missing", id)
		}
		switch {
		case !a.Balance.Equal(b.Balance):
			return fmt.Sprintf("participant %s balance %s, replay gives %s", id, a.Balance, b.Balance)
		case a.TxCount != b.TxCount:
			return fmt.Sprintf("participant %s transaction count %d, replay gives %d", id, a.TxCount, b.TxCount)
		case !a.LevyPaid.Equal(b.LevyPaid):
			return fmt.Sprintf("participant %s levy paid %s, replay gives %s", id, a.LevyPaid, b.LevyPaid)
		case !a.LevyReceived.Equal(b.LevyReceived):
			return fmt.Sprintf("participant %s levy received %s, replay gives %s", id, a.LevyReceived, b.LevyReceived)
		}
	}
	return ""
}

func unknown(id types.NodeID) error {
	return zerrors.Errorf(zerrors.ErrCodeUnknownParticipant, "participant %s is not registered", id)
}
