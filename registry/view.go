package registry

import (
	"github.com/mezonai/zakat/transaction"
	"github.com/mezonai/zakat/types"
	"github.com/shopspring/decimal"
)

// View overlays the effects of not yet committed transactions on a registry
// without touching it. Admission runs every candidate through a view that
// already holds the pending queue, so a sender cannot spend the same balance
// twice before a block is mined.
type View struct {
	base    *Registry
	fund    types.NodeID
	overlay map[types.NodeID]*types.Node
}

func (r *Registry) View(fund types.NodeID) *View {
	return &View{
		base:    r,
		fund:    fund,
		overlay: make(map[types.NodeID]*types.Node),
	}
}

func (v *View) load(id types.NodeID) (*types.Node, error) {
	if n, ok := v.overlay[id]; ok {
		return n, nil
	}
	n, err := v.base.Get(id)
	if err != nil {
		return nil, err
	}
	v.overlay[id] = n
	return n, nil
}

// ApplyTx simulates tx. On error the view is unchanged.
func (v *View) ApplyTx(tx *transaction.Transaction) error {
	_, err := applyTx(tx, v.fund, v.load)
	return err
}

// Node returns the simulated entry. The returned value must not be modified.
func (v *View) Node(id types.NodeID) (*types.Node, error) {
	return v.load(id)
}

func (v *View) Balance(id types.NodeID) (decimal.Decimal, error) {
	n, err := v.load(id)
	if err != nil {
		return decimal.Zero, err
	}
	return n.Balance, nil
}
