package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Node is the registry entry of a participant.
type Node struct {
	ID             NodeID          `json:"id"`
	Balance        decimal.Decimal `json:"balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	JoinedAt       time.Time       `json:"joined_at"`
	TxCount        uint64          `json:"transactions_count"`
	LevyPaid       decimal.Decimal `json:"total_levy_paid"`
	LevyReceived   decimal.Decimal `json:"total_levy_received"`
	Active         bool            `json:"is_active"`
}

// NewNode creates an active entry with zeroed counters.
func NewNode(id NodeID, opening decimal.Decimal, joinedAt time.Time) *Node {
	return &Node{
		ID:             id,
		Balance:        opening,
		OpeningBalance: opening,
		JoinedAt:       joinedAt,
		LevyPaid:       decimal.Zero,
		LevyReceived:   decimal.Zero,
		Active:         true,
	}
}

// Clone returns an independent copy. decimal.Decimal values are immutable, so
// a struct copy is deep enough.
func (n *Node) Clone() *Node {
	cp := *n
	return &cp
}

// Fresh returns the entry as it was at registration time: same identity,
// opening balance and join time, zeroed counters. Replay starts from this.
func (n *Node) Fresh() *Node {
	return NewNode(n.ID, n.OpeningBalance, n.JoinedAt)
}
