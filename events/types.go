package events

import (
	"time"

	"github.com/mezonai/zakat/transaction"
	"github.com/mezonai/zakat/types"
)

// EventType is an enum-like string type for ledger events
type EventType string

const (
	EventParticipantRegistered  EventType = "ParticipantRegistered"
	EventParticipantDeactivated EventType = "ParticipantDeactivated"
	EventTransactionAdmitted    EventType = "TransactionAdmitted"
	EventTransactionRejected    EventType = "TransactionRejected"
	EventBlockCommitted         EventType = "BlockCommitted"
	EventCandidateDiscarded     EventType = "CandidateDiscarded"
)

// LedgerEvent represents any state transition of the ledger
type LedgerEvent interface {
	Type() EventType
	Timestamp() time.Time
	// Key identifies the subject: a transaction hash, block hash or node id.
	Key() string
}

type baseEvent struct {
	eventType EventType
	key       string
	timestamp time.Time
}

func (e *baseEvent) Type() EventType {
	return e.eventType
}

func (e *baseEvent) Timestamp() time.Time {
	return e.timestamp
}

func (e *baseEvent) Key() string {
	return e.key
}

// ParticipantRegistered is published after a successful registration.
type ParticipantRegistered struct {
	baseEvent
	Node *types.Node
}

func NewParticipantRegistered(node *types.Node) *ParticipantRegistered {
	return &ParticipantRegistered{
		baseEvent: baseEvent{eventType: EventParticipantRegistered, key: node.ID.String(), timestamp: time.Now()},
		Node:      node,
	}
}

// TransactionAdmitted is published when a transaction enters the pending queue.
type TransactionAdmitted struct {
	baseEvent
	Tx *transaction.Transaction
}

func NewTransactionAdmitted(tx *transaction.Transaction) *TransactionAdmitted {
	return &TransactionAdmitted{
		baseEvent: baseEvent{eventType: EventTransactionAdmitted, key: tx.Hash(), timestamp: time.Now()},
		Tx:        tx,
	}
}

// TransactionRejected is published when a submission fails validation.
type TransactionRejected struct {
	baseEvent
	Sender       types.NodeID
	ErrorMessage string
}

func NewTransactionRejected(kind transaction.Kind, sender types.NodeID, errorMessage string) *TransactionRejected {
	return &TransactionRejected{
		baseEvent:    baseEvent{eventType: EventTransactionRejected, key: string(kind), timestamp: time.Now()},
		Sender:       sender,
		ErrorMessage: errorMessage,
	}
}

// ParticipantDeactivated is published after a participant is flagged inactive.
type ParticipantDeactivated struct {
	baseEvent
	ID types.NodeID
}

func NewParticipantDeactivated(id types.NodeID) *ParticipantDeactivated {
	return &ParticipantDeactivated{
		baseEvent: baseEvent{eventType: EventParticipantDeactivated, key: id.String(), timestamp: time.Now()},
		ID:        id,
	}
}

// BlockCommitted is published once a sealed block has been appended. It
// carries the block's transactions so one event covers the whole block.
type BlockCommitted struct {
	baseEvent
	Index        uint64
	Miner        types.NodeID
	Transactions []*transaction.Transaction
}

func NewBlockCommitted(index uint64, hash string, miner types.NodeID, txs []*transaction.Transaction) *BlockCommitted {
	return &BlockCommitted{
		baseEvent:    baseEvent{eventType: EventBlockCommitted, key: hash, timestamp: time.Now()},
		Index:        index,
		Miner:        miner,
		Transactions: txs,
	}
}

func (e *BlockCommitted) TxCount() int {
	return len(e.Transactions)
}

// CandidateDiscarded is published when a sealed candidate loses the commit race.
type CandidateDiscarded struct {
	baseEvent
	Index uint64
	Miner types.NodeID
}

func NewCandidateDiscarded(index uint64, hash string, miner types.NodeID) *CandidateDiscarded {
	return &CandidateDiscarded{
		baseEvent: baseEvent{eventType: EventCandidateDiscarded, key: hash, timestamp: time.Now()},
		Index:     index,
		Miner:     miner,
	}
}
