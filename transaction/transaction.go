package transaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	zerrors "github.com/mezonai/zakat/errors"
	"github.com/mezonai/zakat/types"
	"github.com/shopspring/decimal"
)

// Kind is the closed set of transaction categories.
type Kind string

const (
	KindGenesis      Kind = "genesis"
	KindTransfer     Kind = "transfer"
	KindLevy         Kind = "zakat"
	KindGift         Kind = "gift"
	KindMiningReward Kind = "mining_reward"
)

func (k Kind) Valid() bool {
	switch k {
	case KindGenesis, KindTransfer, KindLevy, KindGift, KindMiningReward:
		return true
	}
	return false
}

// Transaction is a single value movement. It is built only through the
// constructors below, which enforce the per-kind field rules; once it is part
// of a committed block it must not be modified.
type Transaction struct {
	Kind      Kind            `json:"transaction_type"`
	Sender    types.NodeID    `json:"sender"`
	Receiver  types.NodeID    `json:"receiver"`
	Amount    decimal.Decimal `json:"amount"`
	Levy      decimal.Decimal `json:"zakat_amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewGenesis credits the ledger creator with its opening balance.
func NewGenesis(receiver types.NodeID, amount decimal.Decimal, ts time.Time) (*Transaction, error) {
	return build(KindGenesis, types.GenesisSender, receiver, amount, decimal.Zero, ts)
}

// NewTransfer moves amount from sender to receiver and charges levy on top.
// levy may be zero when the levy is recorded as a separate transaction.
func NewTransfer(sender, receiver types.NodeID, amount, levy decimal.Decimal, ts time.Time) (*Transaction, error) {
	return build(KindTransfer, sender, receiver, amount, levy, ts)
}

// NewLevy carries the whole value in the levy field.
func NewLevy(sender, receiver types.NodeID, levy decimal.Decimal, ts time.Time) (*Transaction, error) {
	return build(KindLevy, sender, receiver, decimal.Zero, levy, ts)
}

// NewGift is a levy-free transfer.
func NewGift(sender, receiver types.NodeID, amount decimal.Decimal, ts time.Time) (*Transaction, error) {
	return build(KindGift, sender, receiver, amount, decimal.Zero, ts)
}

// NewMiningReward credits the miner that sealed a block.
func NewMiningReward(miner types.NodeID, reward decimal.Decimal, ts time.Time) (*Transaction, error) {
	return build(KindMiningReward, types.NetworkSender, miner, reward, decimal.Zero, ts)
}

func build(kind Kind, sender, receiver types.NodeID, amount, levy decimal.Decimal, ts time.Time) (*Transaction, error) {
	tx := &Transaction{
		Kind:      kind,
		Sender:    sender,
		Receiver:  receiver,
		Amount:    amount,
		Levy:      levy,
		Timestamp: ts,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

// Validate checks the field rules of the transaction's kind.
func (tx *Transaction) Validate() error {
	if !tx.Kind.Valid() {
		return zerrors.Errorf(zerrors.ErrCodeInternal, "unknown transaction kind %q", tx.Kind)
	}
	if tx.Receiver == "" || tx.Receiver.IsSentinel() {
		return zerrors.Errorf(zerrors.ErrCodeInvalidIdentifier, "invalid receiver %q", tx.Receiver)
	}
	if tx.Amount.IsNegative() || tx.Levy.IsNegative() {
		return zerrors.Errorf(zerrors.ErrCodeInvalidAmount, "negative amount %s or levy %s", tx.Amount, tx.Levy)
	}

	switch tx.Kind {
	case KindGenesis:
		if tx.Sender != types.GenesisSender {
			return zerrors.Errorf(zerrors.ErrCodeInvalidIdentifier, "genesis sender must be %s", types.GenesisSender)
		}
		if !tx.Levy.IsZero() {
			return zerrors.Errorf(zerrors.ErrCodeInvalidAmount, "genesis carries no levy")
		}
		return nil
	case KindMiningReward:
		if tx.Sender != types.NetworkSender {
			return zerrors.Errorf(zerrors.ErrCodeInvalidIdentifier, "mining reward sender must be %s", types.NetworkSender)
		}
		if !tx.Amount.IsPositive() || !tx.Levy.IsZero() {
			return zerrors.Errorf(zerrors.ErrCodeInvalidAmount, "mining reward must be positive and levy-free")
		}
		return nil
	}

	// participant-issued kinds
	if tx.Sender == "" || tx.Sender.IsSentinel() {
		return zerrors.Errorf(zerrors.ErrCodeInvalidIdentifier, "invalid sender %q", tx.Sender)
	}
	switch tx.Kind {
	case KindTransfer:
		if !tx.Amount.IsPositive() {
			return zerrors.Errorf(zerrors.ErrCodeInvalidAmount, "transfer amount must be positive, got %s", tx.Amount)
		}
	case KindLevy:
		if !tx.Amount.IsZero() || !tx.Levy.IsPositive() {
			return zerrors.Errorf(zerrors.ErrCodeInvalidAmount, "levy must carry a positive levy and no principal")
		}
	case KindGift:
		if !tx.Amount.IsPositive() {
			return zerrors.Errorf(zerrors.ErrCodeInvalidAmount, "gift amount must be positive, got %s", tx.Amount)
		}
		if !tx.Levy.IsZero() {
			return zerrors.Errorf(zerrors.ErrCodeInvalidAmount, "gift carries no levy")
		}
	}
	return nil
}

// IsSystem reports whether the transaction is issued by the ledger itself
// rather than debited from a participant.
func (tx *Transaction) IsSystem() bool {
	return tx.Kind == KindGenesis || tx.Kind == KindMiningReward
}

// Debit is what the sender loses when the transaction is applied.
func (tx *Transaction) Debit() decimal.Decimal {
	if tx.IsSystem() {
		return decimal.Zero
	}
	return tx.Amount.Add(tx.Levy)
}

// Credit is what the receiver gains. For a levy transaction the receiver is
// the levy recipient; for a transfer the levy goes to the fund instead.
func (tx *Transaction) Credit() decimal.Decimal {
	if tx.Kind == KindLevy {
		return tx.Levy
	}
	return tx.Amount
}

// Encode is the canonical, order-stable text form used in block digests.
// Identifiers cannot contain '|' so the encoding is unambiguous.
func (tx *Transaction) Encode() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%d",
		tx.Kind, tx.Sender, tx.Receiver, tx.Amount.String(), tx.Levy.String(), tx.Timestamp.UnixNano())
}

func (tx *Transaction) Hash() string {
	sum := sha256.Sum256([]byte(tx.Encode()))
	return hex.EncodeToString(sum[:])
}

// Clone returns an independent copy.
func (tx *Transaction) Clone() *Transaction {
	cp := *tx
	return &cp
}
