package ledger

import (
	"fmt"

	zerrors "github.com/mezonai/zakat/errors"
	"github.com/mezonai/zakat/events"
	"github.com/mezonai/zakat/logx"
	"github.com/mezonai/zakat/monitoring"
	"github.com/mezonai/zakat/transaction"
	"github.com/mezonai/zakat/types"
	"github.com/shopspring/decimal"
)

// SubmitTransfer queues a transfer of amount from sender to receiver with a
// levy of rate*amount on top, credited to the fund. The sender must cover
// amount+levy after every pending transaction. With ExplicitTransferLevy the
// levy becomes a separate levy transaction admitted together with the
// transfer.
func (l *Ledger) SubmitTransfer(sender, receiver types.NodeID, amount decimal.Decimal) ([]*transaction.Transaction, error) {
	if err := types.RequirePositive(amount); err != nil {
		return nil, l.reject(transaction.KindTransfer, sender, err)
	}
	sender, receiver, err := normalizePair(sender, receiver)
	if err != nil {
		return nil, l.reject(transaction.KindTransfer, sender, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.cfg.now()
	levy := types.Levy(amount, l.cfg.LevyRate)

	var txs []*transaction.Transaction
	if l.cfg.ExplicitTransferLevy && levy.IsPositive() {
		transfer, err := transaction.NewTransfer(sender, receiver, amount, decimal.Zero, now)
		if err != nil {
			return nil, l.reject(transaction.KindTransfer, sender, err)
		}
		levyTx, err := transaction.NewLevy(sender, l.cfg.Fund, levy, now)
		if err != nil {
			return nil, l.reject(transaction.KindTransfer, sender, err)
		}
		txs = []*transaction.Transaction{transfer, levyTx}
	} else {
		transfer, err := transaction.NewTransfer(sender, receiver, amount, levy, now)
		if err != nil {
			return nil, l.reject(transaction.KindTransfer, sender, err)
		}
		txs = []*transaction.Transaction{transfer}
	}

	if err := l.admitWithoutLocking(txs); err != nil {
		return nil, l.reject(transaction.KindTransfer, sender, err)
	}
	return cloneTxs(txs), nil
}

// SubmitLevy queues a levy of rate*balance from sender to recipient, where
// balance is what sender holds once every pending transaction is applied. An
// empty recipient means the fund.
func (l *Ledger) SubmitLevy(sender, recipient types.NodeID) (*transaction.Transaction, error) {
	if recipient == "" {
		recipient = l.cfg.Fund
	}
	sender, recipient, err := normalizePair(sender, recipient)
	if err != nil {
		return nil, l.reject(transaction.KindLevy, sender, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkParticipantsWithoutLocking(sender, recipient); err != nil {
		return nil, l.reject(transaction.KindLevy, sender, err)
	}
	view, err := l.pendingViewWithoutLocking()
	if err != nil {
		return nil, l.reject(transaction.KindLevy, sender, err)
	}
	base, err := view.Balance(sender)
	if err != nil {
		return nil, l.reject(transaction.KindLevy, sender, err)
	}
	levy := types.Levy(base, l.cfg.LevyRate)
	if !levy.IsPositive() {
		return nil, l.reject(transaction.KindLevy, sender,
			zerrors.Errorf(zerrors.ErrCodeInvalidAmount, "levy on balance %s of %s is zero", base, sender))
	}

	tx, err := transaction.NewLevy(sender, recipient, levy, l.cfg.now())
	if err != nil {
		return nil, l.reject(transaction.KindLevy, sender, err)
	}
	if err := l.admitWithoutLocking([]*transaction.Transaction{tx}); err != nil {
		return nil, l.reject(transaction.KindLevy, sender, err)
	}
	return tx.Clone(), nil
}

// SubmitGift queues a levy-free transfer.
func (l *Ledger) SubmitGift(sender, receiver types.NodeID, amount decimal.Decimal) (*transaction.Transaction, error) {
	if err := types.RequirePositive(amount); err != nil {
		return nil, l.reject(transaction.KindGift, sender, err)
	}
	sender, receiver, err := normalizePair(sender, receiver)
	if err != nil {
		return nil, l.reject(transaction.KindGift, sender, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := transaction.NewGift(sender, receiver, amount, l.cfg.now())
	if err != nil {
		return nil, l.reject(transaction.KindGift, sender, err)
	}
	if err := l.admitWithoutLocking([]*transaction.Transaction{tx}); err != nil {
		return nil, l.reject(transaction.KindGift, sender, err)
	}
	return tx.Clone(), nil
}

func (l *Ledger) checkParticipantsWithoutLocking(sender, receiver types.NodeID) error {
	node, err := l.registry.Get(sender)
	if err != nil {
		return err
	}
	if !node.Active {
		return zerrors.Errorf(zerrors.ErrCodeParticipantInactive, "participant %s is inactive", sender)
	}
	if !l.registry.Exists(receiver) {
		return zerrors.Errorf(zerrors.ErrCodeUnknownParticipant, "participant %s is not registered", receiver)
	}
	return nil
}

// admitWithoutLocking checks txs against the committed balances with the
// pending queue simulated on top, then queues them as one unit.
func (l *Ledger) admitWithoutLocking(txs []*transaction.Transaction) error {
	for _, tx := range txs {
		if err := l.checkParticipantsWithoutLocking(tx.Sender, tx.Receiver); err != nil {
			return err
		}
	}

	view, err := l.pendingViewWithoutLocking()
	if err != nil {
		return err
	}
	for _, tx := range txs {
		if err := view.ApplyTx(tx); err != nil {
			return err
		}
	}

	if err := l.mempool.Add(txs...); err != nil {
		return err
	}

	size := l.mempool.Len()
	monitoring.SetPendingSize(size)
	for _, tx := range txs {
		monitoring.RecordAdmittedTx(string(tx.Kind))
		l.publish(events.NewTransactionAdmitted(tx.Clone()))
		logx.Info("LEDGER", fmt.Sprintf("Admitted %s %s -> %s | amount=%s | levy=%s | pending=%d",
			tx.Kind, tx.Sender, tx.Receiver, tx.Amount, tx.Levy, size))
	}
	return nil
}

func (l *Ledger) reject(kind transaction.Kind, sender types.NodeID, err error) error {
	monitoring.RecordRejectedTx(rejectReason(err))
	l.publish(events.NewTransactionRejected(kind, sender, err.Error()))
	logx.Warn("LEDGER", fmt.Sprintf("Rejected %s from %s: %v", kind, sender, err))
	return err
}

func rejectReason(err error) monitoring.TxRejectedReason {
	switch zerrors.CodeOf(err) {
	case zerrors.ErrCodeUnknownParticipant:
		return monitoring.TxUnknownParticipant
	case zerrors.ErrCodeParticipantInactive:
		return monitoring.TxInactiveSender
	case zerrors.ErrCodeInvalidAmount:
		return monitoring.TxInvalidAmount
	case zerrors.ErrCodeInsufficientFunds:
		return monitoring.TxInsufficientFunds
	case zerrors.ErrCodeMempoolFull:
		return monitoring.TxMempoolFull
	}
	return monitoring.TxRejectedUnknown
}

func cloneTxs(txs []*transaction.Transaction) []*transaction.Transaction {
	out := make([]*transaction.Transaction, len(txs))
	for i, tx := range txs {
		out[i] = tx.Clone()
	}
	return out
}
