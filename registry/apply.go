package registry

import (
	zerrors "github.com/mezonai/zakat/errors"
	"github.com/mezonai/zakat/transaction"
	"github.com/mezonai/zakat/types"
)

type loader func(id types.NodeID) (*types.Node, error)

// applyTx moves value for one transaction:
//   - the sender is debited amount+levy and its levy-paid counter grows by levy
//   - the receiver is credited the amount, or the levy for a levy transaction
//   - a transfer's levy is credited to the fund
//
// Every party is loaded and the balance checked before anything is written,
// so a failing transaction leaves the loaded entries untouched. It returns
// the identifiers it touched.
func applyTx(tx *transaction.Transaction, fund types.NodeID, load loader) ([]types.NodeID, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	var sender, fundNode *types.Node
	var err error
	if !tx.IsSystem() {
		if sender, err = load(tx.Sender); err != nil {
			return nil, err
		}
		if debit := tx.Debit(); sender.Balance.LessThan(debit) {
			return nil, zerrors.Errorf(zerrors.ErrCodeInsufficientFunds,
				"participant %s holds %s, needs %s", tx.Sender, sender.Balance, debit)
		}
	}
	receiver, err := load(tx.Receiver)
	if err != nil {
		return nil, err
	}
	chargesFund := tx.Kind == transaction.KindTransfer && tx.Levy.IsPositive()
	if chargesFund {
		if fundNode, err = load(fund); err != nil {
			return nil, err
		}
	}

	touched := make([]types.NodeID, 0, 3)
	if sender != nil {
		sender.Balance = sender.Balance.Sub(tx.Debit())
		sender.LevyPaid = sender.LevyPaid.Add(tx.Levy)
		sender.TxCount++
		touched = append(touched, sender.ID)
	}

	receiver.Balance = receiver.Balance.Add(tx.Credit())
	if tx.Kind == transaction.KindLevy {
		receiver.LevyReceived = receiver.LevyReceived.Add(tx.Levy)
	}
	if tx.Receiver != tx.Sender {
		receiver.TxCount++
		touched = append(touched, receiver.ID)
	}

	if chargesFund {
		fundNode.Balance = fundNode.Balance.Add(tx.Levy)
		fundNode.LevyReceived = fundNode.LevyReceived.Add(tx.Levy)
		touched = append(touched, fundNode.ID)
	}
	return touched, nil
}
