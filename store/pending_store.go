package store

import (
	"github.com/mezonai/zakat/db"
	"github.com/mezonai/zakat/jsonx"
	"github.com/mezonai/zakat/transaction"
	"github.com/pkg/errors"
)

// PendingStore persists the pending queue in admission order.
type PendingStore interface {
	Pending() ([]*transaction.Transaction, error)
	ReplacePending(batch db.DatabaseBatch, txs []*transaction.Transaction) error
}

type GenericPendingStore struct {
	provider db.IterableProvider
}

func NewGenericPendingStore(provider db.IterableProvider) (*GenericPendingStore, error) {
	if provider == nil {
		return nil, errors.New("provider cannot be nil")
	}
	return &GenericPendingStore{provider: provider}, nil
}

func (s *GenericPendingStore) Pending() ([]*transaction.Transaction, error) {
	return decodeAll[transaction.Transaction](s.provider, PrefixPending)
}

// ReplacePending schedules the removal of the stored queue and the write of
// txs in its place.
func (s *GenericPendingStore) ReplacePending(batch db.DatabaseBatch, txs []*transaction.Transaction) error {
	if err := deletePrefix(s.provider, batch, PrefixPending); err != nil {
		return err
	}
	for i, tx := range txs {
		value, err := jsonx.Marshal(tx)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal pending transaction %d", i)
		}
		batch.Put(positionKey(PrefixPending, uint64(i)), value)
	}
	return nil
}
