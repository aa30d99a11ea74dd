package store

import (
	"github.com/mezonai/zakat/db"
	"github.com/mezonai/zakat/jsonx"
	"github.com/mezonai/zakat/types"
	"github.com/pkg/errors"
)

// NodeStore persists registry entries keyed by registration position, so
// loading them back preserves registration order.
type NodeStore interface {
	Nodes() ([]*types.Node, error)
	ReplaceNodes(batch db.DatabaseBatch, nodes []*types.Node) error
}

type GenericNodeStore struct {
	provider db.IterableProvider
}

func NewGenericNodeStore(provider db.IterableProvider) (*GenericNodeStore, error) {
	if provider == nil {
		return nil, errors.New("provider cannot be nil")
	}
	return &GenericNodeStore{provider: provider}, nil
}

func (s *GenericNodeStore) Nodes() ([]*types.Node, error) {
	return decodeAll[types.Node](s.provider, PrefixNode)
}

// ReplaceNodes schedules the full registry into batch
func (s *GenericNodeStore) ReplaceNodes(batch db.DatabaseBatch, nodes []*types.Node) error {
	if err := deletePrefix(s.provider, batch, PrefixNode); err != nil {
		return err
	}
	for i, n := range nodes {
		value, err := jsonx.Marshal(n)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal node %s", n.ID)
		}
		batch.Put(positionKey(PrefixNode, uint64(i)), value)
	}
	return nil
}
