package store

import (
	"sync"

	"github.com/mezonai/zakat/block"
	"github.com/mezonai/zakat/db"
	"github.com/mezonai/zakat/jsonx"
	"github.com/mezonai/zakat/logx"
	"github.com/pkg/errors"
)

// BlockStore persists committed blocks by index. Blocks are append-only:
// once stored, an index is never rewritten.
type BlockStore interface {
	Block(index uint64) (*block.Block, error)
	HasBlock(index uint64) (bool, error)
	Blocks() ([]*block.Block, error)
	AddBlocks(batch db.DatabaseBatch, blocks []*block.Block) error
}

// GenericBlockStore is a database-agnostic implementation that uses DatabaseProvider
type GenericBlockStore struct {
	mu       sync.RWMutex
	provider db.IterableProvider
}

func NewGenericBlockStore(provider db.IterableProvider) (*GenericBlockStore, error) {
	if provider == nil {
		return nil, errors.New("provider cannot be nil")
	}
	return &GenericBlockStore{provider: provider}, nil
}

// Block retrieves a block by index, or nil if it is not stored
func (s *GenericBlockStore) Block(index uint64) (*block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, err := s.provider.Get(positionKey(PrefixBlock, index))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get block %d", index)
	}
	if value == nil {
		return nil, nil
	}
	var blk block.Block
	if err := jsonx.Unmarshal(value, &blk); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal block %d", index)
	}
	return &blk, nil
}

func (s *GenericBlockStore) HasBlock(index uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider.Has(positionKey(PrefixBlock, index))
}

// Blocks returns every stored block in index order
func (s *GenericBlockStore) Blocks() ([]*block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decodeAll[block.Block](s.provider, PrefixBlock)
}

// AddBlocks schedules the blocks not stored yet into batch
func (s *GenericBlockStore) AddBlocks(batch db.DatabaseBatch, blocks []*block.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, b := range blocks {
		key := positionKey(PrefixBlock, b.Index)
		exists, err := s.provider.Has(key)
		if err != nil {
			return errors.Wrapf(err, "failed to check block %d", b.Index)
		}
		if exists {
			continue
		}
		value, err := jsonx.Marshal(b)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal block %d", b.Index)
		}
		batch.Put(key, value)
		added++
	}
	logx.Debug("BLOCKSTORE", "Scheduled", added, "new block(s)")
	return nil
}
