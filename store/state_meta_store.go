package store

import (
	"encoding/binary"
	"time"

	"github.com/mezonai/zakat/block"
	"github.com/mezonai/zakat/db"
	"github.com/mezonai/zakat/jsonx"
	"github.com/mezonai/zakat/types"
	"github.com/pkg/errors"
)

// LedgerMeta is the fixed metadata of a stored ledger.
type LedgerMeta struct {
	Seed          string           `json:"seed"`
	Creator       types.NodeID     `json:"creator"`
	Fund          types.NodeID     `json:"fund"`
	CreatedAt     time.Time        `json:"created_at"`
	MinDifficulty block.Difficulty `json:"min_difficulty"`
}

// StateMetaStore stores ledger metadata, the latest stored block index and
// the state hash recorded after every block.
// Keys:
// - PrefixStateMeta + StateMetaKeyLedger => JSON LedgerMeta
// - PrefixStateMeta + StateMetaKeyLatest => 8-byte big-endian index
// - PrefixStateHash + <padded index>     => hex state hash
type StateMetaStore interface {
	LedgerMeta() (*LedgerMeta, error)
	LatestIndex() (uint64, bool, error)
	StateHashes() ([]string, error)
	PutMeta(batch db.DatabaseBatch, meta *LedgerMeta, latest uint64, stateHashes []string) error
}

type GenericStateMetaStore struct {
	provider db.IterableProvider
}

func NewGenericStateMetaStore(provider db.IterableProvider) (*GenericStateMetaStore, error) {
	if provider == nil {
		return nil, errors.New("provider cannot be nil")
	}
	return &GenericStateMetaStore{provider: provider}, nil
}

// LedgerMeta returns nil when no ledger is stored
func (s *GenericStateMetaStore) LedgerMeta() (*LedgerMeta, error) {
	value, err := s.provider.Get(metaKey(StateMetaKeyLedger))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get ledger meta")
	}
	if value == nil {
		return nil, nil
	}
	var meta LedgerMeta
	if err := jsonx.Unmarshal(value, &meta); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal ledger meta")
	}
	return &meta, nil
}

func (s *GenericStateMetaStore) LatestIndex() (uint64, bool, error) {
	value, err := s.provider.Get(metaKey(StateMetaKeyLatest))
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to get latest block index")
	}
	if value == nil {
		return 0, false, nil
	}
	if len(value) != 8 {
		return 0, false, errors.Errorf("invalid latest block value length: %d", len(value))
	}
	return binary.BigEndian.Uint64(value), true, nil
}

func (s *GenericStateMetaStore) StateHashes() ([]string, error) {
	records, err := scanSorted(s.provider, PrefixStateHash)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = string(r.value)
	}
	return out, nil
}

func (s *GenericStateMetaStore) PutMeta(batch db.DatabaseBatch, meta *LedgerMeta, latest uint64, stateHashes []string) error {
	value, err := jsonx.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, "failed to marshal ledger meta")
	}
	batch.Put(metaKey(StateMetaKeyLedger), value)

	latestValue := make([]byte, 8)
	binary.BigEndian.PutUint64(latestValue, latest)
	batch.Put(metaKey(StateMetaKeyLatest), latestValue)

	for i, h := range stateHashes {
		batch.Put(positionKey(PrefixStateHash, uint64(i)), []byte(h))
	}
	return nil
}
