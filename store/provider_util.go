package store

import (
	"sort"

	"github.com/mezonai/zakat/db"
	"github.com/mezonai/zakat/jsonx"
	"github.com/pkg/errors"
)

type record struct {
	key   string
	value []byte
}

// scanSorted collects every record under prefix in key order. Redis SCAN
// returns keys unordered, so order is restored here for all backends.
func scanSorted(provider db.IterableProvider, prefix string) ([]record, error) {
	var out []record
	err := provider.IteratePrefix([]byte(prefix), func(key, value []byte) bool {
		out = append(out, record{key: string(key), value: append([]byte(nil), value...)})
		return true
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to iterate prefix %s", prefix)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out, nil
}

// decodeAll decodes the JSON records under prefix in key order.
func decodeAll[T any](provider db.IterableProvider, prefix string) ([]*T, error) {
	records, err := scanSorted(provider, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(records))
	for _, r := range records {
		item := new(T)
		if err := jsonx.Unmarshal(r.value, item); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal %s", r.key)
		}
		out = append(out, item)
	}
	return out, nil
}

// deletePrefix schedules the removal of every key under prefix.
func deletePrefix(provider db.IterableProvider, batch db.DatabaseBatch, prefix string) error {
	records, err := scanSorted(provider, prefix)
	if err != nil {
		return err
	}
	for _, r := range records {
		batch.Delete([]byte(r.key))
	}
	return nil
}
