package store

import "fmt"

// Declare database key prefix for objects
const (
	PrefixNode    = "node:"
	PrefixBlock   = "blk:"
	PrefixPending = "pending:"

	PrefixStateMeta    = "state_meta:"
	StateMetaKeyLedger = "ledger"
	StateMetaKeyLatest = "latest_block"
	PrefixStateHash    = "state_hash:"
)

// Positional keys are zero padded so that lexical order is numeric order on
// backends that iterate in key order.
func positionKey(prefix string, pos uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefix, pos))
}

func metaKey(name string) []byte {
	return []byte(PrefixStateMeta + name)
}
