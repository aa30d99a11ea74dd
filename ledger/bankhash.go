package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/mezonai/zakat/types"
)

// ComputeNodesDeltaHash computes a deterministic hash over the entries a block
// touched. Each record is encoded as len|field for id, balance, levy paid and
// levy received, followed by the 8-byte transaction count. Entries are sorted
// by id for determinism.
func ComputeNodesDeltaHash(updated []*types.Node) [32]byte {
	if len(updated) == 0 {
		return [32]byte{}
	}
	h := sha256.New()

	sorted := make([]*types.Node, len(updated))
	copy(sorted, updated)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	buf := make([]byte, 8)
	writeField := func(s string) {
		binary.BigEndian.PutUint64(buf, uint64(len(s)))
		h.Write(buf)
		h.Write([]byte(s))
	}
	for _, n := range sorted {
		writeField(n.ID.String())
		writeField(n.Balance.String())
		writeField(n.LevyPaid.String())
		writeField(n.LevyReceived.String())
		binary.BigEndian.PutUint64(buf, n.TxCount)
		h.Write(buf)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// CombineBankHash combines previous bank hash and delta hash to produce new bank hash.
// new = SHA256(prev || delta). If prev is zero, returns delta.
func CombineBankHash(prev [32]byte, delta [32]byte) [32]byte {
	if isZeroHash(prev) {
		return delta
	}
	h := sha256.New()
	h.Write(prev[:])
	h.Write(delta[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func isZeroHash(h [32]byte) bool {
	for _, b := range h {
		if b != 0 {
			return false
		}
	}
	return true
}

func encodeBankHashes(hashes [][32]byte) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = hex.EncodeToString(h[:])
	}
	return out
}

func decodeBankHashes(encoded []string) ([][32]byte, error) {
	out := make([][32]byte, len(encoded))
	for i, s := range encoded {
		raw, err := hex.DecodeString(s)
		if err != nil || len(raw) != sha256.Size {
			return nil, fmt.Errorf("bank hash %d is malformed", i)
		}
		copy(out[i][:], raw)
	}
	return out, nil
}
