package block

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mezonai/zakat/transaction"
)

// GenesisPrevHash is the predecessor digest recorded in block 0.
const GenesisPrevHash = "0"

type Block struct {
	Index        uint64                     `json:"index"`
	Transactions []*transaction.Transaction `json:"transactions"`
	PrevHash     string                     `json:"previous_hash"`
	Timestamp    time.Time                  `json:"timestamp"`
	Nonce        uint64                     `json:"nonce"`
	Hash         string                     `json:"hash"`
	Seed         string                     `json:"seed"`
	Difficulty   Difficulty                 `json:"difficulty"`
}

// AssembleBlock builds an unsealed candidate. The timestamp is fixed here and
// never touched by the nonce search.
func AssembleBlock(index uint64, prevHash, seed string, txs []*transaction.Transaction, ts time.Time) *Block {
	b := &Block{
		Index:        index,
		Transactions: txs,
		PrevHash:     prevHash,
		Timestamp:    ts,
		Seed:         seed,
	}
	b.Hash = b.ComputeHash()
	return b
}

// ComputeHash digests seed:index:transactions:prev:timestamp:nonce.
func (b *Block) ComputeHash() string {
	sum := sha256.Sum256([]byte(b.preimage(b.Nonce)))
	return hex.EncodeToString(sum[:])
}

// preimage splits the nonce-independent prefix so the search loop can reuse it.
func (b *Block) preimage(nonce uint64) string {
	return fmt.Sprintf("%s%d", b.prefix(), nonce)
}

func (b *Block) prefix() string {
	var sb strings.Builder
	sb.WriteString(b.Seed)
	sb.WriteByte(':')
	fmt.Fprintf(&sb, "%d", b.Index)
	sb.WriteByte(':')
	for i, tx := range b.Transactions {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(tx.Encode())
	}
	sb.WriteByte(':')
	sb.WriteString(b.PrevHash)
	sb.WriteByte(':')
	fmt.Fprintf(&sb, "%d", b.Timestamp.UnixNano())
	sb.WriteByte(':')
	return sb.String()
}

// IsGenesis reports whether b is the first block of a chain.
func (b *Block) IsGenesis() bool {
	return b.Index == 0
}

// Clone returns a deep copy whose transactions can be mutated independently.
func (b *Block) Clone() *Block {
	cp := *b
	cp.Transactions = make([]*transaction.Transaction, len(b.Transactions))
	for i, tx := range b.Transactions {
		cp.Transactions[i] = tx.Clone()
	}
	return &cp
}

func (b *Block) ShortHash() string {
	if len(b.Hash) <= 12 {
		return b.Hash
	}
	return b.Hash[:12]
}
