package ledger

import (
	"fmt"

	"github.com/mezonai/zakat/block"
	zerrors "github.com/mezonai/zakat/errors"
	"github.com/mezonai/zakat/registry"
	"github.com/mezonai/zakat/types"
)

// Validate runs ValidateChain and then VerifyBalances and returns the first
// finding, an *errors.IntegrityError, or nil. It only reads committed state
// and may run while a nonce search is in flight.
func (l *Ledger) Validate() error {
	if err := l.ValidateChain(); err != nil {
		return err
	}
	return l.VerifyBalances()
}

// ValidateChain walks the chain from genesis. For each block it recomputes
// the digest, checks it against the stored digest and the difficulty the
// block was sealed at, then checks the link to the predecessor.
func (l *Ledger) ValidateChain() error {
	l.mu.RLock()
	chain := append([]*block.Block(nil), l.chain...)
	l.mu.RUnlock()

	if err := verifyChain(chain, l.seed, l.cfg.MinDifficulty); err != nil {
		return err
	}
	return nil
}

// VerifyBalances replays every block into a registry holding the opening
// balances and compares the result, and the per-block state hashes, with
// the live registry.
func (l *Ledger) VerifyBalances() error {
	l.mu.RLock()
	chain := append([]*block.Block(nil), l.chain...)
	recorded := append([][32]byte(nil), l.bankHashes...)
	live := l.registry.Clone()
	replayed := l.registry.Fresh()
	l.mu.RUnlock()

	hashes, err := replay(replayed, chain, l.cfg.Fund)
	if err != nil {
		return zerrors.NewBalanceDrift(err.Error())
	}
	if diff := live.Diff(replayed); diff != "" {
		return zerrors.NewBalanceDrift(diff)
	}
	if len(hashes) != len(recorded) {
		return zerrors.NewBalanceDrift(fmt.Sprintf("%d state hashes recorded for %d blocks", len(recorded), len(hashes)))
	}
	for i := range hashes {
		if hashes[i] != recorded[i] {
			return zerrors.NewBalanceDrift(fmt.Sprintf("state hash diverges at block %d", i))
		}
	}
	return nil
}

func verifyChain(chain []*block.Block, seed string, minDifficulty block.Difficulty) *zerrors.IntegrityError {
	if len(chain) == 0 {
		return zerrors.NewLinkBreak(0, "chain has no genesis block")
	}
	for i, b := range chain {
		idx := uint64(i)
		if b.Seed != seed {
			return zerrors.NewHashMismatch(idx, fmt.Sprintf("block seed %q differs from ledger seed", b.Seed))
		}
		if computed := b.ComputeHash(); computed != b.Hash {
			return zerrors.NewHashMismatch(idx, fmt.Sprintf("stored %s, computed %s", b.Hash, computed))
		}
		if b.Difficulty < minDifficulty {
			return zerrors.NewHashMismatch(idx, fmt.Sprintf("sealed at difficulty %d, minimum is %d", b.Difficulty, minDifficulty))
		}
		if !b.Difficulty.MetByHex(b.Hash) {
			return zerrors.NewHashMismatch(idx, fmt.Sprintf("digest does not meet difficulty %d", b.Difficulty))
		}
		if b.Index != idx {
			return zerrors.NewLinkBreak(idx, fmt.Sprintf("block records index %d", b.Index))
		}
		if i == 0 {
			if b.PrevHash != block.GenesisPrevHash {
				return zerrors.NewLinkBreak(0, "genesis block has a predecessor")
			}
			continue
		}
		if b.PrevHash != chain[i-1].Hash {
			return zerrors.NewLinkBreak(idx, fmt.Sprintf("previous hash %s, block %d has %s", b.PrevHash, i-1, chain[i-1].Hash))
		}
	}
	return nil
}

// replay applies chain to reg in order and returns the state hash after
// every block.
func replay(reg *registry.Registry, chain []*block.Block, fund types.NodeID) ([][32]byte, error) {
	hashes := make([][32]byte, 0, len(chain))
	var prev [32]byte
	for _, b := range chain {
		touched, err := reg.ApplyBlock(b.Transactions, fund)
		if err != nil {
			return nil, fmt.Errorf("replay of block %d failed: %w", b.Index, err)
		}
		prev = CombineBankHash(prev, ComputeNodesDeltaHash(touched))
		hashes = append(hashes, prev)
	}
	return hashes, nil
}
