package block

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"

	"github.com/holiman/uint256"
	zerrors "github.com/mezonai/zakat/errors"
)

// MaxDifficulty is the number of hex nibbles in a SHA-256 digest.
const MaxDifficulty Difficulty = 64

// ctxCheckInterval bounds how many nonces are tried between context checks.
const ctxCheckInterval = 256

// Difficulty is the required count of leading zero hex nibbles in a digest.
type Difficulty uint8

func (d Difficulty) Validate() error {
	if d > MaxDifficulty {
		return zerrors.Errorf(zerrors.ErrCodeInvalidDifficulty, "difficulty %d exceeds maximum %d", d, MaxDifficulty)
	}
	return nil
}

// Target returns the exclusive upper bound 2^(256-4d) a digest must stay under.
// It returns nil for d == 0, where every digest qualifies.
func (d Difficulty) Target() *uint256.Int {
	if d == 0 {
		return nil
	}
	return new(uint256.Int).Lsh(uint256.NewInt(1), uint(256-4*uint(d)))
}

// MetBy reports whether the raw digest satisfies the predicate.
func (d Difficulty) MetBy(digest [32]byte) bool {
	target := d.Target()
	if target == nil {
		return true
	}
	return new(uint256.Int).SetBytes32(digest[:]).Lt(target)
}

// MetByHex is MetBy for a hex-encoded digest; malformed input never qualifies.
func (d Difficulty) MetByHex(digest string) bool {
	raw, err := hex.DecodeString(digest)
	if err != nil || len(raw) != sha256.Size {
		return false
	}
	var out [32]byte
	copy(out[:], raw)
	return d.MetBy(out)
}

// SealResult reports a successful search.
type SealResult struct {
	Nonce    uint64
	Hash     string
	Attempts uint64
}

// Seal searches nonces from 0 upwards until the digest meets difficulty. The
// candidate is not modified; the caller stamps the result onto it. maxAttempts
// of 0 means unbounded, leaving ctx as the only bound.
func Seal(ctx context.Context, b *Block, difficulty Difficulty, maxAttempts uint64) (SealResult, error) {
	if err := difficulty.Validate(); err != nil {
		return SealResult{}, err
	}

	prefix := b.prefix()
	var attempts uint64
	for nonce := uint64(0); ; nonce++ {
		if maxAttempts > 0 && attempts >= maxAttempts {
			return SealResult{Attempts: attempts}, zerrors.Errorf(zerrors.ErrCodeMiningTimeout,
				"no seal for block %d at difficulty %d after %d attempts", b.Index, difficulty, attempts)
		}
		if attempts%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return SealResult{Attempts: attempts}, contextError(err, b.Index, attempts)
			}
		}

		attempts++
		digest := sha256.Sum256([]byte(fmt.Sprintf("%s%d", prefix, nonce)))
		if difficulty.MetBy(digest) {
			return SealResult{Nonce: nonce, Hash: hex.EncodeToString(digest[:]), Attempts: attempts}, nil
		}
	}
}

// Apply stamps a seal onto the candidate.
func (b *Block) Apply(res SealResult, difficulty Difficulty) {
	b.Nonce = res.Nonce
	b.Hash = res.Hash
	b.Difficulty = difficulty
}

// Verify recomputes the digest and checks it against the stored hash and the
// recorded difficulty.
func (b *Block) Verify() error {
	if computed := b.ComputeHash(); computed != b.Hash {
		return fmt.Errorf("stored hash %s does not match computed %s", b.Hash, computed)
	}
	if !b.Difficulty.MetByHex(b.Hash) {
		return fmt.Errorf("hash %s does not meet difficulty %d", b.Hash, b.Difficulty)
	}
	return nil
}

func contextError(err error, index, attempts uint64) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return zerrors.Errorf(zerrors.ErrCodeMiningTimeout, "deadline reached for block %d after %d attempts", index, attempts)
	}
	return zerrors.Errorf(zerrors.ErrCodeMiningCanceled, "mining of block %d canceled after %d attempts", index, attempts)
}
