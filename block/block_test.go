package block

import (
	"context"
	"strings"
	"testing"
	"time"

	zerrors "github.com/mezonai/zakat/errors"
	"github.com/mezonai/zakat/transaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func candidate(t *testing.T) *Block {
	t.Helper()
	tx, err := transaction.NewGift("C001", "C002", decimal.NewFromInt(5), ts)
	require.NoError(t, err)
	reward, err := transaction.NewMiningReward("C002", decimal.NewFromInt(10), ts)
	require.NoError(t, err)
	return AssembleBlock(1, strings.Repeat("0", 64), "seed", []*transaction.Transaction{tx, reward}, ts)
}

func TestDifficultyPredicate(t *testing.T) {
	var zero [32]byte
	assert.True(t, Difficulty(64).MetBy(zero))

	digest := [32]byte{0x00, 0x0f}
	assert.True(t, Difficulty(2).MetBy(digest))
	assert.True(t, Difficulty(3).MetBy(digest))
	assert.False(t, Difficulty(4).MetBy(digest))

	assert.True(t, Difficulty(0).MetByHex(strings.Repeat("f", 64)))
	assert.True(t, Difficulty(2).MetByHex("00"+strings.Repeat("f", 62)))
	assert.False(t, Difficulty(2).MetByHex("0f"+strings.Repeat("f", 62)))
	assert.False(t, Difficulty(1).MetByHex("not hex"))

	assert.NoError(t, MaxDifficulty.Validate())
	assert.ErrorIs(t, Difficulty(65).Validate(), zerrors.ErrInvalidDifficulty)
}

func TestSealAndVerify(t *testing.T) {
	b := candidate(t)
	res, err := Seal(context.Background(), b, 2, 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Hash, "00"))
	assert.Equal(t, res.Nonce+1, res.Attempts)

	b.Apply(res, 2)
	require.NoError(t, b.Verify())
	assert.Equal(t, b.ComputeHash(), b.Hash)

	// tampering breaks the digest
	tampered := b.Clone()
	tampered.Transactions[0].Amount = decimal.NewFromInt(500)
	assert.Error(t, tampered.Verify())
	require.NoError(t, b.Verify(), "clone is independent")

	// claiming a higher difficulty than was sealed
	claimed := b.Clone()
	claimed.Difficulty = 16
	assert.Error(t, claimed.Verify())
}

func TestSealBounds(t *testing.T) {
	b := candidate(t)
	_, err := Seal(context.Background(), b, 16, 100)
	assert.ErrorIs(t, err, zerrors.ErrMiningTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Seal(ctx, b, 16, 0)
	assert.ErrorIs(t, err, zerrors.ErrMiningCanceled)
	assert.Equal(t, uint64(0), res.Attempts)

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = Seal(ctx, b, 16, 0)
	assert.ErrorIs(t, err, zerrors.ErrMiningTimeout)

	_, err = Seal(context.Background(), b, 70, 0)
	assert.ErrorIs(t, err, zerrors.ErrInvalidDifficulty)
}

func TestDigestCoversEveryField(t *testing.T) {
	base := candidate(t)
	h := base.ComputeHash()

	mutations := map[string]func(b *Block){
		"index":     func(b *Block) { b.Index++ },
		"prev":      func(b *Block) { b.PrevHash = "1" + b.PrevHash[1:] },
		"seed":      func(b *Block) { b.Seed = "other" },
		"timestamp": func(b *Block) { b.Timestamp = b.Timestamp.Add(time.Nanosecond) },
		"nonce":     func(b *Block) { b.Nonce++ },
		"order":     func(b *Block) { b.Transactions[0], b.Transactions[1] = b.Transactions[1], b.Transactions[0] },
	}
	for name, mutate := range mutations {
		cp := base.Clone()
		mutate(cp)
		assert.NotEqual(t, h, cp.ComputeHash(), name)
	}
}
