package ledger

import (
	"context"
	"testing"

	fuzz "github.com/google/gofuzz"
	zerrors "github.com/mezonai/zakat/errors"
	"github.com/mezonai/zakat/transaction"
	"github.com/mezonai/zakat/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fuzzOp struct {
	Kind   uint8
	From   uint8
	To     uint8
	Amount uint16
	Cents  uint8
}

// TestRandomSequencesStayValid drives random submissions and mining and
// checks that the chain validates, value is conserved, and every levy is
// exactly the rate applied to the sender's balance just before it.
func TestRandomSequencesStayValid(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		f := fuzz.NewWithSeed(seed).NilChance(0)

		l := newTestLedger(t, func(c *Config) { c.ExplicitTransferLevy = seed%2 == 0 })
		ids := []types.NodeID{c001, c002, fund}
		minted := dec("400")
		for i := 0; i < 3; i++ {
			id := types.NodeID("P" + string(rune('a'+i)))
			require.NoError(t, l.Register(id, dec("50")))
			ids = append(ids, id)
			minted = minted.Add(dec("50"))
		}

		for step := 0; step < 120; step++ {
			var op fuzzOp
			f.Fuzz(&op)
			from := ids[int(op.From)%len(ids)]
			to := ids[int(op.To)%len(ids)]
			amount := decimal.New(int64(op.Amount%300)*100+int64(op.Cents%100), -2)

			switch op.Kind % 5 {
			case 0:
				_, err := l.SubmitTransfer(from, to, amount)
				checkSubmitErr(t, err)
			case 1:
				_, err := l.SubmitGift(from, to, amount)
				checkSubmitErr(t, err)
			case 2:
				before, err := l.PendingBalance(from)
				require.NoError(t, err)
				tx, err := l.SubmitLevy(from, to)
				if err != nil {
					assert.ErrorIs(t, err, zerrors.ErrInvalidAmount)
					assert.True(t, before.IsZero())
					continue
				}
				assert.Equal(t, transaction.KindLevy, tx.Kind)
				assert.True(t, tx.Levy.Equal(before.Mul(types.DefaultLevyRate)), "levy %s on %s", tx.Levy, before)
			case 3:
				_, err := l.Mine(context.Background(), ids[int(op.From)%len(ids)], 1, 0)
				require.NoError(t, err)
				minted = minted.Add(dec("10"))
			case 4:
				for _, id := range ids {
					bal, err := l.PendingBalance(id)
					require.NoError(t, err)
					assert.False(t, bal.IsNegative())
				}
			}
		}

		_, err := l.Mine(context.Background(), c001, 1, 0)
		require.NoError(t, err)
		minted = minted.Add(dec("10"))

		require.NoError(t, l.Validate(), "seed %d", seed)
		total := decimal.Zero
		for _, n := range l.Nodes() {
			assert.False(t, n.Balance.IsNegative())
			total = total.Add(n.Balance)
		}
		assert.True(t, total.Equal(minted), "seed %d: total %s, minted %s", seed, total, minted)
	}
}

func checkSubmitErr(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	switch zerrors.CodeOf(err) {
	case zerrors.ErrCodeInsufficientFunds, zerrors.ErrCodeInvalidAmount:
	default:
		t.Fatalf("unexpected rejection: %v", err)
	}
}
