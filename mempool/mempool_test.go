package mempool

import (
	"sync"
	"testing"
	"time"

	zerrors "github.com/mezonai/zakat/errors"
	"github.com/mezonai/zakat/transaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gift(t *testing.T, amount int64) *transaction.Transaction {
	t.Helper()
	tx, err := transaction.NewGift("C001", "C002", decimal.NewFromInt(amount), time.Now())
	require.NoError(t, err)
	return tx
}

func TestMempoolFIFO(t *testing.T) {
	mp := NewMempool(0)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, mp.Add(gift(t, i)))
	}
	assert.Equal(t, 5, mp.Len())

	batch, head := mp.GetBatch(3)
	require.Len(t, batch, 3)
	assert.Equal(t, uint64(0), head)
	for i, tx := range batch {
		assert.Equal(t, int64(i+1), tx.Amount.IntPart())
	}

	require.True(t, mp.RemoveBatch(head, len(batch)))
	assert.Equal(t, 2, mp.Len())
	assert.Equal(t, uint64(3), mp.Head())

	// a batch taken at an outdated head cannot be removed twice
	assert.False(t, mp.RemoveBatch(head, 2))
	assert.Equal(t, 2, mp.Len())

	all, _ := mp.GetBatch(0)
	assert.Equal(t, int64(4), all[0].Amount.IntPart())
}

func TestMempoolLimitIsAtomic(t *testing.T) {
	mp := NewMempool(3)
	require.NoError(t, mp.Add(gift(t, 1), gift(t, 2)))

	err := mp.Add(gift(t, 3), gift(t, 4))
	assert.ErrorIs(t, err, zerrors.ErrMempoolFull)
	assert.Equal(t, 2, mp.Len())

	require.NoError(t, mp.Add(gift(t, 3)))
	assert.ErrorIs(t, mp.Add(gift(t, 4)), zerrors.ErrMempoolFull)
}

func TestMempoolAllReturnsCopies(t *testing.T) {
	mp := NewMempool(0)
	require.NoError(t, mp.Add(gift(t, 7)))

	all := mp.All()
	all[0].Amount = decimal.NewFromInt(700)
	assert.Equal(t, int64(7), mp.All()[0].Amount.IntPart())
}

func TestMempoolConcurrentAdd(t *testing.T) {
	mp := NewMempool(0)
	tx := gift(t, 1)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = mp.Add(tx.Clone())
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, mp.Len())
}
