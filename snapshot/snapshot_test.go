package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mezonai/zakat/jsonx"
	"github.com/mezonai/zakat/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minedLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(ledger.DefaultConfig("C001"))
	require.NoError(t, err)
	require.NoError(t, l.Register("C002", decimal.NewFromInt(200)))
	_, err = l.SubmitTransfer("C001", "C002", decimal.NewFromInt(40))
	require.NoError(t, err)
	_, err = l.Mine(context.Background(), "C002", 1, 10*time.Second)
	require.NoError(t, err)
	return l
}

func TestExportImport(t *testing.T) {
	l := minedLedger(t)
	path := filepath.Join(t.TempDir(), "out", "ledger.json")
	require.NoError(t, Export(path, l.Snapshot()))

	imported, err := Import(path, ledger.DefaultConfig("C001"))
	require.NoError(t, err)
	assert.Equal(t, l.Seed(), imported.Seed())
	assert.Equal(t, l.Height(), imported.Height())
	for _, n := range l.Nodes() {
		got, err := imported.Balance(n.ID)
		require.NoError(t, err)
		assert.True(t, got.Equal(n.Balance))
	}
}

func rewrite(t *testing.T, path string, edit func(*SnapshotFile)) {
	t.Helper()
	file, err := ReadSnapshot(path)
	require.NoError(t, err)
	edit(file)
	data, err := jsonx.Marshal(file)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestImportRejectsEditedBalance(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Export(path, minedLedger(t).Snapshot()))

	rewrite(t, path, func(f *SnapshotFile) {
		f.Ledger.Nodes[0].Balance = decimal.NewFromInt(1_000_000)
	})
	_, err := Import(path, ledger.DefaultConfig("C001"))
	assert.ErrorContains(t, err, "registry digest")

	// recomputing the digest does not help: the chain replay disagrees
	rewrite(t, path, func(f *SnapshotFile) {
		f.Meta.RegistryDigest = ComputeRegistryDigest(f.Ledger.Nodes)
	})
	_, err = Import(path, ledger.DefaultConfig("C001"))
	assert.Error(t, err)
}

func TestImportRejectsTamperedBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Export(path, minedLedger(t).Snapshot()))

	rewrite(t, path, func(f *SnapshotFile) {
		f.Ledger.Blocks[1].Transactions[0].Amount = decimal.NewFromInt(1)
	})
	_, err := Import(path, ledger.DefaultConfig("C001"))
	assert.ErrorContains(t, err, "invalid")
}

func TestWriteLatestCleansUp(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "snapshot-old.json")
	require.NoError(t, os.WriteFile(stale, []byte("{}"), 0644))

	path, err := WriteLatest(dir, minedLedger(t).Snapshot())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), path)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, path)
}
