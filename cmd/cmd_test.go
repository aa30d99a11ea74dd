package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mezonai/zakat/config"
	"github.com/mezonai/zakat/ledger"
	"github.com/mezonai/zakat/snapshot"
	"github.com/mezonai/zakat/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigIni = `[ledger]
levy_rate = 0.025
mining_reward = 10

[mining]
difficulty = 1
min_difficulty = 1
timeout_ms = 10000
miner = C001
`

const testGenesis = `config:
  creator: "C001"
  opening_balance: "200"
  fund: "Zakat_Fund"
  participants:
    - id: "C002"
      balance: "200"
`

type fixture struct {
	dir  string
	args []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.ini")
	gen := filepath.Join(dir, "genesis.yml")
	require.NoError(t, os.WriteFile(cfg, []byte(testConfigIni), 0o644))
	require.NoError(t, os.WriteFile(gen, []byte(testGenesis), 0o644))
	return &fixture{
		dir: dir,
		args: []string{
			"--config", cfg, "--genesis", gen,
			"--store", "bolt", "--data-dir", filepath.Join(dir, "data"),
		},
	}
}

func (f *fixture) run(args ...string) error {
	rootCmd.SetArgs(append(append([]string{}, args...), f.args...))
	return rootCmd.ExecuteContext(context.Background())
}

func (f *fixture) load(t *testing.T) *ledger.Ledger {
	t.Helper()
	cs, err := store.OpenChainStore(&config.StoreConfig{Type: "bolt", Directory: filepath.Join(f.dir, "data")})
	require.NoError(t, err)
	defer cs.MustClose()
	snap, err := cs.Load()
	require.NoError(t, err)
	l, err := ledger.Restore(ledger.DefaultConfig("C001"), snap)
	require.NoError(t, err)
	return l
}

func TestCLIWorkflow(t *testing.T) {
	f := newFixture(t)

	require.Error(t, f.run("show"), "nothing initialised yet")
	require.NoError(t, f.run("init"))
	require.Error(t, f.run("init"), "init refuses to overwrite")

	require.NoError(t, f.run("register", "C003", "--balance", "50"))
	require.NoError(t, f.run("transfer", "-f", "C001", "-t", "C002", "-a", "100"))
	require.NoError(t, f.run("gift", "-f", "C002", "-t", "C003", "-a", "5"))
	require.Error(t, f.run("transfer", "-f", "C003", "-t", "C001", "-a", "1000"))
	require.NoError(t, f.run("mine", "-m", "C002", "-d", "1"))
	require.NoError(t, f.run("levy", "-f", "C003"))
	require.NoError(t, f.run("validate", "-q"))
	require.NoError(t, f.run("show", "-p"))
	require.NoError(t, f.run("history", "-n", "C002"))
	require.NoError(t, f.run("blocks"))

	l := f.load(t)
	assert.Equal(t, uint64(1), l.Height())
	assert.Len(t, l.Pending(), 1)
	bal, err := l.Balance("C001")
	require.NoError(t, err)
	assert.Equal(t, "97.5", bal.String())
	bal, err = l.Balance("C002")
	require.NoError(t, err)
	assert.Equal(t, "305", bal.String()) // 200 + 100 - 5 + 10
	bal, err = l.Balance("Zakat_Fund")
	require.NoError(t, err)
	assert.Equal(t, "2.5", bal.String())
}

func TestCLIExportImport(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.run("init"))
	require.NoError(t, f.run("transfer", "-f", "C002", "-t", "C001", "-a", "40"))
	require.NoError(t, f.run("mine", "-m", "C001", "-d", "1"))

	out := filepath.Join(f.dir, "export", "ledger.json")
	require.NoError(t, f.run("export", out))
	assert.FileExists(t, out)

	require.NoError(t, f.run("deactivate", "C002"))
	require.Error(t, f.run("import", out), "import refuses to overwrite")
	require.NoError(t, f.run("import", out, "--force"))

	l := f.load(t)
	node, err := l.Node("C002")
	require.NoError(t, err)
	assert.True(t, node.Active, "import restored the exported state")
	require.NoError(t, l.Validate())

	t.Cleanup(func() { exportDir = "" })
	dir := filepath.Dir(out)
	require.Error(t, f.run("export", out, "--dir", dir), "file and --dir are exclusive")
	require.NoError(t, f.run("export", "--dir", dir))
	assert.FileExists(t, filepath.Join(dir, snapshot.FileName))
	assert.NoFileExists(t, out, "older snapshots are dropped")
}
