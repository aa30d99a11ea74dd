package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadGenesisConfig(t *testing.T) {
	path := write(t, "genesis.yml", `config:
  creator: "C001"
  participants:
    - id: "C002"
      balance: "150.5"
`)
	cfg, err := LoadGenesisConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "C001", cfg.Creator)
	assert.Equal(t, DefaultOpeningBalance, cfg.OpeningBalance)
	assert.Equal(t, DefaultFund, cfg.Fund)
	require.Len(t, cfg.Participants, 1)
	assert.Equal(t, "150.5", cfg.Participants[0].Balance)

	_, err = LoadGenesisConfig(write(t, "empty.yml", "config: {}\n"))
	assert.Error(t, err)
	_, err = LoadGenesisConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadIniSections(t *testing.T) {
	path := write(t, "config.ini", `[ledger]
levy_rate = 0.05
explicit_transfer_levy = true

[mining]
difficulty = 3
min_difficulty = 2
miner = C007

[store]
type = bolt
directory = /tmp/zakat
`)
	lc, err := LoadLedgerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.05", lc.LevyRate)
	assert.Equal(t, DefaultMiningReward, lc.MiningReward)
	assert.True(t, lc.ExplicitTransferLevy)

	mc, err := LoadMiningConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, mc.Difficulty)
	assert.Equal(t, 2, mc.MinDifficulty)
	assert.Equal(t, uint64(DefaultMaxAttempts), mc.MaxAttempts)
	assert.Equal(t, "C007", mc.Miner)

	sc, err := LoadStoreConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "bolt", sc.Type)
	assert.Equal(t, DefaultRedisAddr, sc.RedisAddr)
}

func TestLoadMiningConfigRejectsInvertedBounds(t *testing.T) {
	path := write(t, "config.ini", "[mining]\ndifficulty = 1\nmin_difficulty = 3\n")
	_, err := LoadMiningConfig(path)
	assert.Error(t, err)
}

func TestLoadAPIConfig(t *testing.T) {
	cfg, err := LoadAPIConfig(write(t, "config.ini", "[api]\nparticipant_rate_limit = 3\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, 3, cfg.ParticipantRateLimit)
	assert.Equal(t, 50, cfg.IPRateLimit)

	_, err = LoadAPIConfig(write(t, "bad.ini", "[api]\nip_rate_limit = -1\n"))
	assert.Error(t, err)
}
