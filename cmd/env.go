package cmd

import (
	"fmt"
	"time"

	"github.com/mezonai/zakat/block"
	"github.com/mezonai/zakat/config"
	"github.com/mezonai/zakat/events"
	"github.com/mezonai/zakat/ledger"
	"github.com/mezonai/zakat/store"
)

// env bundles everything a command needs: the parsed configuration, the
// opened store and, once loaded, the ledger.
type env struct {
	ledgerCfg ledger.Config
	mining    *config.MiningConfig
	storeCfg  *config.StoreConfig
	store     *store.ChainStore
	ledger    *ledger.Ledger
}

func loadConfigs() (ledger.Config, *config.MiningConfig, *config.StoreConfig, error) {
	genesis, err := config.LoadGenesisConfig(genesisPath)
	if err != nil {
		return ledger.Config{}, nil, nil, err
	}
	lc, err := config.LoadLedgerConfig(configPath)
	if err != nil {
		return ledger.Config{}, nil, nil, err
	}
	mc, err := config.LoadMiningConfig(configPath)
	if err != nil {
		return ledger.Config{}, nil, nil, err
	}
	sc, err := config.LoadStoreConfig(configPath)
	if err != nil {
		return ledger.Config{}, nil, nil, err
	}
	if storeType != "" {
		sc.Type = storeType
	}
	if dataDir != "" {
		sc.Directory = dataDir
	}
	cfg, err := ledger.ConfigFromFiles(genesis, lc, mc)
	if err != nil {
		return ledger.Config{}, nil, nil, fmt.Errorf("ledger config: %w", err)
	}
	return cfg, mc, sc, nil
}

// openEnv loads the configuration and opens the store. With load set it also
// restores the stored ledger, failing when none was initialised.
func openEnv(load bool, bus *events.EventBus) (*env, error) {
	cfg, mc, sc, err := loadConfigs()
	if err != nil {
		return nil, err
	}
	cfg.EventBus = bus
	cs, err := store.OpenChainStore(sc)
	if err != nil {
		return nil, err
	}
	e := &env{ledgerCfg: cfg, mining: mc, storeCfg: sc, store: cs}
	if !load {
		return e, nil
	}

	snap, err := cs.Load()
	if err != nil {
		cs.MustClose()
		if err == store.ErrNoLedger {
			return nil, fmt.Errorf("no ledger in %s store, run `zakat init` first", sc.Type)
		}
		return nil, err
	}
	if e.ledger, err = ledger.Restore(cfg, snap); err != nil {
		cs.MustClose()
		return nil, fmt.Errorf("restore ledger: %w", err)
	}
	return e, nil
}

func (e *env) save() error {
	return e.store.Save(e.ledger.Snapshot())
}

func (e *env) close() {
	e.store.MustClose()
}

// withLedger runs fn against the stored ledger and saves the result when fn
// succeeds and save is set.
func withLedger(save bool, fn func(e *env) error) error {
	e, err := openEnv(true, nil)
	if err != nil {
		return err
	}
	defer e.close()

	if err := fn(e); err != nil {
		return err
	}
	if save {
		if err := e.save(); err != nil {
			return fmt.Errorf("save ledger: %w", err)
		}
	}
	return nil
}

func (e *env) difficulty(override int) block.Difficulty {
	if override >= 0 {
		return block.Difficulty(override)
	}
	return block.Difficulty(e.mining.Difficulty)
}

func (e *env) timeout(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return time.Duration(e.mining.TimeoutMs) * time.Millisecond
}
