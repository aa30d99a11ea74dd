package config

import (
	"fmt"
	"os"

	"github.com/mezonai/zakat/logx"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// LoadGenesisConfig reads and parses the genesis.yml file
func LoadGenesisConfig(path string) (*GenesisConfig, error) {
	logx.Info("CONFIG", "LoadGenesisConfig called with path: ", path)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open genesis config: %w", err)
	}
	defer file.Close()

	var cfgFile ConfigFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		return nil, fmt.Errorf("decode genesis config: %w", err)
	}

	cfg := &cfgFile.Config
	if cfg.Creator == "" {
		return nil, fmt.Errorf("genesis config %s: creator is required", path)
	}
	if cfg.OpeningBalance == "" {
		cfg.OpeningBalance = DefaultOpeningBalance
	}
	if cfg.Fund == "" {
		cfg.Fund = DefaultFund
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded genesis config: creator=%s fund=%s participants=%d", cfg.Creator, cfg.Fund, len(cfg.Participants)))
	return cfg, nil
}

// LoadLedgerConfig reads the [ledger] section, keeping defaults for absent keys.
func LoadLedgerConfig(path string) (*LedgerConfig, error) {
	ledgerCfg := DefaultLedgerConfig()
	if err := loadSection(path, "ledger", ledgerCfg); err != nil {
		return nil, err
	}
	return ledgerCfg, nil
}

func LoadMiningConfig(path string) (*MiningConfig, error) {
	miningCfg := DefaultMiningConfig()
	if err := loadSection(path, "mining", miningCfg); err != nil {
		return nil, err
	}
	if miningCfg.Difficulty < 0 || miningCfg.MinDifficulty < 0 {
		return nil, fmt.Errorf("mining difficulty must not be negative")
	}
	if miningCfg.MinDifficulty > miningCfg.Difficulty {
		return nil, fmt.Errorf("min_difficulty %d exceeds difficulty %d", miningCfg.MinDifficulty, miningCfg.Difficulty)
	}
	return miningCfg, nil
}

func LoadStoreConfig(path string) (*StoreConfig, error) {
	storeCfg := DefaultStoreConfig()
	if err := loadSection(path, "store", storeCfg); err != nil {
		return nil, err
	}
	return storeCfg, nil
}

func loadSection(path, section string, out interface{}) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if err := cfg.Section(section).MapTo(out); err != nil {
		return fmt.Errorf("map [%s] section: %w", section, err)
	}
	return nil
}

func LoadAPIConfig(path string) (*APIConfig, error) {
	apiCfg := DefaultAPIConfig()
	if err := loadSection(path, "api", apiCfg); err != nil {
		return nil, err
	}
	if apiCfg.IPRateLimit < 0 || apiCfg.ParticipantRateLimit < 0 || apiCfg.GlobalRateLimit < 0 {
		return nil, fmt.Errorf("api rate limits must not be negative")
	}
	return apiCfg, nil
}
