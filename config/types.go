package config

// Participant is a node registered at ledger creation.
type Participant struct {
	ID      string `yaml:"id"`
	Balance string `yaml:"balance"`
}

// GenesisConfig holds the configuration from genesis.yml
type GenesisConfig struct {
	Creator        string        `yaml:"creator"`
	OpeningBalance string        `yaml:"opening_balance"`
	Fund           string        `yaml:"fund"`
	Participants   []Participant `yaml:"participants"`
}

// ConfigFile is the top-level structure for genesis.yml
type ConfigFile struct {
	Config GenesisConfig `yaml:"config"`
}

// LedgerConfig is the [ledger] section of config.ini.
type LedgerConfig struct {
	LevyRate             string `ini:"levy_rate"`
	MiningReward         string `ini:"mining_reward"`
	ExplicitTransferLevy bool   `ini:"explicit_transfer_levy"`
	MaxPending           int    `ini:"max_pending"`
}

// MiningConfig is the [mining] section of config.ini.
type MiningConfig struct {
	Difficulty     int    `ini:"difficulty"`
	MinDifficulty  int    `ini:"min_difficulty"`
	MaxAttempts    uint64 `ini:"max_attempts"`
	TimeoutMs      int    `ini:"timeout_ms"`
	AutoIntervalMs int    `ini:"auto_interval_ms"`
	Miner          string `ini:"miner"`
}

// StoreConfig is the [store] section of config.ini.
type StoreConfig struct {
	Type      string `ini:"type"`
	Directory string `ini:"directory"`
	RedisAddr string `ini:"redis_addr"`
	RedisDB   int    `ini:"redis_db"`
}

// APIConfig is the [api] section of config.ini. Limits are requests per
// second; 0 disables the corresponding limit.
type APIConfig struct {
	ListenAddr           string `ini:"listen_addr"`
	IPRateLimit          int    `ini:"ip_rate_limit"`
	ParticipantRateLimit int    `ini:"participant_rate_limit"`
	GlobalRateLimit      int    `ini:"global_rate_limit"`
}
