package config

const (
	DefaultFund           = "Zakat_Fund"
	DefaultOpeningBalance = "200"
	DefaultLevyRate       = "0.025"
	DefaultMiningReward   = "10"
	DefaultDifficulty     = 2
	DefaultMaxAttempts    = 50_000_000
	DefaultTimeoutMs      = 30_000
	DefaultStoreType      = "leveldb"
	DefaultStoreDirectory = "./data/ledger"
	DefaultRedisAddr      = "localhost:6379"
	DefaultListenAddr     = ":8080"
)

func DefaultLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		LevyRate:     DefaultLevyRate,
		MiningReward: DefaultMiningReward,
	}
}

func DefaultMiningConfig() *MiningConfig {
	return &MiningConfig{
		Difficulty:  DefaultDifficulty,
		MaxAttempts: DefaultMaxAttempts,
		TimeoutMs:   DefaultTimeoutMs,
	}
}

func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Type:      DefaultStoreType,
		Directory: DefaultStoreDirectory,
		RedisAddr: DefaultRedisAddr,
	}
}

func DefaultAPIConfig() *APIConfig {
	return &APIConfig{
		ListenAddr:           DefaultListenAddr,
		IPRateLimit:          50,
		ParticipantRateLimit: 10,
		GlobalRateLimit:      1000,
	}
}
