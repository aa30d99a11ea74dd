package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mezonai/zakat/config"
	"github.com/mezonai/zakat/db"
)

// StoreType represents the type of store implementation
type StoreType string

const (
	// LevelDBStoreType uses the LevelDB implementation
	LevelDBStoreType StoreType = "leveldb"

	// RedisStoreType uses the Redis implementation
	RedisStoreType StoreType = "redis"

	// BoltStoreType uses a single bbolt file inside Directory
	BoltStoreType StoreType = "bolt"

	// MemoryStoreType keeps everything in process memory
	MemoryStoreType StoreType = "memory"
)

const (
	boltFileName   = "ledger.bolt"
	redisNamespace = "zakat:"
)

// Validate validates the store configuration
func Validate(sc *config.StoreConfig) error {
	if sc == nil {
		return fmt.Errorf("config cannot be nil")
	}
	switch StoreType(sc.Type) {
	case LevelDBStoreType, BoltStoreType:
		if sc.Directory == "" {
			return fmt.Errorf("directory cannot be empty")
		}
	case RedisStoreType:
		if sc.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
	case MemoryStoreType:
	default:
		return fmt.Errorf("unsupported store type: %s", sc.Type)
	}
	return nil
}

// CreateProvider creates a database provider based on the configuration
func CreateProvider(sc *config.StoreConfig) (db.IterableProvider, error) {
	if err := Validate(sc); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch StoreType(sc.Type) {
	case LevelDBStoreType:
		return db.NewLevelDBProvider(sc.Directory)

	case BoltStoreType:
		if err := os.MkdirAll(sc.Directory, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", sc.Directory, err)
		}
		return db.NewBoltProvider(filepath.Join(sc.Directory, boltFileName))

	case RedisStoreType:
		return db.NewRedisProvider(sc.RedisAddr, sc.RedisDB, redisNamespace)

	case MemoryStoreType:
		return db.NewMemoryProvider()

	default:
		return nil, fmt.Errorf("unsupported store type: %s", sc.Type)
	}
}

// OpenChainStore creates the provider described by sc and a ChainStore on it
func OpenChainStore(sc *config.StoreConfig) (*ChainStore, error) {
	provider, err := CreateProvider(sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	cs, err := NewChainStore(provider)
	if err != nil {
		provider.Close()
		return nil, err
	}
	return cs, nil
}
