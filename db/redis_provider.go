package db

import (
	"context"
	"fmt"

	"github.com/mezonai/zakat/logx"
	"github.com/redis/go-redis/v9"
)

// RedisProvider implements IterableProvider for Redis. All keys live under
// a namespace so several ledgers can share one server.
type RedisProvider struct {
	client    *redis.Client
	ctx       context.Context
	namespace string
}

// NewRedisProvider connects to address, selecting database dbIndex
func NewRedisProvider(address string, dbIndex int, namespace string) (*RedisProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr: address,
		DB:   dbIndex,
	})

	ctx := context.Background()

	// Test connection
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logx.Info("REDIS", fmt.Sprintf("Connected | addr=%s | db=%d | namespace=%s", address, dbIndex, namespace))
	return &RedisProvider{
		client:    client,
		ctx:       ctx,
		namespace: namespace,
	}, nil
}

func (p *RedisProvider) redisKey(key []byte) string {
	return p.namespace + string(key)
}

func (p *RedisProvider) Get(key []byte) ([]byte, error) {
	value, err := p.client.Get(p.ctx, p.redisKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return value, nil
}

// GetBatch fetches every key with a single MGET
func (p *RedisProvider) GetBatch(keys [][]byte) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = p.redisKey(k)
	}
	values, err := p.client.MGet(p.ctx, redisKeys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		result[string(keys[i])] = []byte(s)
	}
	return result, nil
}

func (p *RedisProvider) Put(key, value []byte) error {
	logx.Debug("REDIS", "Put key:", p.redisKey(key), "value length:", len(value))
	return p.client.Set(p.ctx, p.redisKey(key), value, 0).Err()
}

func (p *RedisProvider) Delete(key []byte) error {
	return p.client.Del(p.ctx, p.redisKey(key)).Err()
}

func (p *RedisProvider) Has(key []byte) (bool, error) {
	count, err := p.client.Exists(p.ctx, p.redisKey(key)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *RedisProvider) Close() error {
	return p.client.Close()
}

// Batch returns a MULTI/EXEC pipeline so a write lands all at once
func (p *RedisProvider) Batch() DatabaseBatch {
	return &RedisBatch{
		provider: p,
		pipe:     p.client.TxPipeline(),
	}
}

// IteratePrefix implements IterableProvider for Redis using SCAN. Keys are
// handed to the callback without the namespace. Order is not guaranteed.
func (p *RedisProvider) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	pattern := p.redisKey(prefix) + "*"
	var cursor uint64
	for {
		keys, newCursor, err := p.client.Scan(p.ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return err
		}
		cursor = newCursor
		for _, k := range keys {
			val, err := p.client.Get(p.ctx, k).Bytes()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				return err
			}
			if !fn([]byte(k[len(p.namespace):]), val) {
				return nil
			}
		}
		if cursor == 0 {
			break
		}
	}
	return nil
}

// RedisBatch implements DatabaseBatch for Redis
type RedisBatch struct {
	provider *RedisProvider
	pipe     redis.Pipeliner
}

func (b *RedisBatch) Put(key, value []byte) {
	b.pipe.Set(b.provider.ctx, b.provider.redisKey(key), value, 0)
}

func (b *RedisBatch) Delete(key []byte) {
	b.pipe.Del(b.provider.ctx, b.provider.redisKey(key))
}

func (b *RedisBatch) Write() error {
	_, err := b.pipe.Exec(b.provider.ctx)
	return err
}

func (b *RedisBatch) Reset() {
	b.pipe.Discard()
	b.pipe = b.provider.client.TxPipeline()
}

func (b *RedisBatch) Close() {
	b.pipe.Discard()
}
