package comparecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/quiz-pool/internal/logger"
)

// Redis key 前缀
const redisKeyPrefix = "quiz_pool:cmp:"

// RedisCache 基于 Redis 的共享缓存，多实例部署时共用
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration // 0 表示不过期
	log    *logger.Logger
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache 创建 Redis 缓存
func NewRedisCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCache {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, log: log}
}

func (c *RedisCache) key(pairKey string) string {
	return redisKeyPrefix + pairKey
}

// Lookup 查询缓存
func (c *RedisCache) Lookup(ctx context.Context, idA, idB string) (*Entry, error) {
	data, err := c.client.Get(ctx, c.key(PairKey(idA, idB))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &e, nil
}

// Store 写入缓存，使用 SETNX 保证首次写入生效
func (c *RedisCache) Store(ctx context.Context, idA, idB string, v Verdict) error {
	e := newEntry(idA, idB, v)
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	ok, err := c.client.SetNX(ctx, c.key(e.PairKey), data, c.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		c.log.Debug("comparison already cached, ignoring write", "pair_key", e.PairKey, "tier", "redis")
	}
	return nil
}
