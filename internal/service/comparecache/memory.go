package comparecache

import (
	"context"
	"sync"

	"github.com/ashwinyue/quiz-pool/internal/logger"
)

// MemoryCache 进程内缓存，用于测试和单节点部署
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	log     *logger.Logger
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache 创建进程内缓存
func NewMemoryCache(log *logger.Logger) *MemoryCache {
	if log == nil {
		log = logger.NewNop()
	}
	return &MemoryCache{
		entries: make(map[string]*Entry),
		log:     log,
	}
}

// Lookup 查询缓存
func (c *MemoryCache) Lookup(_ context.Context, idA, idB string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[PairKey(idA, idB)]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// Store 写入缓存
func (c *MemoryCache) Store(_ context.Context, idA, idB string, v Verdict) error {
	e := newEntry(idA, idB, v)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[e.PairKey]; ok {
		c.log.Debug("comparison already cached, ignoring write", "pair_key", e.PairKey)
		return nil
	}
	c.entries[e.PairKey] = e
	return nil
}

// Len 缓存记录数
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
