package comparecache

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashwinyue/quiz-pool/internal/logger"
	"github.com/ashwinyue/quiz-pool/internal/model"
	"github.com/ashwinyue/quiz-pool/internal/repository"
)

// StoreCache 数据库持久化缓存，重启后仍然有效
type StoreCache struct {
	repo repository.ComparisonRepository
	log  *logger.Logger
}

var _ Cache = (*StoreCache)(nil)

// NewStoreCache 创建数据库缓存
func NewStoreCache(repo repository.ComparisonRepository, log *logger.Logger) *StoreCache {
	if log == nil {
		log = logger.NewNop()
	}
	return &StoreCache{repo: repo, log: log}
}

// Lookup 查询缓存
func (c *StoreCache) Lookup(ctx context.Context, idA, idB string) (*Entry, error) {
	row, err := c.repo.Get(ctx, PairKey(idA, idB))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load comparison: %w", err)
	}
	return &Entry{
		Verdict: Verdict{
			Score:       row.Score,
			IsDuplicate: row.IsDuplicate,
			Reasoning:   row.Reasoning,
			Model:       row.Model,
		},
		PairKey:   row.PairKey,
		QuestionA: row.QuestionA,
		QuestionB: row.QuestionB,
		CreatedAt: row.CreatedAt,
	}, nil
}

// Store 写入缓存
func (c *StoreCache) Store(ctx context.Context, idA, idB string, v Verdict) error {
	e := newEntry(idA, idB, v)
	created, err := c.repo.CreateIfAbsent(ctx, &model.ComparisonCacheEntry{
		PairKey:     e.PairKey,
		QuestionA:   e.QuestionA,
		QuestionB:   e.QuestionB,
		Score:       v.Score,
		IsDuplicate: v.IsDuplicate,
		Reasoning:   v.Reasoning,
		Model:       v.Model,
	})
	if err != nil {
		return fmt.Errorf("save comparison: %w", err)
	}
	if !created {
		c.log.Debug("comparison already cached, ignoring write", "pair_key", e.PairKey, "tier", "database")
	}
	return nil
}
