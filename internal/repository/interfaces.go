// Package repository 定义数据访问接口
// 接口抽象使依赖注入和单元测试成为可能
package repository

import (
	"context"

	"github.com/ashwinyue/quiz-pool/internal/model"
)

// ========== PoolRepository 接口 ==========

// PoolRepository 题库数据访问接口
type PoolRepository interface {
	Create(ctx context.Context, pool *model.Pool) error
	GetByID(ctx context.Context, id string) (*model.Pool, error)
	GetByName(ctx context.Context, name string) (*model.Pool, error)
	List(ctx context.Context, category string, offset, limit int) ([]*model.Pool, int64, error)
	UpdateMetadata(ctx context.Context, poolID, category, description string) error
	UpdateStats(ctx context.Context, poolID string, stats model.PoolStats) error
}

// 确保 poolRepositoryImpl 实现了接口
var _ PoolRepository = (*poolRepositoryImpl)(nil)

// ========== QuestionRepository 接口 ==========

// QuestionRepository 题目数据访问接口
type QuestionRepository interface {
	CreateBatch(ctx context.Context, questions []*model.Question) error
	GetByID(ctx context.Context, id string) (*model.Question, error)
	// ListCanonical 返回题库中所有非重复题目，按创建顺序排列
	ListCanonical(ctx context.Context, poolID string) ([]*model.Question, error)
	// ListDuplicates 返回题库中重复题目的 id、指纹和所指向的规范题目
	ListDuplicates(ctx context.Context, poolID string) ([]*model.Question, error)
	List(ctx context.Context, poolID string, includeDuplicates bool, offset, limit int) ([]*model.Question, int64, error)
	// CountStats 从题目记录重新统计题库计数
	CountStats(ctx context.Context, poolID string) (model.PoolStats, error)
	RecordAttempt(ctx context.Context, id string, correct bool) (*model.Question, error)
}

// 确保 questionRepositoryImpl 实现了接口
var _ QuestionRepository = (*questionRepositoryImpl)(nil)

// ========== BatchRepository 接口 ==========

// BatchRepository 上传批次数据访问接口
type BatchRepository interface {
	Create(ctx context.Context, batch *model.UploadBatch) error
	GetByID(ctx context.Context, id string) (*model.UploadBatch, error)
	ListByPool(ctx context.Context, poolID string, offset, limit int) ([]*model.UploadBatch, int64, error)
	// Finalize 写入批次最终状态，只能从 processing 转换一次
	Finalize(ctx context.Context, batch *model.UploadBatch) error
}

// 确保 batchRepositoryImpl 实现了接口
var _ BatchRepository = (*batchRepositoryImpl)(nil)

// ========== ComparisonRepository 接口 ==========

// ComparisonRepository 比对缓存数据访问接口，记录只增不改
type ComparisonRepository interface {
	Get(ctx context.Context, pairKey string) (*model.ComparisonCacheEntry, error)
	// CreateIfAbsent 键已存在时不覆盖，返回是否写入
	CreateIfAbsent(ctx context.Context, entry *model.ComparisonCacheEntry) (bool, error)
}

// 确保 comparisonRepositoryImpl 实现了接口
var _ ComparisonRepository = (*comparisonRepositoryImpl)(nil)
