package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrBatchFinalized 批次已结束，不能再修改
	ErrBatchFinalized = errors.New("batch already finalized")
)

// Repositories 仓库集合，用于统一管理所有仓库
type Repositories struct {
	DB         *gorm.DB // 直接访问数据库
	Pool       PoolRepository
	Question   QuestionRepository
	Batch      BatchRepository
	Comparison ComparisonRepository
}

// NewRepositories 创建所有仓库
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:         db,
		Pool:       NewPoolRepository(db),
		Question:   NewQuestionRepository(db),
		Batch:      NewBatchRepository(db),
		Comparison: NewComparisonRepository(db),
	}
}

// Transaction 在同一事务中执行 fn，fn 返回错误时整体回滚
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// translateError 将 gorm 的未找到错误统一为 ErrNotFound
func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
