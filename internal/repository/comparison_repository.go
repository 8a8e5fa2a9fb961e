package repository

import (
	"context"

	"github.com/ashwinyue/quiz-pool/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// comparisonRepositoryImpl 比对缓存数据访问
type comparisonRepositoryImpl struct {
	db *gorm.DB
}

// NewComparisonRepository 创建比对缓存仓库
func NewComparisonRepository(db *gorm.DB) ComparisonRepository {
	return &comparisonRepositoryImpl{db: db}
}

// Get 按配对键获取缓存
func (r *comparisonRepositoryImpl) Get(ctx context.Context, pairKey string) (*model.ComparisonCacheEntry, error) {
	var entry model.ComparisonCacheEntry
	if err := r.db.WithContext(ctx).Where("pair_key = ?", pairKey).First(&entry).Error; err != nil {
		return nil, translateError(err)
	}
	return &entry, nil
}

// CreateIfAbsent 写入缓存，已存在时保留原记录
func (r *comparisonRepositoryImpl) CreateIfAbsent(ctx context.Context, entry *model.ComparisonCacheEntry) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
