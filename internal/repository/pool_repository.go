package repository

import (
	"context"

	"github.com/ashwinyue/quiz-pool/internal/model"
	"gorm.io/gorm"
)

// poolRepositoryImpl 题库数据访问
type poolRepositoryImpl struct {
	db *gorm.DB
}

// NewPoolRepository 创建题库仓库
func NewPoolRepository(db *gorm.DB) PoolRepository {
	return &poolRepositoryImpl{db: db}
}

// Create 创建题库
func (r *poolRepositoryImpl) Create(ctx context.Context, pool *model.Pool) error {
	return r.db.WithContext(ctx).Create(pool).Error
}

// GetByID 获取题库
func (r *poolRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Pool, error) {
	var pool model.Pool
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&pool).Error; err != nil {
		return nil, translateError(err)
	}
	return &pool, nil
}

// GetByName 按名称获取题库
func (r *poolRepositoryImpl) GetByName(ctx context.Context, name string) (*model.Pool, error) {
	var pool model.Pool
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&pool).Error; err != nil {
		return nil, translateError(err)
	}
	return &pool, nil
}

// List 列出题库，category 为空时不过滤
func (r *poolRepositoryImpl) List(ctx context.Context, category string, offset, limit int) ([]*model.Pool, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Pool{})
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var pools []*model.Pool
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&pools).Error
	return pools, total, err
}

// UpdateMetadata 更新题库分类和描述
func (r *poolRepositoryImpl) UpdateMetadata(ctx context.Context, poolID, category, description string) error {
	result := r.db.WithContext(ctx).Model(&model.Pool{}).
		Where("id = ?", poolID).
		Updates(map[string]interface{}{
			"category":    category,
			"description": description,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStats 写入题库计数
func (r *poolRepositoryImpl) UpdateStats(ctx context.Context, poolID string, stats model.PoolStats) error {
	result := r.db.WithContext(ctx).Model(&model.Pool{}).
		Where("id = ?", poolID).
		Updates(map[string]interface{}{
			"total_count":     stats.TotalCount,
			"unique_count":    stats.UniqueCount,
			"duplicate_count": stats.DuplicateCount,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
