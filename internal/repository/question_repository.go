package repository

import (
	"context"

	"github.com/ashwinyue/quiz-pool/internal/model"
	"gorm.io/gorm"
)

// questionRepositoryImpl 题目数据访问
type questionRepositoryImpl struct {
	db *gorm.DB
}

// NewQuestionRepository 创建题目仓库
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepositoryImpl{db: db}
}

// CreateBatch 批量创建题目
func (r *questionRepositoryImpl) CreateBatch(ctx context.Context, questions []*model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(questions, 100).Error
}

// GetByID 获取题目
func (r *questionRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Question, error) {
	var q model.Question
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&q).Error; err != nil {
		return nil, translateError(err)
	}
	return &q, nil
}

// ListCanonical 列出题库中的非重复题目
func (r *questionRepositoryImpl) ListCanonical(ctx context.Context, poolID string) ([]*model.Question, error) {
	var questions []*model.Question
	err := r.db.WithContext(ctx).
		Where("pool_id = ? AND is_duplicate = ?", poolID, false).
		Order("created_at ASC, id ASC").
		Find(&questions).Error
	return questions, err
}

// ListDuplicates 列出重复题目，只取匹配所需字段
func (r *questionRepositoryImpl) ListDuplicates(ctx context.Context, poolID string) ([]*model.Question, error) {
	var questions []*model.Question
	err := r.db.WithContext(ctx).
		Select("id", "fingerprint", "duplicate_of").
		Where("pool_id = ? AND is_duplicate = ?", poolID, true).
		Order("created_at ASC, id ASC").
		Find(&questions).Error
	return questions, err
}

// List 分页列出题目
func (r *questionRepositoryImpl) List(ctx context.Context, poolID string, includeDuplicates bool, offset, limit int) ([]*model.Question, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Question{}).Where("pool_id = ?", poolID)
	if !includeDuplicates {
		query = query.Where("is_duplicate = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var questions []*model.Question
	err := query.Order("created_at ASC, id ASC").Offset(offset).Limit(limit).Find(&questions).Error
	return questions, total, err
}

// CountStats 统计题库计数
func (r *questionRepositoryImpl) CountStats(ctx context.Context, poolID string) (model.PoolStats, error) {
	var total, unique int64
	db := r.db.WithContext(ctx).Model(&model.Question{})
	if err := db.Where("pool_id = ?", poolID).Count(&total).Error; err != nil {
		return model.PoolStats{}, err
	}
	if err := r.db.WithContext(ctx).Model(&model.Question{}).
		Where("pool_id = ? AND is_duplicate = ?", poolID, false).
		Count(&unique).Error; err != nil {
		return model.PoolStats{}, err
	}
	return model.PoolStats{
		TotalCount:     int(total),
		UniqueCount:    int(unique),
		DuplicateCount: int(total - unique),
	}, nil
}

// RecordAttempt 记录一次作答结果
func (r *questionRepositoryImpl) RecordAttempt(ctx context.Context, id string, correct bool) (*model.Question, error) {
	column := "times_incorrect"
	if correct {
		column = "times_correct"
	}
	result := r.db.WithContext(ctx).Model(&model.Question{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"times_shown": gorm.Expr("times_shown + ?", 1),
			column:        gorm.Expr(column+" + ?", 1),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}
