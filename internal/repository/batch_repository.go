package repository

import (
	"context"

	"github.com/ashwinyue/quiz-pool/internal/model"
	"gorm.io/gorm"
)

// batchRepositoryImpl 上传批次数据访问
type batchRepositoryImpl struct {
	db *gorm.DB
}

// NewBatchRepository 创建批次仓库
func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepositoryImpl{db: db}
}

// Create 创建批次
func (r *batchRepositoryImpl) Create(ctx context.Context, batch *model.UploadBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

// GetByID 获取批次
func (r *batchRepositoryImpl) GetByID(ctx context.Context, id string) (*model.UploadBatch, error) {
	var batch model.UploadBatch
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&batch).Error; err != nil {
		return nil, translateError(err)
	}
	return &batch, nil
}

// ListByPool 列出题库的批次，最新的在前
func (r *batchRepositoryImpl) ListByPool(ctx context.Context, poolID string, offset, limit int) ([]*model.UploadBatch, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.UploadBatch{}).Where("pool_id = ?", poolID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var batches []*model.UploadBatch
	err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&batches).Error
	return batches, total, err
}

// Finalize 写入批次最终状态
func (r *batchRepositoryImpl) Finalize(ctx context.Context, batch *model.UploadBatch) error {
	result := r.db.WithContext(ctx).Model(&model.UploadBatch{}).
		Where("id = ? AND status = ?", batch.ID, model.BatchStatusProcessing).
		Updates(map[string]interface{}{
			"extracted_count":        batch.ExtractedCount,
			"duplicates_found":       batch.DuplicatesFound,
			"unique_added":           batch.UniqueAdded,
			"exact_duplicates":       batch.ExactDuplicates,
			"semantic_duplicates":    batch.SemanticDuplicates,
			"rejected_count":         batch.RejectedCount,
			"rejections":             batch.Rejections,
			"unverified_comparisons": batch.UnverifiedComparisons,
			"degraded":               batch.Degraded,
			"status":                 batch.Status,
			"error_detail":           batch.ErrorDetail,
			"completed_at":           batch.CompletedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBatchFinalized
	}
	return nil
}
