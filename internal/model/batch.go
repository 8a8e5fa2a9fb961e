package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BatchStatus 上传批次状态
type BatchStatus string

const (
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// UploadBatch 一次合并操作的审计记录，结束后不再修改
type UploadBatch struct {
	ID                    string        `json:"id" gorm:"type:varchar(36);primaryKey"`
	PoolID                string        `json:"pool_id" gorm:"type:varchar(36);index;not null"`
	SourceFiles           StringList    `json:"source_files" gorm:"type:text"`
	ExtractedCount        int           `json:"extracted_count"`
	DuplicatesFound       int           `json:"duplicates_found"`
	UniqueAdded           int           `json:"unique_added"`
	ExactDuplicates       int           `json:"exact_duplicates"`
	SemanticDuplicates    int           `json:"semantic_duplicates"`
	RejectedCount         int           `json:"rejected_count"`
	Rejections            RejectionList `json:"rejections,omitempty" gorm:"type:text"`
	UnverifiedComparisons int           `json:"unverified_comparisons"`
	Degraded              bool          `json:"degraded" gorm:"default:false"`
	Status                BatchStatus   `json:"status" gorm:"type:varchar(20);index;not null"`
	ErrorDetail           string        `json:"error_detail,omitempty" gorm:"type:text"`
	CreatedAt             time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt             time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
	CompletedAt           *time.Time    `json:"completed_at,omitempty"`
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (b *UploadBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (UploadBatch) TableName() string {
	return "upload_batches"
}

// IsFinal 批次是否已结束
func (b *UploadBatch) IsFinal() bool {
	return b.Status == BatchStatusCompleted || b.Status == BatchStatusFailed
}
