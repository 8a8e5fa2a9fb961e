package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 每道题的选项数量范围
const (
	MinChoices = 2
	MaxChoices = 6
)

// Question 题库中的一道题目
//
// IsDuplicate 为 true 时 DuplicateOf 指向同一题库中的规范题目（IsDuplicate=false），不存在重复链。
// SimilarityScore 仅由语义检测设置。
type Question struct {
	ID              string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	PoolID          string     `json:"pool_id" gorm:"type:varchar(36);index;not null"`
	Text            string     `json:"text" gorm:"type:text;not null"`
	Choices         StringList `json:"choices" gorm:"type:text;not null"`
	CorrectIndex    int        `json:"correct_index"`
	Explanation     string     `json:"explanation,omitempty" gorm:"type:text"`
	SourceFile      string     `json:"source_file" gorm:"type:varchar(255)"`
	BatchID         string     `json:"batch_id" gorm:"type:varchar(36);index"`
	Fingerprint     string     `json:"fingerprint" gorm:"type:varchar(80);index"`
	IsDuplicate     bool       `json:"is_duplicate" gorm:"index;default:false"`
	DuplicateOf     string     `json:"duplicate_of,omitempty" gorm:"type:varchar(36)"`
	SimilarityScore *int       `json:"similarity_score,omitempty"`
	TimesShown      int        `json:"times_shown" gorm:"default:0"`
	TimesCorrect    int        `json:"times_correct" gorm:"default:0"`
	TimesIncorrect  int        `json:"times_incorrect" gorm:"default:0"`
	CreatedAt       time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (Question) TableName() string {
	return "questions"
}
