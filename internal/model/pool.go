package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Pool 题库，同一主题下的题目集合，Name 为合并键
type Pool struct {
	ID             string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name           string    `json:"name" gorm:"type:varchar(255);uniqueIndex;not null"`
	Category       string    `json:"category" gorm:"type:varchar(100);index"`
	Description    string    `json:"description" gorm:"type:text"`
	TotalCount     int       `json:"total_count" gorm:"default:0"`
	UniqueCount    int       `json:"unique_count" gorm:"default:0"`
	DuplicateCount int       `json:"duplicate_count" gorm:"default:0"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (p *Pool) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (Pool) TableName() string {
	return "pools"
}

// PoolStats 从题目记录重新统计的题库计数
type PoolStats struct {
	TotalCount     int `json:"total_count"`
	UniqueCount    int `json:"unique_count"`
	DuplicateCount int `json:"duplicate_count"`
}

// Apply 写入题库计数
func (s PoolStats) Apply(p *Pool) {
	p.TotalCount = s.TotalCount
	p.UniqueCount = s.UniqueCount
	p.DuplicateCount = s.DuplicateCount
}
