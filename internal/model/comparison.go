package model

import "time"

// ComparisonCacheEntry 两道题目之间的 AI 相似度判断缓存，写入后不再更新
type ComparisonCacheEntry struct {
	PairKey     string    `json:"pair_key" gorm:"type:varchar(80);primaryKey"`
	QuestionA   string    `json:"question_a" gorm:"type:varchar(36)"`
	QuestionB   string    `json:"question_b" gorm:"type:varchar(36)"`
	Score       int       `json:"score"`
	IsDuplicate bool      `json:"is_duplicate"`
	Reasoning   string    `json:"reasoning" gorm:"type:text"`
	Model       string    `json:"model" gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (ComparisonCacheEntry) TableName() string {
	return "comparison_cache"
}
