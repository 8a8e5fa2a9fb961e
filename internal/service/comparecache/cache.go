// Package comparecache 两道题目之间 AI 相似度判断的记忆化缓存
//
// 缓存键与比较顺序无关，(A,B) 与 (B,A) 命中同一条记录。写入幂等，首次写入后不再覆盖。
// 缓存只用于控制成本，清空不影响去重结果的正确性。
package comparecache

import (
	"context"
	"time"
)

// Verdict 一次相似度判断的结果
type Verdict struct {
	Score       int    `json:"score"`
	IsDuplicate bool   `json:"is_duplicate"`
	Reasoning   string `json:"reasoning"`
	Model       string `json:"model"`
}

// Entry 缓存记录
type Entry struct {
	Verdict
	PairKey   string    `json:"pair_key"`
	QuestionA string    `json:"question_a"`
	QuestionB string    `json:"question_b"`
	CreatedAt time.Time `json:"created_at"`
}

// Cache 比对缓存
type Cache interface {
	// Lookup 查询缓存，未命中时返回 nil, nil
	Lookup(ctx context.Context, idA, idB string) (*Entry, error)
	// Store 写入缓存，同一对题目重复写入时忽略
	Store(ctx context.Context, idA, idB string, v Verdict) error
}

// PairKey 返回与顺序无关的配对键
func PairKey(idA, idB string) string {
	if idB < idA {
		idA, idB = idB, idA
	}
	return idA + "|" + idB
}

// newEntry 按规范顺序构造缓存记录
func newEntry(idA, idB string, v Verdict) *Entry {
	if idB < idA {
		idA, idB = idB, idA
	}
	return &Entry{
		Verdict:   v,
		PairKey:   idA + "|" + idB,
		QuestionA: idA,
		QuestionB: idB,
		CreatedAt: time.Now().UTC(),
	}
}
