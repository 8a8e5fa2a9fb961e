// Package similarity 使用大模型判断两道题目是否语义重复
//
// 每个模型实现同一个 Comparer 接口，Cascade 按成本从低到高依次尝试，第一个成功的结果直接返回。
package similarity

import (
	"context"
	"errors"
)

var (
	// ErrCascadeExhausted 级联中所有模型都失败
	ErrCascadeExhausted = errors.New("similarity cascade exhausted")
	// ErrMalformedResponse 模型响应无法解析或分数越界
	ErrMalformedResponse = errors.New("malformed similarity response")
)

// Question 参与比对的题目
type Question struct {
	ID      string
	Text    string
	Choices []string
}

// Result 相似度判断结果
type Result struct {
	Score       int    // 0-100
	IsDuplicate bool   // 模型给出的判断
	Reasoning   string
	Model       string // 实际给出判断的模型
}

// Comparer 比较两道题目的相似度
type Comparer interface {
	Name() string
	Compare(ctx context.Context, a, b Question) (*Result, error)
}
