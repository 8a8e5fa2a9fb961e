// Package testutil 提供测试辅助工具
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ashwinyue/quiz-pool/internal/database"
	"github.com/ashwinyue/quiz-pool/internal/service/types"
)

// NewTestDB 创建已迁移的内存数据库，测试结束时关闭
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	db, err := database.OpenInMemory(name)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// TimeoutContext 返回带超时的 context，测试结束时取消
func TimeoutContext(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

// CanceledContext 返回已取消的 context
func CanceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// Candidate 构造第 i 道互不相同的四选一候选题目
func Candidate(topic string, i int) types.Candidate {
	return types.Candidate{
		Text: fmt.Sprintf("%s question %d: what is %d + %d?", topic, i, i, i+1),
		Choices: []string{
			fmt.Sprintf("%d", 2*i),
			fmt.Sprintf("%d", 2*i+1),
			fmt.Sprintf("%d", 2*i+2),
			fmt.Sprintf("%d", 2*i+3),
		},
		CorrectIndex: 1,
		Explanation:  fmt.Sprintf("%d + %d = %d", i, i+1, 2*i+1),
		SourceFile:   strings.ToLower(strings.ReplaceAll(topic, " ", "_")) + ".pdf",
	}
}

// Candidates 构造 n 道互不相同的候选题目
func Candidates(topic string, n int) []types.Candidate {
	out := make([]types.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Candidate(topic, i))
	}
	return out
}
