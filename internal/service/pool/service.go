// Package pool 题库合并与查询
package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashwinyue/quiz-pool/internal/config"
	"github.com/ashwinyue/quiz-pool/internal/logger"
	"github.com/ashwinyue/quiz-pool/internal/model"
	"github.com/ashwinyue/quiz-pool/internal/repository"
	"github.com/ashwinyue/quiz-pool/internal/service/lock"
	"github.com/ashwinyue/quiz-pool/internal/service/semantic"
)

var (
	// ErrPersistence 写入失败，批次已标记为 failed，可整体重试
	ErrPersistence = errors.New("persistence failed")
	// ErrInvalidRequest 请求参数错误
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound 资源不存在
	ErrNotFound = repository.ErrNotFound
)

// Config 合并配置
type Config struct {
	SemanticEnabled bool
	DegradedPolicy  string // accept | flag
}

// ConfigFromDedup 从应用配置构造
func ConfigFromDedup(cfg config.DedupConfig) Config {
	return Config{
		SemanticEnabled: cfg.SemanticEnabled,
		DegradedPolicy:  cfg.DegradedPolicy,
	}
}

// Service 题库服务
type Service struct {
	repo     *repository.Repositories
	detector *semantic.Detector // 未启用语义检测时为 nil
	locker   lock.Locker
	cfg      Config
	log      *logger.Logger
	now      func() time.Time
}

// NewService 创建题库服务
func NewService(repo *repository.Repositories, detector *semantic.Detector, locker lock.Locker, cfg Config, log *logger.Logger) *Service {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		repo:     repo,
		detector: detector,
		locker:   locker,
		cfg:      cfg,
		log:      log.With("component", "pool_service"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ListPoolsRequest 题库列表请求
type ListPoolsRequest struct {
	Category string
	Page     int
	Size     int
}

// ListPools 列出题库
func (s *Service) ListPools(ctx context.Context, req *ListPoolsRequest) ([]*model.Pool, int64, error) {
	offset, limit := pageBounds(req.Page, req.Size)
	return s.repo.Pool.List(ctx, req.Category, offset, limit)
}

// GetPool 获取题库
func (s *Service) GetPool(ctx context.Context, id string) (*model.Pool, error) {
	return s.repo.Pool.GetByID(ctx, id)
}

// ListBatches 列出题库的上传批次
func (s *Service) ListBatches(ctx context.Context, poolID string, page, size int) ([]*model.UploadBatch, int64, error) {
	if _, err := s.repo.Pool.GetByID(ctx, poolID); err != nil {
		return nil, 0, err
	}
	offset, limit := pageBounds(page, size)
	return s.repo.Batch.ListByPool(ctx, poolID, offset, limit)
}

// GetBatch 获取上传批次
func (s *Service) GetBatch(ctx context.Context, id string) (*model.UploadBatch, error) {
	return s.repo.Batch.GetByID(ctx, id)
}

// ListQuestionsRequest 题目列表请求
type ListQuestionsRequest struct {
	PoolID            string
	IncludeDuplicates bool
	Page              int
	Size              int
}

// ListQuestions 列出题库中的题目
func (s *Service) ListQuestions(ctx context.Context, req *ListQuestionsRequest) ([]*model.Question, int64, error) {
	if _, err := s.repo.Pool.GetByID(ctx, req.PoolID); err != nil {
		return nil, 0, err
	}
	offset, limit := pageBounds(req.Page, req.Size)
	return s.repo.Question.List(ctx, req.PoolID, req.IncludeDuplicates, offset, limit)
}

// RecordAttempt 记录一次作答
func (s *Service) RecordAttempt(ctx context.Context, questionID string, correct bool) (*model.Question, error) {
	q, err := s.repo.Question.RecordAttempt(ctx, questionID, correct)
	if err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}
	return q, nil
}

func pageBounds(page, size int) (offset, limit int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return (page - 1) * size, size
}
