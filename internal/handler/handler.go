package handler

import (
	"github.com/ashwinyue/quiz-pool/internal/logger"
	"github.com/ashwinyue/quiz-pool/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Pool     *PoolHandler
	Question *QuestionHandler
	System   *SystemHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services, log *logger.Logger) *Handlers {
	return &Handlers{
		Pool:     NewPoolHandler(svc, log),
		Question: NewQuestionHandler(svc),
		System:   NewSystemHandler(svc),
	}
}
