package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/quiz-pool/internal/service"
	"github.com/ashwinyue/quiz-pool/internal/service/pool"
)

// QuestionHandler 题目处理器
type QuestionHandler struct {
	svc *service.Services
}

// NewQuestionHandler 创建题目处理器
func NewQuestionHandler(svc *service.Services) *QuestionHandler {
	return &QuestionHandler{svc: svc}
}

// ListQuestions 列出题库中的题目，默认不含重复题
// @Summary      题目列表
// @Tags         题目
// @Produce      json
// @Param        id                  path   string  true   "题库ID"
// @Param        include_duplicates  query  bool    false  "是否包含重复题"
// @Router       /pools/{id}/questions [get]
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	page, size := getPagination(c)
	includeDuplicates, _ := strconv.ParseBool(c.DefaultQuery("include_duplicates", "false"))

	questions, total, err := h.svc.Pool.ListQuestions(c.Request.Context(), &pool.ListQuestionsRequest{
		PoolID:            c.Param("id"),
		IncludeDuplicates: includeDuplicates,
		Page:              page,
		Size:              size,
	})
	if err != nil {
		Error(c, err)
		return
	}

	SuccessWithPagination(c, questions, total, page, size)
}

// AttemptRequest 答题记录请求
type AttemptRequest struct {
	Correct *bool `json:"correct" binding:"required"`
}

// RecordAttempt 记录一次作答
// @Summary      记录作答
// @Tags         题目
// @Accept       json
// @Produce      json
// @Param        id       path  string          true  "题目ID"
// @Param        request  body  AttemptRequest  true  "作答结果"
// @Router       /questions/{id}/attempts [post]
func (h *QuestionHandler) RecordAttempt(c *gin.Context) {
	var req AttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	q, err := h.svc.Pool.RecordAttempt(c.Request.Context(), c.Param("id"), *req.Correct)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, q)
}
