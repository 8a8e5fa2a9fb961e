package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashwinyue/quiz-pool/internal/handler"
	"github.com/ashwinyue/quiz-pool/internal/logger"
	"github.com/ashwinyue/quiz-pool/internal/middleware"
)

// Options 路由选项
type Options struct {
	AllowOrigins []string
	// Ready 健康检查时调用，返回错误表示依赖不可用
	Ready func(c *gin.Context) error
}

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, log *logger.Logger, opts Options) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware(log))
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(log))
	r.Use(middleware.CORSMiddleware(opts.AllowOrigins))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		if opts.Ready != nil {
			if err := opts.Ready(c); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1
	v1 := r.Group("/api/v1")
	{
		// Pool 题库
		pools := v1.Group("/pools")
		{
			pools.GET("", h.Pool.ListPools)
			pools.POST("/merge", h.Pool.Merge)
			pools.POST("/upload", h.Pool.Upload)
			pools.GET("/:id", h.Pool.GetPool)
			pools.GET("/:id/batches", h.Pool.ListBatches)
			pools.GET("/:id/questions", h.Question.ListQuestions)
		}

		// Batch 上传批次
		v1.GET("/batches/:id", h.Pool.GetBatch)

		// Question 题目
		v1.POST("/questions/:id/attempts", h.Question.RecordAttempt)

		// System 系统
		v1.GET("/system/info", h.System.GetSystemInfo)
	}

	return r
}
