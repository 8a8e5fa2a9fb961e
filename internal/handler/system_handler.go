package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/quiz-pool/internal/service"
)

// SystemHandler 系统处理器
type SystemHandler struct {
	svc *service.Services
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(svc *service.Services) *SystemHandler {
	return &SystemHandler{svc: svc}
}

// SystemInfo 系统信息
type SystemInfo struct {
	Name                string   `json:"name"`
	Version             string   `json:"version"`
	Environment         string   `json:"environment"`
	SemanticEnabled     bool     `json:"semantic_enabled"`
	SimilarityThreshold int      `json:"similarity_threshold"`
	SampleCap           int      `json:"sample_cap"`
	DegradedPolicy      string   `json:"degraded_policy"`
	CascadeModels       []string `json:"cascade_models"`
	UploadEnabled       bool     `json:"upload_enabled"`
	RedisEnabled        bool     `json:"redis_enabled"`
}

// GetSystemInfo 获取系统信息
// GET /api/v1/system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfo{
		CascadeModels: []string{},
		UploadEnabled: h.svc.Extractor != nil,
	}
	if h.svc.Cascade != nil {
		info.CascadeModels = h.svc.Cascade.Models()
	}
	if cfg := h.svc.Config; cfg != nil {
		info.Name = cfg.App.Name
		info.Version = cfg.App.Version
		info.Environment = cfg.App.Environment
		info.SemanticEnabled = cfg.Dedup.SemanticEnabled && h.svc.Cascade != nil
		info.SimilarityThreshold = cfg.Dedup.SimilarityThreshold
		info.SampleCap = cfg.Dedup.SampleCap
		info.DegradedPolicy = cfg.Dedup.DegradedPolicy
		info.RedisEnabled = cfg.Redis.Enabled
	}

	Success(c, info)
}
