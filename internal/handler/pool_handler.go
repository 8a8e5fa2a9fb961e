package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/quiz-pool/internal/logger"
	"github.com/ashwinyue/quiz-pool/internal/service"
	"github.com/ashwinyue/quiz-pool/internal/service/extraction"
	"github.com/ashwinyue/quiz-pool/internal/service/pool"
	"github.com/ashwinyue/quiz-pool/internal/service/types"
)

const defaultMaxUploadSize = 32 << 20

// PoolHandler 题库处理器
type PoolHandler struct {
	svc *service.Services
	log *logger.Logger
}

// NewPoolHandler 创建题库处理器
func NewPoolHandler(svc *service.Services, log *logger.Logger) *PoolHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &PoolHandler{svc: svc, log: log.With("component", "pool_handler")}
}

// MergeRequest 合并请求
type MergeRequest struct {
	PoolName    string            `json:"pool_name" binding:"required"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	SourceFiles []string          `json:"source_files"`
	Semantic    *bool             `json:"semantic"`
	Candidates  []types.Candidate `json:"candidates"`
}

// Merge 合并已抽取的候选题目
// @Summary      合并候选题目
// @Tags         题库
// @Accept       json
// @Produce      json
// @Param        request  body      MergeRequest  true  "合并请求"
// @Success      201      {object}  SuccessResponse
// @Router       /pools/merge [post]
func (h *PoolHandler) Merge(c *gin.Context) {
	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	h.merge(c, &pool.MergeRequest{
		PoolName:    req.PoolName,
		Category:    req.Category,
		Description: req.Description,
		SourceFiles: req.SourceFiles,
		Candidates:  req.Candidates,
		Semantic:    req.Semantic,
	})
}

// Upload 上传文档，抽取题目后合并
// @Summary      上传文档
// @Tags         题库
// @Accept       multipart/form-data
// @Produce      json
// @Param        pool_name    formData  string  true   "题库名称"
// @Param        category     formData  string  false  "分类"
// @Param        description  formData  string  false  "描述"
// @Param        semantic     formData  bool    false  "是否启用语义检测"
// @Param        files        formData  file    true   "文档"
// @Success      201          {object}  SuccessResponse
// @Router       /pools/upload [post]
func (h *PoolHandler) Upload(c *gin.Context) {
	if h.svc.Extractor == nil {
		ServiceUnavailable(c, "document extraction is not configured")
		return
	}

	maxSize := int64(defaultMaxUploadSize)
	if h.svc.Config != nil && h.svc.Config.Server.MaxUploadSize > 0 {
		maxSize = h.svc.Config.Server.MaxUploadSize
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Code: 413, Msg: fmt.Sprintf("upload exceeds %d bytes", maxSize)})
			return
		}
		BadRequest(c, err.Error())
		return
	}

	poolName := c.PostForm("pool_name")
	if strings.TrimSpace(poolName) == "" {
		BadRequest(c, "pool_name is required")
		return
	}
	// 抽取之前拒绝，避免白白调用模型
	if strings.TrimSpace(poolName) != poolName {
		BadRequest(c, "pool_name must not have leading or trailing whitespace")
		return
	}
	var semantic *bool
	if v := c.PostForm("semantic"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(c, "semantic must be a boolean")
			return
		}
		semantic = &b
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		BadRequest(c, "at least one file is required")
		return
	}
	names := make([]string, 0, len(headers))
	for _, fh := range headers {
		if !extraction.Supported(fh.Filename) {
			BadRequest(c, fmt.Sprintf("unsupported file type: %s", fh.Filename))
			return
		}
		names = append(names, fh.Filename)
	}

	files, closeAll, err := openFiles(headers)
	if err != nil {
		Error(c, err)
		return
	}
	defer closeAll()

	candidates, err := h.svc.Extractor.ExtractFiles(c.Request.Context(), files)
	if err != nil {
		h.log.Warn("extraction failed", "pool", poolName, "files", names, "error", err)
		Error(c, err)
		return
	}

	h.merge(c, &pool.MergeRequest{
		PoolName:    poolName,
		Category:    c.PostForm("category"),
		Description: c.PostForm("description"),
		SourceFiles: names,
		Candidates:  candidates,
		Semantic:    semantic,
	})
}

func (h *PoolHandler) merge(c *gin.Context, req *pool.MergeRequest) {
	result, err := h.svc.Pool.Merge(c.Request.Context(), req)
	if err != nil {
		if result != nil && result.Batch != nil {
			h.log.Error("merge failed", "pool", req.PoolName, "batch_id", result.Batch.ID, "error", err)
		}
		Error(c, err)
		return
	}
	Created(c, result)
}

func openFiles(headers []*multipart.FileHeader) ([]extraction.File, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	files := make([]extraction.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		files = append(files, extraction.File{Name: fh.Filename, Reader: f})
	}
	return files, closeAll, nil
}

// ListPools 列出题库
// @Summary      题库列表
// @Tags         题库
// @Produce      json
// @Param        category  query  string  false  "分类"
// @Param        page      query  int     false  "页码"
// @Param        size      query  int     false  "每页数量"
// @Router       /pools [get]
func (h *PoolHandler) ListPools(c *gin.Context) {
	page, size := getPagination(c)

	pools, total, err := h.svc.Pool.ListPools(c.Request.Context(), &pool.ListPoolsRequest{
		Category: c.Query("category"),
		Page:     page,
		Size:     size,
	})
	if err != nil {
		Error(c, err)
		return
	}

	SuccessWithPagination(c, pools, total, page, size)
}

// GetPool 获取题库
// @Summary      题库详情
// @Tags         题库
// @Produce      json
// @Param        id  path  string  true  "题库ID"
// @Router       /pools/{id} [get]
func (h *PoolHandler) GetPool(c *gin.Context) {
	p, err := h.svc.Pool.GetPool(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, p)
}

// ListBatches 列出题库的上传批次
// @Summary      上传批次列表
// @Tags         题库
// @Produce      json
// @Param        id  path  string  true  "题库ID"
// @Router       /pools/{id}/batches [get]
func (h *PoolHandler) ListBatches(c *gin.Context) {
	page, size := getPagination(c)

	batches, total, err := h.svc.Pool.ListBatches(c.Request.Context(), c.Param("id"), page, size)
	if err != nil {
		Error(c, err)
		return
	}

	SuccessWithPagination(c, batches, total, page, size)
}

// GetBatch 获取上传批次
// @Summary      上传批次详情
// @Tags         题库
// @Produce      json
// @Param        id  path  string  true  "批次ID"
// @Router       /batches/{id} [get]
func (h *PoolHandler) GetBatch(c *gin.Context) {
	batch, err := h.svc.Pool.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, batch)
}
