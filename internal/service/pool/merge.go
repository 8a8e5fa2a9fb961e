package pool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashwinyue/quiz-pool/internal/config"
	"github.com/ashwinyue/quiz-pool/internal/metrics"
	"github.com/ashwinyue/quiz-pool/internal/model"
	"github.com/ashwinyue/quiz-pool/internal/repository"
	"github.com/ashwinyue/quiz-pool/internal/service/canonical"
	"github.com/ashwinyue/quiz-pool/internal/service/semantic"
	"github.com/ashwinyue/quiz-pool/internal/service/similarity"
	"github.com/ashwinyue/quiz-pool/internal/service/types"
)

// 合并流程状态
const (
	StateCreated    = "created"
	StateMatching   = "matching"
	StatePersisting = "persisting"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

// 候选题目的处理结果
const (
	DecisionUnique            = "unique"
	DecisionExactDuplicate    = "exact_duplicate"
	DecisionSemanticDuplicate = "semantic_duplicate"
	DecisionRejected          = "rejected"
)

// MergeRequest 合并请求
type MergeRequest struct {
	PoolName    string
	Category    string
	Description string
	SourceFiles []string // 为空时取候选题目的来源文件
	Candidates  []types.Candidate
	Semantic    *bool // 覆盖全局语义检测开关
}

// CandidateOutcome 单个候选题目的处理结果
type CandidateOutcome struct {
	Index       int    `json:"index"`
	QuestionID  string `json:"question_id,omitempty"`
	Decision    string `json:"decision"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
	Score       *int   `json:"similarity_score,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// MergeResult 合并结果
type MergeResult struct {
	Pool     *model.Pool        `json:"pool"`
	Batch    *model.UploadBatch `json:"batch"`
	Outcomes []CandidateOutcome `json:"outcomes"`
}

// matchState 匹配阶段在候选题目之间传递的累积状态
type matchState struct {
	fingerprints *canonical.FingerprintSet
	canonicals   []similarity.Question // 已有及本批次已接受的非重复题目
	records      []*model.Question
	outcomes     []CandidateOutcome
	rejections   model.RejectionList

	exact      int
	semantic   int
	unique     int
	unverified int
}

// Merge 将一批候选题目合并进题库
//
// 同一题库的匹配和持久化在题库锁内串行执行。批次开始后不随调用方取消，运行到完成或失败。
// 写入失败或持有期间丢失题库锁时批次标记为 failed，返回的错误包装 ErrPersistence，结果中仍带有批次记录。
// 题库名称区分首尾空白，带首尾空白的名称直接拒绝。
func (s *Service) Merge(ctx context.Context, req *MergeRequest) (*MergeResult, error) {
	name := req.PoolName
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: pool name is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(name) != name {
		return nil, fmt.Errorf("%w: pool name %q has leading or trailing whitespace", ErrInvalidRequest, name)
	}

	lease, err := s.locker.Lock(ctx, "pool:"+name)
	if err != nil {
		return nil, fmt.Errorf("acquire pool lock: %w", err)
	}
	defer lease.Unlock()

	ctx = context.WithoutCancel(ctx)
	log := s.log.With("pool", name)

	// created
	pool, err := s.resolvePool(ctx, name, req.Category, req.Description)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve pool: %w", ErrPersistence, err)
	}
	batch := &model.UploadBatch{
		PoolID:         pool.ID,
		SourceFiles:    sourceFiles(req),
		ExtractedCount: len(req.Candidates),
		Status:         model.BatchStatusProcessing,
	}
	if err := s.repo.Batch.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("%w: create batch: %w", ErrPersistence, err)
	}
	log = log.With("pool_id", pool.ID, "batch_id", batch.ID)
	log.Info("merge state", "state", StateCreated, "candidates", len(req.Candidates))

	// matching
	log.Info("merge state", "state", StateMatching)
	st, err := s.match(ctx, pool, batch, req)
	if err != nil {
		return s.fail(ctx, pool, batch, err)
	}
	if err := lease.Err(); err != nil {
		return s.fail(ctx, pool, batch, err)
	}

	batch.DuplicatesFound = st.exact + st.semantic
	batch.ExactDuplicates = st.exact
	batch.SemanticDuplicates = st.semantic
	batch.UniqueAdded = st.unique
	batch.RejectedCount = len(st.rejections)
	batch.Rejections = st.rejections
	batch.UnverifiedComparisons = st.unverified
	batch.Degraded = st.unverified > 0 && s.cfg.DegradedPolicy == config.DegradedPolicyFlag
	if st.unverified > 0 {
		log.Warn("some comparisons were not independently verified",
			"unverified", st.unverified, "degraded", batch.Degraded)
	}

	// persisting
	log.Info("merge state", "state", StatePersisting, "records", len(st.records))
	var stats model.PoolStats
	err = s.repo.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := lease.Err(); err != nil {
			return err
		}
		if err := tx.Question.CreateBatch(ctx, st.records); err != nil {
			return fmt.Errorf("create questions: %w", err)
		}
		var err error
		if stats, err = tx.Question.CountStats(ctx, pool.ID); err != nil {
			return fmt.Errorf("count questions: %w", err)
		}
		if err := tx.Pool.UpdateStats(ctx, pool.ID, stats); err != nil {
			return fmt.Errorf("update pool stats: %w", err)
		}
		completedAt := s.now()
		batch.Status = model.BatchStatusCompleted
		batch.CompletedAt = &completedAt
		if err := tx.Batch.Finalize(ctx, batch); err != nil {
			return fmt.Errorf("finalize batch: %w", err)
		}
		// 提交前再确认一次锁仍然有效，否则回滚
		return lease.Err()
	})
	if err != nil {
		batch.Status = model.BatchStatusProcessing
		batch.CompletedAt = nil
		return s.fail(ctx, pool, batch, err)
	}

	// completed
	stats.Apply(pool)
	metrics.BatchesFinished.WithLabelValues(string(model.BatchStatusCompleted)).Inc()
	for _, o := range st.outcomes {
		metrics.BatchCandidates.WithLabelValues(o.Decision).Inc()
	}
	log.Info("merge state",
		"state", StateCompleted,
		"extracted", batch.ExtractedCount,
		"unique_added", batch.UniqueAdded,
		"duplicates_found", batch.DuplicatesFound,
		"rejected", batch.RejectedCount,
		"unverified", batch.UnverifiedComparisons,
		"total_count", pool.TotalCount)

	return &MergeResult{Pool: pool, Batch: batch, Outcomes: st.outcomes}, nil
}

// resolvePool 按名称获取题库，不存在时创建
func (s *Service) resolvePool(ctx context.Context, name, category, description string) (*model.Pool, error) {
	pool, err := s.repo.Pool.GetByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		pool = &model.Pool{Name: name, Category: category, Description: description}
		if err := s.repo.Pool.Create(ctx, pool); err != nil {
			// 其他实例可能刚刚创建了同名题库
			existing, getErr := s.repo.Pool.GetByName(ctx, name)
			if getErr != nil {
				return nil, fmt.Errorf("create pool: %w", err)
			}
			return existing, nil
		}
		s.log.Info("pool created", "pool", name, "pool_id", pool.ID)
		return pool, nil
	}
	if err != nil {
		return nil, err
	}

	if (category != "" && category != pool.Category) || (description != "" && description != pool.Description) {
		if category != "" {
			pool.Category = category
		}
		if description != "" {
			pool.Description = description
		}
		if err := s.repo.Pool.UpdateMetadata(ctx, pool.ID, pool.Category, pool.Description); err != nil {
			return nil, fmt.Errorf("update pool metadata: %w", err)
		}
	}
	return pool, nil
}

// match 按顺序对每个候选题目做校验、精确匹配和语义匹配
func (s *Service) match(ctx context.Context, pool *model.Pool, batch *model.UploadBatch, req *MergeRequest) (*matchState, error) {
	existing, err := s.repo.Question.ListCanonical(ctx, pool.ID)
	if err != nil {
		return nil, fmt.Errorf("load pool questions: %w", err)
	}

	st := &matchState{
		fingerprints: canonical.NewFingerprintSet(len(existing) + len(req.Candidates)),
		canonicals:   make([]similarity.Question, 0, len(existing)+len(req.Candidates)),
	}
	for _, q := range existing {
		fp := q.Fingerprint
		if fp == "" {
			fp = canonical.Fingerprint(q.Text, q.Choices)
		}
		st.fingerprints.Add(fp, q.ID)
		st.canonicals = append(st.canonicals, similarity.Question{ID: q.ID, Text: q.Text, Choices: q.Choices})
	}

	// 语义重复的表述再次出现时按精确重复处理，规范题目的指纹优先
	duplicates, err := s.repo.Question.ListDuplicates(ctx, pool.ID)
	if err != nil {
		return nil, fmt.Errorf("load pool duplicates: %w", err)
	}
	for _, q := range duplicates {
		if q.Fingerprint != "" && q.DuplicateOf != "" {
			st.fingerprints.Add(q.Fingerprint, q.DuplicateOf)
		}
	}

	semanticOn := s.cfg.SemanticEnabled
	if req.Semantic != nil {
		semanticOn = *req.Semantic
	}
	semanticOn = semanticOn && s.detector != nil

	base := s.now()
	for i, c := range req.Candidates {
		if reason := validateCandidate(c); reason != "" {
			st.rejections = append(st.rejections, model.Rejection{Index: i, Reason: reason})
			st.outcomes = append(st.outcomes, CandidateOutcome{Index: i, Decision: DecisionRejected, Reason: reason})
			continue
		}

		choices := trimAll(c.Choices)
		q := &model.Question{
			ID:           uuid.NewString(),
			PoolID:       pool.ID,
			Text:         strings.TrimSpace(c.Text),
			Choices:      choices,
			CorrectIndex: c.CorrectIndex,
			Explanation:  strings.TrimSpace(c.Explanation),
			SourceFile:   c.SourceFile,
			BatchID:      batch.ID,
			Fingerprint:  canonical.Fingerprint(c.Text, choices),
			CreatedAt:    base.Add(time.Duration(i) * time.Microsecond),
		}
		outcome := CandidateOutcome{Index: i, QuestionID: q.ID, Decision: DecisionUnique}

		if id, ok := st.fingerprints.Lookup(q.Fingerprint); ok {
			q.IsDuplicate = true
			q.DuplicateOf = id
			outcome.Decision = DecisionExactDuplicate
			outcome.DuplicateOf = id
			st.exact++
		} else if semanticOn {
			simQ := similarity.Question{ID: q.ID, Text: q.Text, Choices: q.Choices}
			dec, err := s.detector.Detect(ctx, semantic.Candidate{Question: simQ, Fingerprint: q.Fingerprint}, st.canonicals)
			if err != nil {
				return nil, fmt.Errorf("semantic detection for candidate %d: %w", i, err)
			}
			st.unverified += dec.Unverified
			if dec.IsDuplicate {
				score := dec.Score
				q.IsDuplicate = true
				q.DuplicateOf = dec.DuplicateOf
				q.SimilarityScore = &score
				outcome.Decision = DecisionSemanticDuplicate
				outcome.DuplicateOf = dec.DuplicateOf
				outcome.Score = &score
				st.semantic++
				// 同批次后续相同文本直接按精确重复指向规范题目
				st.fingerprints.Add(q.Fingerprint, dec.DuplicateOf)
			}
		}

		if !q.IsDuplicate {
			st.fingerprints.Add(q.Fingerprint, q.ID)
			st.canonicals = append(st.canonicals, similarity.Question{ID: q.ID, Text: q.Text, Choices: q.Choices})
			st.unique++
		}
		st.records = append(st.records, q)
		st.outcomes = append(st.outcomes, outcome)
	}
	return st, nil
}

// fail 标记批次失败，并按实际写入的记录重新统计题库计数
func (s *Service) fail(ctx context.Context, pool *model.Pool, batch *model.UploadBatch, cause error) (*MergeResult, error) {
	log := s.log.With("pool_id", pool.ID, "batch_id", batch.ID)
	log.Error("merge state", "state", StateFailed, "error", cause)

	// 失败的批次没有写入任何题目
	batch.UniqueAdded = 0
	batch.DuplicatesFound = 0
	batch.ExactDuplicates = 0
	batch.SemanticDuplicates = 0

	completedAt := s.now()
	batch.Status = model.BatchStatusFailed
	batch.ErrorDetail = cause.Error()
	batch.CompletedAt = &completedAt
	if err := s.repo.Batch.Finalize(ctx, batch); err != nil {
		log.Error("failed to mark batch as failed", "error", err)
	}

	if stats, err := s.repo.Question.CountStats(ctx, pool.ID); err != nil {
		log.Error("failed to recount pool", "error", err)
	} else if err := s.repo.Pool.UpdateStats(ctx, pool.ID, stats); err != nil {
		log.Error("failed to update pool stats", "error", err)
	} else {
		stats.Apply(pool)
	}

	metrics.BatchesFinished.WithLabelValues(string(model.BatchStatusFailed)).Inc()
	return &MergeResult{Pool: pool, Batch: batch}, fmt.Errorf("%w: %w", ErrPersistence, cause)
}

// validateCandidate 返回拒绝原因，合法时返回空字符串
func validateCandidate(c types.Candidate) string {
	if strings.TrimSpace(c.Text) == "" {
		return "question text is empty"
	}
	if len(c.Choices) < model.MinChoices {
		return fmt.Sprintf("expected at least %d choices, got %d", model.MinChoices, len(c.Choices))
	}
	if len(c.Choices) > model.MaxChoices {
		return fmt.Sprintf("expected at most %d choices, got %d", model.MaxChoices, len(c.Choices))
	}
	for i, choice := range c.Choices {
		if strings.TrimSpace(choice) == "" {
			return fmt.Sprintf("choice %d is empty", i)
		}
	}
	if c.CorrectIndex < 0 || c.CorrectIndex >= len(c.Choices) {
		return fmt.Sprintf("correct index %d out of range [0, %d)", c.CorrectIndex, len(c.Choices))
	}
	return ""
}

func trimAll(in []string) model.StringList {
	out := make(model.StringList, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// sourceFiles 请求未指定时按出现顺序收集候选题目的来源文件
func sourceFiles(req *MergeRequest) model.StringList {
	if len(req.SourceFiles) > 0 {
		return model.StringList(req.SourceFiles)
	}
	seen := make(map[string]bool)
	var files model.StringList
	for _, c := range req.Candidates {
		if c.SourceFile == "" || seen[c.SourceFile] {
			continue
		}
		seen[c.SourceFile] = true
		files = append(files, c.SourceFile)
	}
	return files
}
