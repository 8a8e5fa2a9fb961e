// Package semantic 语义重复检测
//
// 候选题与题库中有限数量的已有题目逐一比对：先查比对缓存，未命中再调用模型级联。
// 第一个相似度达到阈值的题目即为重复来源，后续比对跳过。级联全部失败的比对按非重复处理并计入未验证数。
package semantic

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"sort"

	"golang.org/x/sync/singleflight"

	"github.com/ashwinyue/quiz-pool/internal/logger"
	"github.com/ashwinyue/quiz-pool/internal/metrics"
	"github.com/ashwinyue/quiz-pool/internal/service/comparecache"
	"github.com/ashwinyue/quiz-pool/internal/service/similarity"
)

// Candidate 待检测的题目，Fingerprint 用于确定抽样
type Candidate struct {
	Question    similarity.Question
	Fingerprint string
}

// Decision 检测结果
type Decision struct {
	IsDuplicate bool
	DuplicateOf string
	Score       int
	Reasoning   string
	Model       string

	Compared   int // 得到判断的比对次数
	CacheHits  int
	Calls      int // 调用级联的次数
	Unverified int // 级联耗尽、按非重复处理的比对次数
}

// Detector 语义重复检测器
type Detector struct {
	comparer similarity.Comparer
	cache    comparecache.Cache
	cfg      Config
	group    singleflight.Group
	log      *logger.Logger
}

// NewDetector 创建检测器
func NewDetector(comparer similarity.Comparer, cache comparecache.Cache, cfg Config, log *logger.Logger) (*Detector, error) {
	if comparer == nil {
		return nil, fmt.Errorf("comparer is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("comparison cache is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Detector{
		comparer: comparer,
		cache:    cache,
		cfg:      cfg,
		log:      log.With("component", "semantic_detector"),
	}, nil
}

// Detect 判断候选题是否与 existing 中的某道题语义重复
//
// existing 应为题库中的非重复题目（包括本批次中已接受的题目），按创建顺序排列。
// 只有 ctx 结束时返回错误。
func (d *Detector) Detect(ctx context.Context, cand Candidate, existing []similarity.Question) (*Decision, error) {
	decision := &Decision{}
	if len(existing) == 0 {
		return decision, nil
	}

	sampled := sample(cand.Fingerprint, existing, d.cfg.SampleCap)
	for _, q := range sampled {
		if err := ctx.Err(); err != nil {
			return decision, err
		}
		if q.ID == cand.Question.ID {
			continue
		}

		verdict, ok := d.judge(ctx, cand.Question, q, decision)
		if !ok {
			continue
		}
		decision.Compared++

		if verdict.Score >= d.cfg.Threshold {
			decision.IsDuplicate = true
			decision.DuplicateOf = q.ID
			decision.Score = verdict.Score
			decision.Reasoning = verdict.Reasoning
			decision.Model = verdict.Model
			return decision, nil
		}
	}
	return decision, nil
}

// judge 获取一对题目的判断，缓存优先
func (d *Detector) judge(ctx context.Context, cand, existing similarity.Question, decision *Decision) (comparecache.Verdict, bool) {
	entry, err := d.cache.Lookup(ctx, cand.ID, existing.ID)
	if err != nil {
		d.log.Warn("comparison cache lookup failed, treating as miss", "error", err)
	}
	if entry != nil {
		decision.CacheHits++
		return entry.Verdict, true
	}

	// shared 对发起者同样为 true，只有实际执行了比对的调用方计入 Calls
	var executed bool
	key := comparecache.PairKey(cand.ID, existing.ID)
	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		executed = true
		result, err := d.comparer.Compare(ctx, cand, existing)
		if err != nil {
			return nil, err
		}
		verdict := comparecache.Verdict{
			Score:       result.Score,
			IsDuplicate: result.IsDuplicate,
			Reasoning:   result.Reasoning,
			Model:       result.Model,
		}
		if err := d.cache.Store(ctx, cand.ID, existing.ID, verdict); err != nil {
			d.log.Warn("failed to store comparison", "pair_key", key, "error", err)
		}
		return verdict, nil
	})
	if executed {
		decision.Calls++
	} else if err == nil {
		// 复用了并发调用方的比对结果
		decision.CacheHits++
	}
	if err != nil {
		decision.Unverified++
		metrics.UnverifiedComparisons.Inc()
		d.log.Warn("similarity cascade exhausted, treating pair as not duplicate",
			"question_a", cand.ID, "question_b", existing.ID, "error", err)
		return comparecache.Verdict{}, false
	}
	return v.(comparecache.Verdict), true
}

// sample 确定性抽取最多 limit 道题目，保持原有顺序
//
// 每道题按 sha256(seed, id) 排序取最小的 limit 个，相同输入总是得到相同样本。
func sample(seed string, existing []similarity.Question, limit int) []similarity.Question {
	if len(existing) <= limit {
		return existing
	}

	type ranked struct {
		idx  int
		rank [sha256.Size]byte
	}
	ranks := make([]ranked, len(existing))
	for i, q := range existing {
		ranks[i] = ranked{idx: i, rank: sha256.Sum256([]byte(seed + "\x00" + q.ID))}
	}
	sort.Slice(ranks, func(i, j int) bool {
		if c := bytes.Compare(ranks[i].rank[:], ranks[j].rank[:]); c != 0 {
			return c < 0
		}
		return ranks[i].idx < ranks[j].idx
	})

	picked := ranks[:limit]
	sort.Slice(picked, func(i, j int) bool { return picked[i].idx < picked[j].idx })

	out := make([]similarity.Question, 0, limit)
	for _, r := range picked {
		out = append(out, existing[r.idx])
	}
	return out
}
