// Package metrics 去重流程的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quiz_pool"

// 级联结果标签
const (
	OutcomeSuccess   = "success"
	OutcomeTimeout   = "timeout"
	OutcomeMalformed = "malformed"
	OutcomeError     = "error"
)

var (
	// CascadeAttempts 每个模型的调用次数，按结果分类
	CascadeAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cascade",
		Name:      "attempts_total",
		Help:      "Similarity model attempts by model and outcome",
	}, []string{"model", "outcome"})

	// CascadeLatency 单次模型调用耗时
	CascadeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cascade",
		Name:      "attempt_latency_seconds",
		Help:      "Latency of a single similarity model attempt",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"model"})

	// CascadeExhausted 所有模型均失败的比对次数
	CascadeExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cascade",
		Name:      "exhausted_total",
		Help:      "Comparisons where every model in the cascade failed",
	})

	// CacheLookups 比对缓存查询，result 为 hit 或 miss
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "compare_cache",
		Name:      "lookups_total",
		Help:      "Comparison cache lookups by result",
	}, []string{"result"})

	// BatchCandidates 合并批次中候选题目的处理结果
	BatchCandidates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "merge",
		Name:      "candidates_total",
		Help:      "Merged candidates by decision (unique, exact_duplicate, semantic_duplicate, rejected)",
	}, []string{"decision"})

	// BatchesFinished 结束的批次，按最终状态分类
	BatchesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "merge",
		Name:      "batches_total",
		Help:      "Finished upload batches by status",
	}, []string{"status"})

	// UnverifiedComparisons 级联耗尽后按非重复处理的比对
	UnverifiedComparisons = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "semantic",
		Name:      "unverified_comparisons_total",
		Help:      "Comparisons treated as not-duplicate because the cascade was exhausted",
	})
)
