package comparecache

import (
	"context"
	"errors"

	"github.com/ashwinyue/quiz-pool/internal/logger"
	"github.com/ashwinyue/quiz-pool/internal/metrics"
)

// Layered 多级缓存，按顺序从快到慢查询
//
// 慢层命中时回填前面的快层。任一层查询出错按未命中处理，缓存不能阻断去重流程。
type Layered struct {
	tiers []Cache
	log   *logger.Logger
}

var _ Cache = (*Layered)(nil)

// NewLayered 创建多级缓存
func NewLayered(log *logger.Logger, tiers ...Cache) *Layered {
	if log == nil {
		log = logger.NewNop()
	}
	return &Layered{tiers: tiers, log: log}
}

// Lookup 逐层查询
func (l *Layered) Lookup(ctx context.Context, idA, idB string) (*Entry, error) {
	for i, tier := range l.tiers {
		e, err := tier.Lookup(ctx, idA, idB)
		if err != nil {
			l.log.Warn("comparison cache tier lookup failed", "tier", i, "error", err)
			continue
		}
		if e == nil {
			continue
		}
		for j := 0; j < i; j++ {
			if err := l.tiers[j].Store(ctx, idA, idB, e.Verdict); err != nil {
				l.log.Warn("comparison cache back-fill failed", "tier", j, "error", err)
			}
		}
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return e, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()
	return nil, nil
}

// Store 写入所有层
func (l *Layered) Store(ctx context.Context, idA, idB string, v Verdict) error {
	var errs []error
	for _, tier := range l.tiers {
		if err := tier.Store(ctx, idA, idB, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
