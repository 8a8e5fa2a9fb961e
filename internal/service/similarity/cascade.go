package similarity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"

	"github.com/ashwinyue/quiz-pool/internal/config"
	"github.com/ashwinyue/quiz-pool/internal/logger"
	"github.com/ashwinyue/quiz-pool/internal/metrics"
)

// Cascade 按顺序尝试多个模型，第一个成功的结果胜出
//
// 失败（超时、响应格式错误、限流或其他错误）后立即尝试下一个模型，不重试也不退避。
type Cascade struct {
	comparers      []Comparer
	attemptTimeout time.Duration
	log            *logger.Logger
}

var _ Comparer = (*Cascade)(nil)

// NewCascade 创建级联比较器，comparers 按成本升序排列
func NewCascade(comparers []Comparer, attemptTimeout time.Duration, log *logger.Logger) (*Cascade, error) {
	if len(comparers) == 0 {
		return nil, errors.New("cascade requires at least one comparer")
	}
	if attemptTimeout <= 0 {
		return nil, fmt.Errorf("attempt timeout must be positive (got %s)", attemptTimeout)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Cascade{
		comparers:      comparers,
		attemptTimeout: attemptTimeout,
		log:            log.With("component", "similarity_cascade"),
	}, nil
}

// ChatModelFactory 为一个模型端点创建对话模型
type ChatModelFactory func(ctx context.Context, endpoint config.ModelEndpoint) (model.BaseChatModel, error)

// NewCascadeFromConfig 按配置中的模型列表创建级联
func NewCascadeFromConfig(ctx context.Context, cfg *config.AIConfig, factory ChatModelFactory, log *logger.Logger) (*Cascade, error) {
	comparers := make([]Comparer, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		chat, err := factory(ctx, cfg.Endpoint(m))
		if err != nil {
			return nil, fmt.Errorf("create chat model %s: %w", m.Name, err)
		}
		comparers = append(comparers, NewChatComparer(m.Name, chat, cfg.MaxTokens))
	}
	return NewCascade(comparers, cfg.AttemptTimeoutDuration(), log)
}

// Name 级联名称
func (c *Cascade) Name() string {
	return "cascade"
}

// Models 级联中的模型，按尝试顺序
func (c *Cascade) Models() []string {
	names := make([]string, 0, len(c.comparers))
	for _, cmp := range c.comparers {
		names = append(names, cmp.Name())
	}
	return names
}

// Compare 依次尝试每个模型
func (c *Cascade) Compare(ctx context.Context, a, b Question) (*Result, error) {
	var errs []error
	for i, cmp := range c.comparers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		start := time.Now()
		result, err := c.attempt(ctx, cmp, a, b)
		metrics.CascadeLatency.WithLabelValues(cmp.Name()).Observe(time.Since(start).Seconds())

		if err == nil {
			metrics.CascadeAttempts.WithLabelValues(cmp.Name(), metrics.OutcomeSuccess).Inc()
			if result.Model == "" {
				result.Model = cmp.Name()
			}
			if i > 0 {
				c.log.Info("similarity comparison served by fallback model",
					"model", cmp.Name(), "attempt", i+1, "question_a", a.ID, "question_b", b.ID)
			}
			return result, nil
		}

		outcome := classify(err)
		metrics.CascadeAttempts.WithLabelValues(cmp.Name(), outcome).Inc()
		c.log.Warn("similarity model attempt failed",
			"model", cmp.Name(),
			"attempt", i+1,
			"outcome", outcome,
			"question_a", a.ID,
			"question_b", b.ID,
			"error", err)
		errs = append(errs, fmt.Errorf("%s: %w", cmp.Name(), err))
	}

	metrics.CascadeExhausted.Inc()
	return nil, fmt.Errorf("%w: %w", ErrCascadeExhausted, errors.Join(errs...))
}

type attemptResult struct {
	result *Result
	err    error
}

// attempt 在独立的超时内调用一个模型，模型不响应 context 时也按超时返回
func (c *Cascade) attempt(ctx context.Context, cmp Comparer, a, b Question) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		r, err := cmp.Compare(attemptCtx, a, b)
		done <- attemptResult{result: r, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil && out.result == nil {
			return nil, fmt.Errorf("%w: empty result", ErrMalformedResponse)
		}
		return out.result, out.err
	case <-attemptCtx.Done():
		return nil, fmt.Errorf("attempt timed out after %s: %w", c.attemptTimeout, attemptCtx.Err())
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeTimeout
	case errors.Is(err, ErrMalformedResponse):
		return metrics.OutcomeMalformed
	default:
		return metrics.OutcomeError
	}
}
