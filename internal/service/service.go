package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/quiz-pool/internal/config"
	"github.com/ashwinyue/quiz-pool/internal/logger"
	"github.com/ashwinyue/quiz-pool/internal/repository"
	"github.com/ashwinyue/quiz-pool/internal/service/comparecache"
	"github.com/ashwinyue/quiz-pool/internal/service/extraction"
	"github.com/ashwinyue/quiz-pool/internal/service/lock"
	"github.com/ashwinyue/quiz-pool/internal/service/pool"
	"github.com/ashwinyue/quiz-pool/internal/service/semantic"
	"github.com/ashwinyue/quiz-pool/internal/service/similarity"
)

// Services 服务集合
type Services struct {
	// 业务服务
	Pool      *pool.Service
	Extractor *extraction.Extractor // 未配置模型时为 nil，上传接口不可用

	// 配置
	Config *config.Config

	// 去重组件
	Cascade *similarity.Cascade // 未配置模型时为 nil
	Cache   comparecache.Cache
	Locker  lock.Locker
}

// NewServices 创建所有服务，redisClient 为 nil 时使用进程内缓存和锁
func NewServices(repo *repository.Repositories, cfg *config.Config, redisClient *redis.Client, log *logger.Logger) (*Services, error) {
	return newServices(context.Background(), repo, cfg, redisClient, newChatModel, log)
}

func newServices(ctx context.Context, repo *repository.Repositories, cfg *config.Config, redisClient *redis.Client,
	factory similarity.ChatModelFactory, log *logger.Logger) (*Services, error) {
	// 比对缓存：内存 -> Redis -> 数据库
	tiers := []comparecache.Cache{comparecache.NewMemoryCache(log)}
	if redisClient != nil {
		ttl := time.Duration(cfg.Redis.CacheTTL) * time.Hour
		tiers = append(tiers, comparecache.NewRedisCache(redisClient, ttl, log))
	}
	tiers = append(tiers, comparecache.NewStoreCache(repo.Comparison, log))
	cache := comparecache.NewLayered(log, tiers...)

	// 题库锁
	var locker lock.Locker = lock.NewLocalLocker()
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient, time.Duration(cfg.Redis.LockTTL)*time.Second, log)
	}

	// 配置了模型时创建级联，语义检测可按请求开启
	var (
		cascade  *similarity.Cascade
		detector *semantic.Detector
		err      error
	)
	if len(cfg.AI.Models) > 0 {
		cascade, err = similarity.NewCascadeFromConfig(ctx, &cfg.AI, factory, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create similarity cascade: %w", err)
		}
		detector, err = semantic.NewDetector(cascade, cache, semantic.Config{
			Threshold: cfg.Dedup.SimilarityThreshold,
			SampleCap: cfg.Dedup.SampleCap,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create semantic detector: %w", err)
		}
		log.Info("semantic detection ready", "models", cascade.Models(), "enabled", cfg.Dedup.SemanticEnabled)
	} else {
		log.Warn("no ai models configured, semantic detection and uploads are unavailable")
	}

	extractor, err := newExtractor(ctx, cfg, factory, log)
	if err != nil {
		return nil, err
	}

	return &Services{
		Pool:      pool.NewService(repo, detector, locker, pool.ConfigFromDedup(cfg.Dedup), log),
		Extractor: extractor,

		Config: cfg,

		Cascade: cascade,
		Cache:   cache,
		Locker:  locker,
	}, nil
}

// newExtractor 创建题目抽取器，未指定模型时使用级联最后一个模型
func newExtractor(ctx context.Context, cfg *config.Config, factory similarity.ChatModelFactory, log *logger.Logger) (*extraction.Extractor, error) {
	name := cfg.AI.ExtractionModel
	if name == "" {
		if len(cfg.AI.Models) == 0 {
			return nil, nil
		}
		name = cfg.AI.Models[len(cfg.AI.Models)-1].Name
	}

	endpoint := config.ModelEndpoint{Name: name}
	for _, m := range cfg.AI.Models {
		if m.Name == name {
			endpoint = m
			break
		}
	}

	chat, err := factory(ctx, cfg.AI.Endpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction model: %w", err)
	}
	return extraction.NewExtractor(chat, extraction.DefaultConfig(), log)
}

// newChatModel 创建 OpenAI 兼容的 ChatModel
func newChatModel(ctx context.Context, endpoint config.ModelEndpoint) (model.BaseChatModel, error) {
	if endpoint.Name == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if endpoint.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required for model: %s", endpoint.Name)
	}

	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  endpoint.APIKey,
		BaseURL: endpoint.BaseURL,
		Model:   endpoint.Name,
	})
}
