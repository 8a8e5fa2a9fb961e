package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App      AppConfig
	Log      LogConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AI       AIConfig
	Dedup    DedupConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// LogConfig 日志配置
type LogConfig struct {
	Mode string // development | production
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host          string
	Port          int
	Mode          string
	ReadTimeout   int
	WriteTimeout  int
	MaxUploadSize int64    // 单次上传最大字节数
	AllowOrigins  []string // 为空时允许所有来源
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver       string // postgres | sqlite
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	SQLitePath   string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL int // 比对缓存过期时间（小时），0 表示永不过期
	LockTTL  int // 题库锁租期（秒）
}

// ModelEndpoint 级联中的一个模型，BaseURL/APIKey 为空时使用 AIConfig 的共享配置
type ModelEndpoint struct {
	Name    string
	BaseURL string
	APIKey  string
}

// AIConfig AI配置
type AIConfig struct {
	BaseURL         string
	APIKey          string
	Models          []ModelEndpoint // 按边际成本升序，最后一个为兜底模型
	AttemptTimeout  int             // 单次模型调用超时（秒）
	MaxTokens       int
	ExtractionModel string // 题目抽取使用的模型，为空时使用级联最后一个模型
}

// DedupConfig 去重配置
type DedupConfig struct {
	SemanticEnabled     bool
	SimilarityThreshold int
	SampleCap           int
	DegradedPolicy      string // accept | flag
}

const (
	DegradedPolicyAccept = "accept"
	DegradedPolicyFlag   = "flag"
)

// Load 加载配置，文件不存在时使用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("QUIZ_POOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate 校验配置，配置错误必须在启动时暴露
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite (got %q)", c.Database.Driver)
	}
	if c.Dedup.SimilarityThreshold < 80 || c.Dedup.SimilarityThreshold > 100 {
		return fmt.Errorf("dedup.similarityThreshold must be between 80 and 100 (got %d)", c.Dedup.SimilarityThreshold)
	}
	if c.Dedup.SampleCap < 1 {
		return fmt.Errorf("dedup.sampleCap must be positive (got %d)", c.Dedup.SampleCap)
	}
	switch c.Dedup.DegradedPolicy {
	case DegradedPolicyAccept, DegradedPolicyFlag:
	default:
		return fmt.Errorf("dedup.degradedPolicy must be %q or %q (got %q)",
			DegradedPolicyAccept, DegradedPolicyFlag, c.Dedup.DegradedPolicy)
	}
	if c.Dedup.SemanticEnabled {
		if len(c.AI.Models) == 0 {
			return fmt.Errorf("ai.models must not be empty when semantic detection is enabled")
		}
		for i, m := range c.AI.Models {
			if strings.TrimSpace(m.Name) == "" {
				return fmt.Errorf("ai.models[%d].name is empty", i)
			}
		}
	}
	if c.AI.AttemptTimeout <= 0 {
		return fmt.Errorf("ai.attemptTimeout must be positive (got %d)", c.AI.AttemptTimeout)
	}
	if c.Redis.LockTTL <= 0 {
		return fmt.Errorf("redis.lockTTL must be positive (got %d)", c.Redis.LockTTL)
	}
	return nil
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AttemptTimeoutDuration 单次模型调用超时
func (c *AIConfig) AttemptTimeoutDuration() time.Duration {
	return time.Duration(c.AttemptTimeout) * time.Second
}

// Endpoint 返回补全共享配置后的模型端点
func (c *AIConfig) Endpoint(m ModelEndpoint) ModelEndpoint {
	if m.BaseURL == "" {
		m.BaseURL = c.BaseURL
	}
	if m.APIKey == "" {
		m.APIKey = c.APIKey
	}
	return m
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "quiz-pool")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", false)

	v.SetDefault("log.mode", "development")

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.readTimeout", 60)
	v.SetDefault("server.writeTimeout", 600)
	v.SetDefault("server.maxUploadSize", 32<<20)

	// Database
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "quiz_pool")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlitePath", "quiz_pool.db")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cacheTTL", 0)
	v.SetDefault("redis.lockTTL", 600)

	// AI，免费模型在前，付费模型兜底
	v.SetDefault("ai.baseUrl", "https://openrouter.ai/api/v1")
	v.SetDefault("ai.attemptTimeout", 30)
	v.SetDefault("ai.maxTokens", 512)
	v.SetDefault("ai.models", []map[string]interface{}{
		{"name": "meta-llama/llama-3.3-70b-instruct:free"},
		{"name": "google/gemini-2.0-flash-exp:free"},
		{"name": "openai/gpt-4o-mini"},
	})

	// Dedup
	v.SetDefault("dedup.semanticEnabled", true)
	v.SetDefault("dedup.similarityThreshold", 95)
	v.SetDefault("dedup.sampleCap", 50)
	v.SetDefault("dedup.degradedPolicy", DegradedPolicyAccept)
}
