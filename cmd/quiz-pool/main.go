package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/quiz-pool/internal/config"
	"github.com/ashwinyue/quiz-pool/internal/database"
	"github.com/ashwinyue/quiz-pool/internal/handler"
	"github.com/ashwinyue/quiz-pool/internal/logger"
	"github.com/ashwinyue/quiz-pool/internal/repository"
	"github.com/ashwinyue/quiz-pool/internal/router"
	"github.com/ashwinyue/quiz-pool/internal/service"
	"github.com/ashwinyue/quiz-pool/internal/service/callback"
)

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logg.Sync()

	// 模型调用日志
	callback.SetupGlobalCallbacks(logg, cfg.App.Debug)

	// 设置 Gin 模式
	gin.SetMode(cfg.Server.Mode)

	// 初始化数据库
	db, err := database.New(cfg)
	if err != nil {
		logg.Fatal("failed to init database", "driver", cfg.Database.Driver, "error", err)
	}
	defer db.Close()

	logg.Info("database connected", "driver", cfg.Database.Driver, "dbname", cfg.Database.DBName)

	// 初始化 Redis，未启用时使用进程内缓存和锁
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = newRedisClient(cfg)
		if err != nil {
			logg.Fatal("failed to init redis", "addr", cfg.Redis.GetAddr(), "error", err)
		}
		defer redisClient.Close()
		logg.Info("redis connected", "addr", cfg.Redis.GetAddr())
	}

	// 初始化各层
	repos := repository.NewRepositories(db.DB)
	services, err := service.NewServices(repos, cfg, redisClient, logg)
	if err != nil {
		logg.Fatal("failed to init services", "error", err)
	}
	handlers := handler.NewHandlers(services, logg)

	// 初始化路由
	r := router.SetupRouter(handlers, logg, router.Options{
		AllowOrigins: cfg.Server.AllowOrigins,
		Ready: func(c *gin.Context) error {
			return db.Ping(c.Request.Context())
		},
	})

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 启动服务器
	go func() {
		logg.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server error", "error", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down server")

	// 优雅关闭，进行中的合并会在锁内跑完
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logg.Error("server forced to shutdown", "error", err)
		return
	}

	logg.Info("server exited")
}

func newRedisClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
