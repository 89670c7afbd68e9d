package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/ecodrive/internal/api/handlers"
	"github.com/langchou/ecodrive/internal/config"
	"github.com/langchou/ecodrive/internal/report"
	"github.com/langchou/ecodrive/internal/repository"
	"github.com/langchou/ecodrive/internal/service"
	"github.com/langchou/ecodrive/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting ecodrive", zap.String("port", cfg.ServerPort))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 存储 (可选)
	var (
		runStore      service.RunStore
		sessionStore  service.SessionStore
		runReader     handlers.RunReader
		sessionReader handlers.SessionReader
	)
	if cfg.PersistRuns {
		// 连接数据库
		db, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect database", zap.Error(err))
		}
		defer db.Close()

		// 执行数据库迁移
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database migrated successfully")

		runRepo := repository.NewRunRepository(db)
		sessionRepo := repository.NewSessionRepository(db)
		runStore, runReader = runRepo, runRepo
		sessionStore, sessionReader = sessionRepo, sessionRepo
	} else {
		logger.Info("Persistence disabled, strategy runs will not be saved")
	}

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run(ctx)

	// 驾驶过程同时写日志和推送 WebSocket
	reporter := report.Multi{
		report.NewLogReporter(logger),
		report.NewHubReporter(wsHub),
	}

	// 创建策略服务
	strategyService := service.NewStrategyService(cfg, logger, runStore, sessionStore, reporter)

	// 新连接的客户端先收到进行中的会话
	wsHub.SetInitDataProvider(func() interface{} {
		return strategyService.ActiveSessions()
	})

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(
		logger,
		strategyService,
		runReader,
		sessionReader,
		wsHub,
	)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// 停止后台会话
	strategyService.Stop()

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
