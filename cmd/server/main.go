package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"askdb-go/internal/app"
	"askdb-go/internal/config"
	"askdb-go/internal/database"
	"askdb-go/internal/handler"
	"askdb-go/internal/history"
	"askdb-go/internal/metrics"
	"askdb-go/internal/middleware"
	"askdb-go/internal/service"
)

func main() {
	// 加载 .env，已存在的环境变量优先
	loaded, envErr := config.LoadEnv(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logger, err := newLogger(&cfg.App)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Warn("读取.env文件失败", zap.Error(envErr))
	}
	logger.Info("启动AskDB服务",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("go_version", runtime.Version()),
		zap.Bool("dotenv", loaded))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("服务异常退出", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("AskDB服务已退出")
}

func newLogger(appInfo *config.AppInfo) (*zap.Logger, error) {
	if appInfo.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// run 初始化依赖并阻塞到收到退出信号
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	gin.SetMode(cfg.Server.GinMode)

	// 数据库
	dbManager, err := database.NewManager(ctx, &cfg.Database, logger.Named("database"))
	if err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}
	defer dbManager.Close()

	// 会话历史
	store, redisManager, err := app.HistoryStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("初始化会话历史失败: %w", err)
	}
	var redisClient redis.UniversalClient
	if redisManager != nil {
		defer redisManager.Close()
		redisClient = redisManager.GetClient()
	}

	// 指标
	prometheusMetrics := metrics.NewPrometheusMetrics(&metrics.MetricsConfig{
		Namespace:      "askdb",
		ServiceVersion: cfg.App.Version,
	}, logger)

	// 流水线
	runner := service.NewPgxRunner(dbManager.GetPool(), cfg.Database.QueryTimeout, logger.Named("runner"))
	pipeline, err := app.NewPipeline(&cfg.AI, runner, store, prometheusMetrics, logger)
	if err != nil {
		return err
	}
	registerGauges(prometheusMetrics, dbManager, store, pipeline, logger)

	// 路由
	var documents handler.DocumentSearcher
	if pipeline.Documents.Available() {
		documents = pipeline.Documents
	}
	chatHandler := handler.NewChatHandler(&handler.ChatHandlerConfig{
		Composer:           pipeline.Composer,
		Generator:          pipeline.Generator,
		Executor:           pipeline.Executor,
		Documents:          documents,
		History:            store,
		ConversationHeader: cfg.Server.ConversationHeader,
	}, logger.Named("handler"))
	healthService := service.NewHealthService(dbManager, redisClient, &cfg.App, logger.Named("health"))

	router := handler.NewRouter(&handler.RouterConfig{
		ChatHandler:   chatHandler,
		HealthHandler: handler.NewHealthHandler(healthService),
		Metrics:       prometheusMetrics,
		Middleware:    middlewareConfig(cfg, logger),
	})

	srv := &http.Server{
		Addr:           cfg.Server.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP服务启动",
			zap.String("addr", srv.Addr),
			zap.String("mode", gin.Mode()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP服务启动失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务强制关闭", zap.Error(err))
		return err
	}
	logger.Info("HTTP服务已优雅停止")
	return nil
}

func middlewareConfig(cfg *config.Config, logger *zap.Logger) *middleware.MiddlewareConfig {
	mw := middleware.DefaultMiddlewareConfig(logger.Named("http"))
	mw.CORS.AllowOrigins = cfg.Server.CORSAllowedOrigins
	mw.RateLimit.RequestsPerSecond = cfg.Server.RateLimitRPS
	mw.RateLimit.Burst = cfg.Server.RateLimitBurst
	mw.RateLimit.KeyHeader = cfg.Server.ConversationHeader
	mw.Security.EnableHSTS = !cfg.App.IsDevelopment()
	return mw
}

type poolStatsProvider interface {
	GetPoolStats() *database.PoolStats
}

type gauge struct {
	subsystem string
	name      string
	help      string
	fn        func() float64
}

// registerGauges 注册按抓取取值的仪表
func registerGauges(pm *metrics.PrometheusMetrics, db poolStatsProvider, store history.Store, pipeline *app.Pipeline, logger *zap.Logger) {
	gauges := []gauge{
		{"history", "conversations", "Live conversations in the history store", func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			n, err := store.Len(ctx)
			if err != nil {
				return 0
			}
			return float64(n)
		}},
		{"database", "pool_utilization", "Acquired connections divided by max connections", func() float64 {
			return db.GetPoolStats().GetUtilization()
		}},
	}
	if pipeline.Cache != nil {
		gauges = append(gauges, gauge{"generator", "cached_queries", "Generated queries held in the cache", func() float64 {
			return float64(pipeline.Cache.Len())
		}})
	}

	for _, g := range gauges {
		if err := pm.RegisterGaugeFunc(g.subsystem, g.name, g.help, g.fn); err != nil {
			logger.Warn("注册指标失败", zap.String("name", g.name), zap.Error(err))
		}
	}
}
