// Package app 组装问答流水线，服务端与命令行共用
package app

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"go.uber.org/zap"

	"askdb-go/internal/ai"
	"askdb-go/internal/catalog"
	"askdb-go/internal/config"
	"askdb-go/internal/history"
	"askdb-go/internal/service"
)

// Recorder 流水线指标，由 metrics.PrometheusMetrics 实现
type Recorder interface {
	ai.MetricsRecorder
	service.TierRecorder
}

// Pipeline 生成 -> 执行 -> 回答 的全部组件
type Pipeline struct {
	Schema      *catalog.Schema
	SQLModel    *ai.LLMClient
	AnswerModel *ai.LLMClient
	Cache       *ai.QueryCache // QUERY_CACHE_TTL 为0时为 nil
	Generator   *ai.Generator
	Executor    *service.SQLExecutor
	Composer    *ai.Composer
	Documents   *service.VectorSearcher
}

// NewPipeline 创建流水线，recorder 可为 nil
// SQL生成与回答合成各自使用独立的提供商链，模型分别为 SQL_MODEL 与 ANSWER_MODEL
func NewPipeline(cfg *config.AIConfig, runner service.QueryRunner, store history.Store, recorder Recorder, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		aiMetrics   ai.MetricsRecorder
		tierMetrics service.TierRecorder
	)
	if recorder != nil {
		aiMetrics = recorder
		tierMetrics = recorder
	}

	sqlModel, err := ai.NewLLMClient(cfg.RouterConfig(cfg.SQLModel), aiMetrics, logger.Named("sql_llm"))
	if err != nil {
		return nil, fmt.Errorf("创建SQL生成模型失败: %w", err)
	}
	answerModel, err := ai.NewLLMClient(cfg.RouterConfig(cfg.AnswerModel), aiMetrics, logger.Named("answer_llm"))
	if err != nil {
		return nil, fmt.Errorf("创建回答模型失败: %w", err)
	}

	schema := catalog.Default()
	p := &Pipeline{
		Schema:      schema,
		SQLModel:    sqlModel,
		AnswerModel: answerModel,
	}
	if cfg.QueryCacheTTL > 0 {
		p.Cache = ai.NewQueryCache(cfg.QueryCacheTTL)
	}

	p.Generator = ai.NewGenerator(sqlModel, schema, &ai.GeneratorConfig{
		Options: cfg.SQLOptions(),
		Timeout: cfg.Timeout,
		Cache:   p.Cache,
		Metrics: aiMetrics,
	}, logger.Named("generator"))
	p.Executor = service.NewSQLExecutor(runner, schema, tierMetrics, logger.Named("executor"))
	p.Composer = ai.NewComposer(answerModel, p.Generator, p.Executor, store, &ai.ComposerConfig{
		Options: cfg.AnswerOptions(),
		Metrics: aiMetrics,
	}, logger.Named("composer"))
	p.Documents = service.NewVectorSearcher(runner, newEmbedder(cfg, logger), logger.Named("vector"))

	logger.Info("问答流水线初始化完成",
		zap.Strings("sql_providers", sqlModel.Providers()),
		zap.Strings("answer_providers", answerModel.Providers()),
		zap.Bool("query_cache", p.Cache != nil),
		zap.Bool("vector_search", p.Documents.Available()))
	return p, nil
}

// newEmbedder 向量模型不可用时返回 nil，向量接口随之停用
func newEmbedder(cfg *config.AIConfig, logger *zap.Logger) embeddings.Embedder {
	embCfg := cfg.EmbeddingConfig()
	if embCfg == nil {
		logger.Info("未配置向量模型，向量检索已停用")
		return nil
	}
	embedder, err := ai.NewEmbedder(embCfg, ai.NewHTTPClient(ai.DefaultHTTPPoolConfig(), cfg.Timeout))
	if err != nil {
		logger.Warn("创建向量模型失败，向量检索已停用",
			zap.String("provider", string(embCfg.Provider)),
			zap.Error(err))
		return nil
	}
	return embedder
}

// HistoryStore 按配置创建会话历史存储
// Redis 后端同时返回其管理器，调用方负责关闭；内存后端返回的管理器为 nil
func HistoryStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (history.Store, *config.RedisManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	storeConfig := cfg.History.StoreConfig()

	if cfg.History.Backend != config.HistoryBackendRedis {
		store, err := history.NewMemoryStore(storeConfig, logger.Named("history"))
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}

	manager, err := config.NewRedisManager(ctx, &cfg.Redis, logger)
	if err != nil {
		return nil, nil, err
	}
	store, err := history.NewRedisStore(manager.GetClient(), manager.KeyPrefix(), storeConfig, logger.Named("history"))
	if err != nil {
		_ = manager.Close()
		return nil, nil, err
	}
	return store, manager, nil
}
