// Package handler HTTP处理器与路由
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"askdb-go/internal/metrics"
	"askdb-go/internal/middleware"
)

// RouterConfig 路由配置结构
type RouterConfig struct {
	ChatHandler   *ChatHandler
	HealthHandler *HealthHandler
	Metrics       *metrics.PrometheusMetrics   // 可为空
	Middleware    *middleware.MiddlewareConfig // 可为空，为空时只注册路由
}

// NewRouter 创建gin引擎并注册中间件与路由
func NewRouter(config *RouterConfig) *gin.Engine {
	r := gin.New()
	if config.Middleware != nil {
		middleware.SetupMiddleware(r, config.Middleware)
	}
	if config.Metrics != nil {
		r.Use(config.Metrics.HTTPMetricsMiddleware())
	}
	SetupRoutes(r, config)
	return r
}

// SetupRoutes 配置所有API路由
func SetupRoutes(r *gin.Engine, config *RouterConfig) {
	v1 := r.Group("/api/v1")
	{
		chat := v1.Group("/chat")
		{
			chat.POST("/semantic", config.ChatHandler.ChatSemantic) // 数据问答（流式）
			chat.POST("/vector", config.ChatHandler.ChatVector)     // 文档问答
		}

		search := v1.Group("/search")
		{
			search.POST("/semantic", config.ChatHandler.SearchSemantic) // 生成并执行SQL
			search.POST("/vector", config.ChatHandler.SearchVector)     // 文档向量检索
		}

		v1.GET("/conversations/:id/history", config.ChatHandler.ConversationHistory)
	}

	setupSystemRoutes(r, config)

	r.NoRoute(func(c *gin.Context) {
		middleware.RespondError(c, http.StatusNotFound, "接口不存在")
	})
}

// setupSystemRoutes 配置系统级路由
func setupSystemRoutes(r *gin.Engine, config *RouterConfig) {
	if config.HealthHandler != nil {
		r.GET("/health", config.HealthHandler.Health)
		r.GET("/ready", config.HealthHandler.Ready)
		r.GET("/version", config.HealthHandler.Version)
	}
	if config.Metrics != nil {
		r.GET("/metrics", config.Metrics.GetMetricsHandler())
	}
}
