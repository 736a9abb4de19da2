package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"askdb-go/internal/ai"
	"askdb-go/internal/app"
	"askdb-go/internal/config"
	"askdb-go/internal/database"
	"askdb-go/internal/history"
	"askdb-go/internal/metrics"
)

type fakePool struct {
	stats *database.PoolStats
}

func (p *fakePool) GetPoolStats() *database.PoolStats { return p.stats }

func loadConfig(t *testing.T, extra map[string]string) *config.Config {
	t.Helper()
	vars := map[string]string{"OPENAI_API_KEY": "sk-test"}
	for k, v := range extra {
		vars[k] = v
	}
	cfg, err := config.LoadFromMap(vars)
	require.NoError(t, err)
	return cfg
}

// TestMiddlewareConfig 测试服务配置到中间件配置的映射
func TestMiddlewareConfig(t *testing.T) {
	tests := []struct {
		name      string
		vars      map[string]string
		origins   []string
		rps       float64
		burst     int
		keyHeader string
		hsts      bool
	}{
		{
			name:      "默认生产配置",
			origins:   []string{"*"},
			rps:       5,
			burst:     10,
			keyHeader: "X-Conversation-ID",
			hsts:      true,
		},
		{
			name: "开发环境自定义",
			vars: map[string]string{
				"APP_ENV":              "development",
				"CORS_ALLOWED_ORIGINS": "http://localhost:3000,https://app.example.com",
				"RATE_LIMIT_RPS":       "0",
				"RATE_LIMIT_BURST":     "1",
				"CONVERSATION_HEADER":  "X-Chat-Session",
			},
			origins:   []string{"http://localhost:3000", "https://app.example.com"},
			rps:       0,
			burst:     1,
			keyHeader: "X-Chat-Session",
			hsts:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t, tt.vars)
			mw := middlewareConfig(cfg, zaptest.NewLogger(t))

			assert.Equal(t, tt.origins, mw.CORS.AllowOrigins)
			assert.Equal(t, tt.rps, mw.RateLimit.RequestsPerSecond)
			assert.Equal(t, tt.burst, mw.RateLimit.Burst)
			assert.Equal(t, tt.keyHeader, mw.RateLimit.KeyHeader)
			assert.Equal(t, tt.hsts, mw.Security.EnableHSTS)
		})
	}
}

// TestNewLogger 测试按环境选择日志配置
func TestNewLogger(t *testing.T) {
	for _, env := range []string{config.EnvDevelopment, config.EnvProduction} {
		t.Run(env, func(t *testing.T) {
			logger, err := newLogger(&config.AppInfo{Environment: env})
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

// TestRegisterGauges 测试仪表注册与取值
func TestRegisterGauges(t *testing.T) {
	logger := zaptest.NewLogger(t)
	pm := metrics.NewPrometheusMetrics(nil, logger)

	store, err := history.NewMemoryStore(history.DefaultConfig(), logger)
	require.NoError(t, err)
	_, err = store.AppendQuestion(context.Background(), "conv-1", "how many projects?")
	require.NoError(t, err)

	pipeline := &app.Pipeline{Cache: ai.NewQueryCache(time.Minute)}
	pool := &fakePool{stats: &database.PoolStats{AcquiredConns: 5, MaxConns: 20}}

	registerGauges(pm, pool, store, pipeline, logger)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	pm.GetMetricsHandler()(c)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "askdb_history_conversations 1")
	assert.Contains(t, body, "askdb_database_pool_utilization 0.25")
	assert.Contains(t, body, "askdb_generator_cached_queries 0")

	// 重复注册只记录告警
	assert.NotPanics(t, func() { registerGauges(pm, pool, store, pipeline, logger) })
}
