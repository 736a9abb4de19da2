package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"askdb-go/internal/service"
)

// TestPrometheusMetrics_HTTPMetricsMiddleware 测试HTTP指标中间件
func TestPrometheusMetrics_HTTPMetricsMiddleware(t *testing.T) {
	pm := NewPrometheusMetrics(DefaultMetricsConfig(), zaptest.NewLogger(t))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(pm.HTTPMetricsMiddleware())
	router.GET("/test/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	router.POST("/test/:id", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/test/1", nil),
		httptest.NewRequest(http.MethodGet, "/test/2", nil),
		httptest.NewRequest(http.MethodPost, "/test/3", strings.NewReader(`{}`)),
		httptest.NewRequest(http.MethodGet, "/missing", nil),
	} {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.httpRequestsTotal.WithLabelValues("GET", "/test/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.httpRequestsTotal.WithLabelValues("POST", "/test/:id", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.httpRequestsTotal.WithLabelValues("GET", "unknown", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.httpInFlight))
}

// TestPrometheusMetrics_Pipeline 测试流水线指标
func TestPrometheusMetrics_Pipeline(t *testing.T) {
	pm := NewPrometheusMetrics(nil, nil)

	pm.RecordGeneration("model")
	pm.RecordGeneration("model")
	pm.RecordGeneration("fallback")
	pm.RecordLLMCall("openai", true, 800*time.Millisecond)
	pm.RecordLLMCall("anthropic", false, time.Second)
	pm.RecordTier(service.TierGenerated, false, 5*time.Millisecond)
	pm.RecordTier(service.TierSchema, true, 8*time.Millisecond)
	pm.RecordStreamChunk()
	pm.RecordStreamChunk()

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.generationsTotal.WithLabelValues("model")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.generationsTotal.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.llmCallsTotal.WithLabelValues("openai", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.llmCallsTotal.WithLabelValues("anthropic", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.tierTotal.WithLabelValues(service.TierGenerated, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.tierTotal.WithLabelValues(service.TierSchema, "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.streamChunksTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(pm.llmCallDuration))
}

// TestPrometheusMetrics_GaugeFunc 测试按需取值仪表
func TestPrometheusMetrics_GaugeFunc(t *testing.T) {
	pm := NewPrometheusMetrics(nil, nil)
	conversations := 3

	require.NoError(t, pm.RegisterGaugeFunc("history", "conversations", "Live conversations", func() float64 {
		return float64(conversations)
	}))
	assert.Error(t, pm.RegisterGaugeFunc("history", "conversations", "duplicate", func() float64 { return 0 }))

	expected := `
# HELP askdb_history_conversations Live conversations
# TYPE askdb_history_conversations gauge
askdb_history_conversations 3
`
	assert.NoError(t, testutil.GatherAndCompare(pm.Registry(), strings.NewReader(expected), "askdb_history_conversations"))

	conversations = 5
	assert.NoError(t, testutil.GatherAndCompare(pm.Registry(), strings.NewReader(strings.Replace(expected, " 3\n", " 5\n", 1)), "askdb_history_conversations"))
}

// TestPrometheusMetrics_Handler 测试指标端点
func TestPrometheusMetrics_Handler(t *testing.T) {
	pm := NewPrometheusMetrics(&MetricsConfig{Namespace: "askdb", ServiceVersion: "9.9.9"}, nil)
	pm.RecordGeneration("cache")

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/metrics", pm.GetMetricsHandler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `askdb_generator_queries_total{source="cache"} 1`)
	assert.Contains(t, body, `askdb_build_info{version="9.9.9"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
