// Package metrics Prometheus指标
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"askdb-go/internal/ai"
	"askdb-go/internal/service"
)

// PrometheusMetrics Prometheus指标收集器
// 收集HTTP请求与问答流水线（生成来源、模型调用、降级层级、流式输出）指标
type PrometheusMetrics struct {
	// HTTP请求相关指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge

	// 流水线指标
	generationsTotal  *prometheus.CounterVec
	llmCallsTotal     *prometheus.CounterVec
	llmCallDuration   *prometheus.HistogramVec
	tierTotal         *prometheus.CounterVec
	tierDuration      *prometheus.HistogramVec
	streamChunksTotal prometheus.Counter

	namespace string
	registry  *prometheus.Registry
	logger    *zap.Logger
}

var (
	_ ai.MetricsRecorder   = (*PrometheusMetrics)(nil)
	_ service.TierRecorder = (*PrometheusMetrics)(nil)
)

// MetricsConfig 指标配置
type MetricsConfig struct {
	Namespace      string // 指标命名空间
	ServiceVersion string // 服务版本
}

// DefaultMetricsConfig 默认指标配置
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Namespace:      "askdb",
		ServiceVersion: "0.1.0",
	}
}

// NewPrometheusMetrics 创建Prometheus指标收集器，使用独立的注册器
func NewPrometheusMetrics(config *MetricsConfig, logger *zap.Logger) *PrometheusMetrics {
	if config == nil {
		config = DefaultMetricsConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ns := config.Namespace

	pm := &PrometheusMetrics{
		namespace: ns,
		registry:  prometheus.NewRegistry(),
		logger:    logger,
	}

	pm.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)
	pm.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds, including streamed answers",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)
	pm.httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 7), // 256B to 1MB
		},
		[]string{"method", "endpoint"},
	)
	pm.httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests being served",
	})

	pm.generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "generator",
			Name:      "queries_total",
			Help:      "Generated queries by source (model, historic, cache, fallback)",
		},
		[]string{"source"},
	)
	pm.llmCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Language model calls by provider and status",
		},
		[]string{"provider", "status"},
	)
	pm.llmCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Language model call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"provider"},
	)
	pm.tierTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "executor",
			Name:      "tier_executions_total",
			Help:      "Query executions by fallback tier and status",
		},
		[]string{"tier", "status"},
	)
	pm.tierDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "executor",
			Name:      "tier_duration_seconds",
			Help:      "Query execution duration by fallback tier",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}, // 1ms to 30s
		},
		[]string{"tier"},
	)
	pm.streamChunksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "composer",
		Name:      "stream_chunks_total",
		Help:      "Answer chunks streamed to clients",
	})

	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "build_info",
		Help:        "Build information",
		ConstLabels: prometheus.Labels{"version": config.ServiceVersion},
	})
	buildInfo.Set(1)

	pm.registry.MustRegister(
		pm.httpRequestsTotal,
		pm.httpRequestDuration,
		pm.httpResponseSize,
		pm.httpInFlight,
		pm.generationsTotal,
		pm.llmCallsTotal,
		pm.llmCallDuration,
		pm.tierTotal,
		pm.tierDuration,
		pm.streamChunksTotal,
		buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: ns}),
	)

	logger.Info("Prometheus指标初始化完成", zap.String("namespace", ns))
	return pm
}

// Registry 返回指标注册器
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// RegisterGaugeFunc 注册按需取值的仪表，如会话数与连接池利用率
func (pm *PrometheusMetrics) RegisterGaugeFunc(subsystem, name, help string, fn func() float64) error {
	return pm.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: pm.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn))
}

// HTTPMetricsMiddleware HTTP指标收集中间件
func (pm *PrometheusMetrics) HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		pm.httpInFlight.Inc()
		defer pm.httpInFlight.Dec()

		c.Next()

		method := c.Request.Method
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		statusCode := strconv.Itoa(c.Writer.Status())

		pm.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
		pm.httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			pm.httpResponseSize.WithLabelValues(method, endpoint).Observe(float64(size))
		}
	}
}

// RecordGeneration 记录生成来源
func (pm *PrometheusMetrics) RecordGeneration(source string) {
	pm.generationsTotal.WithLabelValues(source).Inc()
}

// RecordLLMCall 记录模型调用
func (pm *PrometheusMetrics) RecordLLMCall(provider string, success bool, duration time.Duration) {
	pm.llmCallsTotal.WithLabelValues(provider, status(success)).Inc()
	pm.llmCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordStreamChunk 记录一个流式输出片段
func (pm *PrometheusMetrics) RecordStreamChunk() {
	pm.streamChunksTotal.Inc()
}

// RecordTier 记录降级层级执行结果
func (pm *PrometheusMetrics) RecordTier(tier string, success bool, duration time.Duration) {
	pm.tierTotal.WithLabelValues(tier, status(success)).Inc()
	pm.tierDuration.WithLabelValues(tier).Observe(duration.Seconds())
}

// GetMetricsHandler 获取Prometheus指标端点处理器
func (pm *PrometheusMetrics) GetMetricsHandler() gin.HandlerFunc {
	h := promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{Registry: pm.registry})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
