// Package middleware gin中间件：恢复、请求ID、结构化日志、安全头、跨域与限流
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// RequestIDHeader 请求ID头
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey 请求ID在gin上下文中的键
	RequestIDKey = "request_id"

	maxRequestIDLength = 128
)

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Logger    *zap.Logger
	RateLimit *RateLimitConfig
	CORS      *CORSConfig
	Security  *SecurityConfig
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	RequestsPerSecond float64       // 每个调用方每秒请求数，<=0 时不限流
	Burst             int           // 突发请求数
	IdleTTL           time.Duration // 限流器空闲多久后被回收
	KeyHeader         string        // 标识调用方的请求头，缺省时使用客户端IP
}

// CORSConfig CORS配置
type CORSConfig struct {
	AllowOrigins []string
	MaxAge       time.Duration
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	EnableHSTS bool
}

// DefaultMiddlewareConfig 默认中间件配置
func DefaultMiddlewareConfig(logger *zap.Logger) *MiddlewareConfig {
	return &MiddlewareConfig{
		Logger: logger,
		RateLimit: &RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
			IdleTTL:           10 * time.Minute,
			KeyHeader:         "X-Conversation-ID",
		},
		CORS: &CORSConfig{
			AllowOrigins: []string{"*"},
			MaxAge:       12 * time.Hour,
		},
		Security: &SecurityConfig{EnableHSTS: true},
	}
}

// SetupMiddleware 按顺序注册所有中间件
func SetupMiddleware(r *gin.Engine, config *MiddlewareConfig) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r.Use(RecoveryMiddleware(logger))
	r.Use(RequestIDMiddleware())
	r.Use(StructuredLogger(logger))
	if config.Security != nil {
		r.Use(SecurityHeaders(config.Security))
	}
	if config.CORS != nil {
		r.Use(CORSMiddleware(config.CORS))
	}
	if config.RateLimit != nil && config.RateLimit.RequestsPerSecond > 0 {
		r.Use(NewRateLimiter(config.RateLimit).Middleware())
	}
}

// RespondError 写入JSON错误响应并中止后续处理
// 响应已开始输出时只中止，不再写入
func RespondError(c *gin.Context, status int, message string) {
	if c.Writer.Written() {
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":      message,
		"request_id": GetRequestID(c),
	})
}

// RecoveryMiddleware 捕获panic并记录错误日志
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error("请求处理发生panic",
			zap.Any("panic", recovered),
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("remote_addr", c.ClientIP()),
		)
		RespondError(c, http.StatusInternalServerError, "服务器内部错误")
	})
}

// RequestIDMiddleware 沿用调用方传入的请求ID，否则生成UUID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// GetRequestID 获取当前请求ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// StructuredLogger 请求完成后输出一条结构化日志
func StructuredLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_addr", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP请求", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP请求", fields...)
		default:
			logger.Info("HTTP请求", fields...)
		}
	}
}

// SecurityHeaders 设置安全相关的响应头
func SecurityHeaders(config *SecurityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// HSTS头（仅HTTPS）
		if config.EnableHSTS && c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// CORSMiddleware 跨域中间件，会话与请求ID头允许跨域读写
func CORSMiddleware(config *CORSConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Conversation-ID", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader, "X-Conversation-ID"},
		MaxAge:        config.MaxAge,
	}
	if len(config.AllowOrigins) == 0 || (len(config.AllowOrigins) == 1 && config.AllowOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = config.AllowOrigins
	}
	return cors.New(corsConfig)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按调用方区分的令牌桶限流器
type RateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	rate        rate.Limit
	burst       int
	idleTTL     time.Duration
	keyHeader   string
	lastCleanup time.Time
	now         func() time.Time
}

// NewRateLimiter 创建限流器实例
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	idle := config.IdleTTL
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &RateLimiter{
		visitors:    make(map[string]*visitor),
		rate:        rate.Limit(config.RequestsPerSecond),
		burst:       config.Burst,
		idleTTL:     idle,
		keyHeader:   config.KeyHeader,
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.cleanupLocked(now)

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Len 当前跟踪的调用方数量
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// cleanupLocked 回收空闲超过 idleTTL 的限流器
func (rl *RateLimiter) cleanupLocked(now time.Time) {
	if now.Sub(rl.lastCleanup) < rl.idleTTL {
		return
	}
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) >= rl.idleTTL {
			delete(rl.visitors, key)
		}
	}
	rl.lastCleanup = now
}

// Key 限流键：优先使用会话标识，否则使用客户端IP
func (rl *RateLimiter) Key(c *gin.Context) string {
	if rl.keyHeader != "" {
		if id := c.GetHeader(rl.keyHeader); id != "" {
			return "conversation:" + id
		}
	}
	return "ip:" + c.ClientIP()
}

// Middleware 请求限流中间件，预检请求不计数
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if !rl.Allow(rl.Key(c)) {
			c.Header("Retry-After", "1")
			RespondError(c, http.StatusTooManyRequests, "请求频率超过限制，请稍后重试")
			return
		}
		c.Next()
	}
}
