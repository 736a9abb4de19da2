package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"askdb-go/internal/config"
)

// Pinger 可探活的依赖，*pgxpool.Pool 与 *PgxRunner 均满足
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServiceInterface 健康检查服务接口，用于支持测试和依赖注入
type HealthServiceInterface interface {
	CheckHealth(ctx context.Context) *HealthCheckResult
	CheckReadiness(ctx context.Context) *ReadinessResult
	GetVersionInfo() map[string]any
}

// HealthService 健康检查服务
type HealthService struct {
	db          Pinger
	redisClient redis.UniversalClient
	appInfo     *config.AppInfo
	logger      *zap.Logger

	dbTimeout     time.Duration
	redisTimeout  time.Duration
	slowThreshold map[string]time.Duration
}

// NewHealthService 创建健康检查服务，redisClient 为 nil 时不检查Redis
func NewHealthService(db Pinger, redisClient redis.UniversalClient, appInfo *config.AppInfo, logger *zap.Logger) *HealthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if appInfo == nil {
		appInfo = config.DefaultAppInfo()
	}
	return &HealthService{
		db:           db,
		redisClient:  redisClient,
		appInfo:      appInfo,
		logger:       logger,
		dbTimeout:    5 * time.Second,
		redisTimeout: 3 * time.Second,
		slowThreshold: map[string]time.Duration{
			"database": 2 * time.Second,
			"redis":    time.Second,
		},
	}
}

// HealthStatus 健康状态枚举
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// ComponentStatus 组件状态
type ComponentStatus struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Duration  string       `json:"duration,omitempty"`
}

// HealthCheckResult 健康检查结果
type HealthCheckResult struct {
	Status      HealthStatus               `json:"status"`
	Timestamp   time.Time                  `json:"timestamp"`
	Service     string                     `json:"service"`
	Version     string                     `json:"version"`
	Environment string                     `json:"environment"`
	Components  map[string]ComponentStatus `json:"components"`
	BuildInfo   map[string]any             `json:"build_info,omitempty"`
}

// ReadinessResult 就绪检查结果
type ReadinessResult struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentStatus `json:"components"`
}

// CheckHealth 执行健康检查，依赖异常时服务仍可用（降级）
func (h *HealthService) CheckHealth(ctx context.Context) *HealthCheckResult {
	components := h.checkComponents(ctx)
	overallStatus := HealthStatusHealthy
	for _, c := range components {
		if c.Status != HealthStatusHealthy {
			overallStatus = HealthStatusDegraded
		}
	}

	return &HealthCheckResult{
		Status:      overallStatus,
		Timestamp:   time.Now(),
		Service:     h.appInfo.Name,
		Version:     h.appInfo.Version,
		Environment: h.appInfo.Environment,
		Components:  components,
		BuildInfo:   h.appInfo.GetBuildInfo(),
	}
}

// CheckReadiness 执行就绪检查
// 比健康检查更严格：数据库与已配置的Redis必须都可用，响应慢不影响就绪
func (h *HealthService) CheckReadiness(ctx context.Context) *ReadinessResult {
	components := h.checkComponents(ctx)
	overallStatus := HealthStatusHealthy
	for _, c := range components {
		if c.Status == HealthStatusUnhealthy {
			overallStatus = HealthStatusUnhealthy
		}
	}

	return &ReadinessResult{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Components: components,
	}
}

// GetVersionInfo 获取版本信息
func (h *HealthService) GetVersionInfo() map[string]any {
	return h.appInfo.GetBuildInfo()
}

func (h *HealthService) checkComponents(ctx context.Context) map[string]ComponentStatus {
	components := map[string]ComponentStatus{
		"database": h.checkDatabase(ctx),
	}
	if h.redisClient != nil {
		components["redis"] = h.check(ctx, "redis", "Redis", h.redisTimeout, func(ctx context.Context) error {
			return h.redisClient.Ping(ctx).Err()
		})
	}
	return components
}

// checkDatabase 检查数据库连接
func (h *HealthService) checkDatabase(ctx context.Context) ComponentStatus {
	if h.db == nil {
		return ComponentStatus{
			Status:    HealthStatusUnhealthy,
			Message:   "数据库连接未配置",
			Timestamp: time.Now(),
		}
	}
	return h.check(ctx, "database", "数据库", h.dbTimeout, h.db.Ping)
}

// check 在超时上下文中探活，响应时间过长标记为降级
func (h *HealthService) check(ctx context.Context, component, label string, timeout time.Duration, ping func(context.Context) error) ComponentStatus {
	start := time.Now()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := ping(timeoutCtx)
	duration := time.Since(start)

	if err != nil {
		h.logger.Error(label+"健康检查失败", zap.String("component", component), zap.Error(err))
		return ComponentStatus{
			Status:    HealthStatusUnhealthy,
			Message:   fmt.Sprintf("%s连接失败: %v", label, err),
			Timestamp: time.Now(),
			Duration:  duration.String(),
		}
	}

	status := HealthStatusHealthy
	message := label + "连接正常"
	if duration > h.slowThreshold[component] {
		status = HealthStatusDegraded
		message = label + "响应较慢"
	}

	return ComponentStatus{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Duration:  duration.String(),
	}
}
