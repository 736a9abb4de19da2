package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"askdb-go/internal/service"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	health service.HealthServiceInterface
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(health service.HealthServiceInterface) *HealthHandler {
	return &HealthHandler{health: health}
}

// Health 存活检查，依赖异常时返回 degraded 但状态码仍为200
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.health.CheckHealth(c.Request.Context()))
}

// Ready 就绪检查，数据库或Redis不可用时返回503
func (h *HealthHandler) Ready(c *gin.Context) {
	result := h.health.CheckReadiness(c.Request.Context())
	status := http.StatusOK
	if result.Status != service.HealthStatusHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}

// Version 版本信息
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.health.GetVersionInfo())
}
