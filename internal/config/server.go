package config

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Port            int           `env:"SERVER_PORT" envDefault:"8080" json:"port"`
	GinMode         string        `env:"GIN_MODE" envDefault:"release" json:"gin_mode"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s" json:"read_timeout"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"120s" json:"write_timeout"` // 流式回答需要较长的写超时
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s" json:"shutdown_timeout"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:"," json:"cors_allowed_origins"`
	RateLimitRPS       float64  `env:"RATE_LIMIT_RPS" envDefault:"5" json:"rate_limit_rps"`
	RateLimitBurst     int      `env:"RATE_LIMIT_BURST" envDefault:"10" json:"rate_limit_burst"`

	// ConversationHeader 携带会话标识的请求头
	ConversationHeader string `env:"CONVERSATION_HEADER" envDefault:"X-Conversation-ID" json:"conversation_header"`
}

// Addr 监听地址
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate 校验服务配置
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("服务端口必须在1-65535范围内")
	}
	switch c.GinMode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		return fmt.Errorf("无效的GIN_MODE: %s", c.GinMode)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("限流参数不能为负数")
	}
	if c.ConversationHeader == "" {
		return fmt.Errorf("会话请求头名称不能为空")
	}
	return nil
}
