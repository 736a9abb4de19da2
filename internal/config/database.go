package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"
)

// DatabaseConfig PostgreSQL数据库连接配置
// 设置 DATABASE_URL 时忽略 DB_* 连接参数
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" json:"-"`

	// 数据库连接基础配置
	Host     string `env:"DB_HOST" envDefault:"localhost" json:"host"`
	Port     int    `env:"DB_PORT" envDefault:"5432" json:"port"`
	User     string `env:"DB_USER" envDefault:"postgres" json:"user"`
	Password string `env:"DB_PASSWORD" json:"-"` // 不输出到JSON
	Database string `env:"DB_NAME" envDefault:"askdb" json:"database"`
	SSLMode  string `env:"DB_SSL_MODE" envDefault:"prefer" json:"ssl_mode"` // disable, require, verify-ca, verify-full

	// 连接池配置
	MaxConns          int32         `env:"DB_MAX_CONNS" envDefault:"20" json:"max_conns"`
	MinConns          int32         `env:"DB_MIN_CONNS" envDefault:"2" json:"min_conns"`
	MaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h" json:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE" envDefault:"30m" json:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m" json:"health_check_period"`

	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s" json:"connect_timeout"`
	QueryTimeout   time.Duration `env:"DB_QUERY_TIMEOUT" envDefault:"30s" json:"query_timeout"` // 单条生成查询的超时

	LogLevel        string `env:"DB_LOG_LEVEL" envDefault:"warn" json:"log_level"` // trace, debug, info, warn, error, none
	ApplicationName string `env:"DB_APPLICATION_NAME" envDefault:"askdb" json:"application_name"`
	SearchPath      string `env:"DB_SEARCH_PATH" envDefault:"public" json:"search_path"`
}

var validSSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// GetConnectionString 构建PostgreSQL连接字符串
func (c *DatabaseConfig) GetConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=%s search_path=%s connect_timeout=%d",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode, c.ApplicationName, c.SearchPath,
		int(c.ConnectTimeout.Seconds()),
	)
}

// Validate 验证数据库配置的有效性
func (c *DatabaseConfig) Validate() error {
	if c.MaxConns <= 0 {
		return fmt.Errorf("最大连接数必须大于0")
	}
	if c.MinConns < 0 {
		return fmt.Errorf("最小连接数不能小于0")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("最小连接数不能大于最大连接数")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("查询超时必须为正数")
	}
	if c.URL != "" {
		return nil
	}

	if c.Host == "" {
		return fmt.Errorf("数据库主机地址不能为空")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("数据库端口必须在1-65535范围内")
	}
	if c.User == "" {
		return fmt.Errorf("数据库用户名不能为空")
	}
	if c.Database == "" {
		return fmt.Errorf("数据库名称不能为空")
	}
	if !slices.Contains(validSSLModes, c.SSLMode) {
		return fmt.Errorf("无效的SSL模式: %s", c.SSLMode)
	}
	return nil
}

// GetPoolConfig 获取pgxpool连接池配置，pgx日志输出到 logger
func (c *DatabaseConfig) GetPoolConfig(logger *zap.Logger) (*pgxpool.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("数据库配置验证失败: %w", err)
	}

	config, err := pgxpool.ParseConfig(c.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("解析数据库连接字符串失败: %w", err)
	}

	config.MaxConns = c.MaxConns
	config.MinConns = c.MinConns
	config.MaxConnLifetime = c.MaxConnLifetime
	config.MaxConnIdleTime = c.MaxConnIdleTime
	config.HealthCheckPeriod = c.HealthCheckPeriod
	config.ConnConfig.Tracer = c.tracer(logger)

	return config, nil
}

// GetConnConfig 获取单连接配置，供 database/sql 使用
func (c *DatabaseConfig) GetConnConfig(logger *zap.Logger) (*pgx.ConnConfig, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("数据库配置验证失败: %w", err)
	}
	config, err := pgx.ParseConfig(c.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("解析数据库连接字符串失败: %w", err)
	}
	config.Tracer = c.tracer(logger)
	return config, nil
}

func (c *DatabaseConfig) tracer(logger *zap.Logger) *tracelog.TraceLog {
	adapter := NewPgxZapLogger(logger, c.LogLevel)
	return &tracelog.TraceLog{Logger: adapter, LogLevel: adapter.GetLogLevel()}
}

// DefaultDatabaseConfig 返回默认的数据库配置
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Database: "askdb",
		SSLMode:  "prefer",

		MaxConns:          20,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,

		ConnectTimeout: 10 * time.Second,
		QueryTimeout:   30 * time.Second,

		LogLevel:        "warn",
		ApplicationName: "askdb",
		SearchPath:      "public",
	}
}
