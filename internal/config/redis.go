package config

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig Redis配置
type RedisConfig struct {
	Addr          string        `env:"REDIS_ADDR" envDefault:"localhost:6379" json:"addr"`
	Password      string        `env:"REDIS_PASSWORD" json:"-"`
	DB            int           `env:"REDIS_DB" envDefault:"0" json:"db"`
	KeyPrefix     string        `env:"REDIS_KEY_PREFIX" envDefault:"askdb:conversation:" json:"key_prefix"`
	MaxRetries    int           `env:"REDIS_MAX_RETRIES" envDefault:"3" json:"max_retries"`
	DialTimeout   time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s" json:"dial_timeout"`
	ReadTimeout   time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s" json:"read_timeout"`
	WriteTimeout  time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s" json:"write_timeout"`
	PoolSize      int           `env:"REDIS_POOL_SIZE" envDefault:"10" json:"pool_size"`
	PoolTimeout   time.Duration `env:"REDIS_POOL_TIMEOUT" envDefault:"4s" json:"pool_timeout"`
	TLSEnabled    bool          `env:"REDIS_TLS_ENABLED" json:"tls_enabled"`
	TLSSkipVerify bool          `env:"REDIS_TLS_SKIP_VERIFY" json:"tls_skip_verify"`
	ClusterAddrs  []string      `env:"REDIS_CLUSTER_ADDRS" envSeparator:"," json:"cluster_addrs,omitempty"`
}

// DefaultRedisConfig 返回默认Redis配置
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		KeyPrefix:    "askdb:conversation:",
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		PoolTimeout:  4 * time.Second,
	}
}

// Validate 校验Redis配置
func (c *RedisConfig) Validate() error {
	if c.Addr == "" && len(c.ClusterAddrs) == 0 {
		return fmt.Errorf("REDIS_ADDR 不能为空")
	}
	if c.DB < 0 {
		return fmt.Errorf("REDIS_DB 不能为负数")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("REDIS_POOL_SIZE 必须为正数")
	}
	return nil
}

// UniversalOptions 转换为go-redis客户端选项，配置集群地址时使用集群模式
func (c *RedisConfig) UniversalOptions() *redis.UniversalOptions {
	opts := &redis.UniversalOptions{
		Addrs:        []string{c.Addr},
		Password:     c.Password,
		DB:           c.DB,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		PoolSize:     c.PoolSize,
		PoolTimeout:  c.PoolTimeout,
	}
	if len(c.ClusterAddrs) > 0 {
		opts.Addrs = c.ClusterAddrs
	}
	if c.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: c.TLSSkipVerify, //nolint:gosec
		}
	}
	return opts
}

// RedisManager Redis客户端管理器
type RedisManager struct {
	client redis.UniversalClient
	config *RedisConfig
	logger *zap.Logger
}

// NewRedisManager 创建Redis管理器并检查连接
func NewRedisManager(ctx context.Context, config *RedisConfig, logger *zap.Logger) (*RedisManager, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := config.UniversalOptions()
	client := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}

	logger.Info("Redis连接成功",
		zap.Strings("addrs", opts.Addrs),
		zap.Int("db", config.DB))

	return &RedisManager{client: client, config: config, logger: logger}, nil
}

// GetClient 获取Redis客户端
func (rm *RedisManager) GetClient() redis.UniversalClient {
	return rm.client
}

// KeyPrefix 会话键前缀
func (rm *RedisManager) KeyPrefix() string {
	return rm.config.KeyPrefix
}

// Close 关闭Redis连接
func (rm *RedisManager) Close() error {
	if rm.client != nil {
		return rm.client.Close()
	}
	return nil
}

// HealthCheck 健康检查
func (rm *RedisManager) HealthCheck(ctx context.Context) error {
	return rm.client.Ping(ctx).Err()
}
