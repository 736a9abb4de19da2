package config

import (
	"fmt"
	"time"

	"askdb-go/internal/history"
)

// 会话历史后端
const (
	HistoryBackendMemory = "memory"
	HistoryBackendRedis  = "redis"
)

// HistoryConfig 会话历史配置
type HistoryConfig struct {
	Backend  string        `env:"HISTORY_BACKEND" envDefault:"memory" json:"backend"`
	MaxTurns int           `env:"HISTORY_MAX_TURNS" envDefault:"100" json:"max_turns"`
	TTL      time.Duration `env:"HISTORY_TTL" envDefault:"1h" json:"ttl"`
}

// Validate 校验历史配置
func (c *HistoryConfig) Validate() error {
	if c.Backend != HistoryBackendMemory && c.Backend != HistoryBackendRedis {
		return fmt.Errorf("无效的HISTORY_BACKEND: %s", c.Backend)
	}
	return c.StoreConfig().Validate()
}

// StoreConfig 转换为存储配置
func (c *HistoryConfig) StoreConfig() history.Config {
	return history.Config{MaxTurns: c.MaxTurns, TTL: c.TTL}
}
