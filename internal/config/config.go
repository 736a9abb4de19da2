// Package config 基于环境变量的服务配置
package config

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// Config 服务全部配置
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	AI       AIConfig
	History  HistoryConfig
	Redis    RedisConfig
	App      AppInfo
}

// Load 从进程环境变量加载配置
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFromMap 从给定的变量表加载配置，不读取进程环境
func LoadFromMap(vars map[string]string) (*Config, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	return parse(env.Options{Environment: vars})
}

// LoadDatabase 只加载并校验数据库配置，供不需要模型的命令使用
func LoadDatabase() (*DatabaseConfig, error) {
	cfg := &DatabaseConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}
	cfg.App.GoVersion = runtime.Version()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验所有子配置，返回合并后的错误
func (c *Config) Validate() error {
	var errs []error
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if err := c.AI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ai: %w", err))
	}
	if err := c.History.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("history: %w", err))
	}
	if c.History.Backend == HistoryBackendRedis {
		if err := c.Redis.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
