// Package database PostgreSQL连接管理
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"askdb-go/internal/config"
)

// Manager PostgreSQL数据库连接管理器
// 基于pgxpool实现连接池管理，支持健康检查和监控
type Manager struct {
	pool   *pgxpool.Pool
	config *config.DatabaseConfig
	logger *zap.Logger
}

// NewManager 创建数据库管理器并执行一次健康检查
func NewManager(ctx context.Context, dbConfig *config.DatabaseConfig, logger *zap.Logger) (*Manager, error) {
	if dbConfig == nil {
		return nil, fmt.Errorf("数据库配置不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	poolConfig, err := dbConfig.GetPoolConfig(logger)
	if err != nil {
		return nil, fmt.Errorf("获取连接池配置失败: %w", err)
	}

	logger.Info("初始化数据库连接池",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("max_conns", poolConfig.MaxConns),
		zap.Int32("min_conns", poolConfig.MinConns),
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("创建数据库连接池失败: %w", err)
	}

	manager := &Manager{pool: pool, config: dbConfig, logger: logger}
	if err := manager.HealthCheck(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("数据库连接池初始化成功")
	return manager, nil
}

// GetPool 获取数据库连接池
func (m *Manager) GetPool() *pgxpool.Pool {
	return m.pool
}

// HealthCheck 执行 SELECT 1 并记录连接池状态
func (m *Manager) HealthCheck(ctx context.Context) error {
	if m.pool == nil {
		return fmt.Errorf("数据库连接池未初始化")
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := m.pool.QueryRow(checkCtx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("数据库健康检查失败: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("数据库健康检查返回值异常: %d", result)
	}

	stats := m.GetPoolStats()
	m.logger.Debug("数据库连接池状态",
		zap.Int32("total_conns", stats.TotalConns),
		zap.Int32("idle_conns", stats.IdleConns),
		zap.Int32("acquired_conns", stats.AcquiredConns),
		zap.Int64("acquire_count", stats.AcquireCount),
	)
	return nil
}

// Ping 检查连接是否可用
func (m *Manager) Ping(ctx context.Context) error {
	return m.pool.Ping(ctx)
}

// GetPoolStats 获取连接池统计信息
func (m *Manager) GetPoolStats() *PoolStats {
	stat := m.pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration(),
		MaxConns:        m.config.MaxConns,
	}
}

// Close 关闭数据库连接池
func (m *Manager) Close() {
	if m.pool != nil {
		m.pool.Close()
		m.logger.Info("数据库连接池已关闭")
	}
}

// OpenSQL 通过 pgx stdlib 打开 database/sql 连接，命令行工具使用
func OpenSQL(ctx context.Context, dbConfig *config.DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	if dbConfig == nil {
		return nil, fmt.Errorf("数据库配置不能为空")
	}
	connConfig, err := dbConfig.GetConnConfig(logger)
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDB(*connConfig)
	db.SetMaxOpenConns(int(dbConfig.MaxConns))
	db.SetConnMaxLifetime(dbConfig.MaxConnLifetime)
	db.SetConnMaxIdleTime(dbConfig.MaxConnIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	return db, nil
}

// PoolStats 连接池统计信息
type PoolStats struct {
	TotalConns      int32         `json:"total_conns"`
	IdleConns       int32         `json:"idle_conns"`
	AcquiredConns   int32         `json:"acquired_conns"`
	AcquireCount    int64         `json:"acquire_count"`
	AcquireDuration time.Duration `json:"acquire_duration"`
	MaxConns        int32         `json:"max_conns"`
}

// GetUtilization 连接池利用率 (0.0-1.0)
func (ps *PoolStats) GetUtilization() float64 {
	if ps.MaxConns <= 0 {
		return 0.0
	}
	return float64(ps.AcquiredConns) / float64(ps.MaxConns)
}
