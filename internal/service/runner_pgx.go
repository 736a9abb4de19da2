package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DefaultQueryTimeout 单条查询的默认超时
const DefaultQueryTimeout = 30 * time.Second

// QueryRunner 执行带位置参数的查询并按列名返回行
type QueryRunner interface {
	Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error)
}

// PgxRunner 基于pgxpool的查询执行，每条查询在只读事务中运行
type PgxRunner struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  *zap.Logger
}

var _ QueryRunner = (*PgxRunner)(nil)

// NewPgxRunner 创建pgx查询执行器，timeout <= 0 时使用默认值
func NewPgxRunner(pool *pgxpool.Pool, timeout time.Duration, logger *zap.Logger) *PgxRunner {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PgxRunner{pool: pool, timeout: timeout, logger: logger}
}

// Query 执行查询
func (r *PgxRunner) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.pool.BeginTx(queryCtx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("开启只读事务失败: %w", err)
	}
	defer func() {
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			r.logger.Debug("回滚只读事务失败", zap.Error(err))
		}
	}()

	start := time.Now()
	rows, err := tx.Query(queryCtx, sql, args...)
	if err != nil {
		return nil, describePgError(err)
	}
	result, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, describePgError(err)
	}

	r.logger.Debug("查询执行完成",
		zap.String("sql", sql),
		zap.Int("row_count", len(result)),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// Ping 检查数据库连接
func (r *PgxRunner) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// describePgError 提取PostgreSQL错误码与消息，保留原始错误链
func describePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("数据库错误 [%s]: %s: %w", pgErr.Code, pgErr.Message, err)
	}
	return fmt.Errorf("查询执行失败: %w", err)
}
