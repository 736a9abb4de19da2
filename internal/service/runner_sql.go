package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SQLRunner 基于 database/sql 的查询执行，命令行工具使用
// 驱动由 pgx/v5/stdlib 注册，测试中可替换为 sqlmock
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
	logger  *zap.Logger
}

var _ QueryRunner = (*SQLRunner)(nil)

// NewSQLRunner 创建 database/sql 查询执行器
func NewSQLRunner(db *sql.DB, timeout time.Duration, logger *zap.Logger) *SQLRunner {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLRunner{db: db, timeout: timeout, logger: logger}
}

// Query 在只读事务中执行查询
func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(queryCtx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("开启只读事务失败: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(queryCtx, query, args...)
	if err != nil {
		return nil, describePgError(err)
	}
	result, err := scanRows(rows)
	if err != nil {
		return nil, describePgError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("提交只读事务失败: %w", err)
	}
	return result, nil
}

// scanRows 按列名读取所有行并关闭 rows
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
