package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"askdb-go/internal/ai"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// TestSQLRunner_Query 测试database/sql查询执行
func TestSQLRunner_Query(t *testing.T) {
	ctx := context.Background()
	query := `SELECT id, "firstName" FROM "User" WHERE "firstName" ILIKE $1 LIMIT 10`

	t.Run("在只读事务中返回所有行", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(query)).
			WithArgs("%ana%").
			WillReturnRows(sqlmock.NewRows([]string{"id", "firstName"}).
				AddRow("u1", "Ana").
				AddRow("u2", "Anabel"))
		mock.ExpectCommit()

		runner := NewSQLRunner(db, time.Second, zap.NewNop())
		rows, err := runner.Query(ctx, query, "%ana%")

		require.NoError(t, err)
		assert.Equal(t, []map[string]any{
			{"id": "u1", "firstName": "Ana"},
			{"id": "u2", "firstName": "Anabel"},
		}, rows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("空结果返回空切片", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(query)).
			WithArgs("%zed%").
			WillReturnRows(sqlmock.NewRows([]string{"id", "firstName"}))
		mock.ExpectCommit()

		rows, err := NewSQLRunner(db, 0, nil).Query(ctx, query, "%zed%")

		require.NoError(t, err)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("查询失败时回滚", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(query)).
			WillReturnError(errors.New(`relation "User" does not exist`))
		mock.ExpectRollback()

		rows, err := NewSQLRunner(db, time.Second, zap.NewNop()).Query(ctx, query, "%x%")

		require.Error(t, err)
		assert.Nil(t, rows)
		assert.Contains(t, err.Error(), "查询执行失败")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("读取行失败", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(query)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "firstName"}).
				AddRow("u1", "Ana").
				RowError(0, errors.New("connection reset")))
		mock.ExpectRollback()

		_, err := NewSQLRunner(db, time.Second, zap.NewNop()).Query(ctx, query, "%a%")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("开启事务失败", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		_, err := NewSQLRunner(db, time.Second, zap.NewNop()).Query(ctx, query, "%a%")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "开启只读事务失败")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// TestSQLExecutor_WithSQLRunner 测试执行器与database/sql执行器组合
func TestSQLExecutor_WithSQLRunner(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "Project"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectCommit()

	executor := NewSQLExecutor(NewSQLRunner(db, time.Second, zap.NewNop()), nil, nil, zap.NewNop())
	payload, err := executor.Execute(context.Background(), generatedCountQuery(), "how many projects?")

	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"count": float64(12)}}, payload.Results)
	assert.Equal(t, `SELECT count(*) FROM "Project"`, payload.SQL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func generatedCountQuery() ai.GeneratedQuery {
	return ai.GeneratedQuery{
		SQL:         "SELECT count(*) FROM project;",
		Explanation: "project count",
		Parameters:  []any{},
		EntityTypes: []string{"project"},
	}
}
