package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askdb-go/internal/catalog"
)

func driftSchema() *catalog.Schema {
	return &catalog.Schema{
		Tables: []catalog.Table{
			{Name: "User", Columns: []catalog.Column{
				{Name: "id", Type: catalog.TypeString},
				{Name: "firstName", Type: catalog.TypeString},
				{Name: "email", Type: catalog.TypeString},
			}},
			{Name: "Task", Columns: []catalog.Column{
				{Name: "id", Type: catalog.TypeString},
				{Name: "title", Type: catalog.TypeString},
			}},
			{Name: "Expense", Columns: []catalog.Column{
				{Name: "id", Type: catalog.TypeString},
			}},
		},
	}
}

// TestCheckSchemaDrift 测试Schema差异检查
func TestCheckSchemaDrift(t *testing.T) {
	ctx := context.Background()

	t.Run("数据库与目录一致", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
			WithArgs("public").
			WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}).
				AddRow("User", "id").
				AddRow("User", "firstName").
				AddRow("User", "email").
				AddRow("User", "extra").
				AddRow("Task", "id").
				AddRow("Task", "title").
				AddRow("Expense", "id").
				AddRow("_prisma_migrations", "id"))

		report, err := CheckSchemaDrift(ctx, db, driftSchema(), "")

		require.NoError(t, err)
		assert.False(t, report.HasDrift())
		assert.Empty(t, report.MissingTables)
		assert.Empty(t, report.MissingColumns)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("报告缺失的表和列", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
			WithArgs("tenant").
			WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}).
				AddRow("User", "id").
				AddRow("User", "firstname").
				AddRow("Task", "id"))

		report, err := CheckSchemaDrift(ctx, db, driftSchema(), "tenant")

		require.NoError(t, err)
		assert.True(t, report.HasDrift())
		assert.Equal(t, []string{"Expense"}, report.MissingTables)
		assert.Equal(t, []string{`"Task"."title"`, `"User"."email"`, `"User"."firstName"`}, report.MissingColumns)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("查询失败", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
			WillReturnError(errors.New("permission denied"))

		report, err := CheckSchemaDrift(ctx, db, driftSchema(), "")

		require.Error(t, err)
		assert.Nil(t, report)
		assert.Contains(t, err.Error(), "permission denied")
	})

	t.Run("默认目录与自身一致", func(t *testing.T) {
		db, mock := newMockDB(t)
		rows := sqlmock.NewRows([]string{"table_name", "column_name"})
		for _, table := range catalog.Default().Tables {
			for _, col := range table.Columns {
				rows.AddRow(table.Name, col.Name)
			}
		}
		mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).WillReturnRows(rows)

		report, err := CheckSchemaDrift(ctx, db, nil, "")

		require.NoError(t, err)
		assert.False(t, report.HasDrift())
	})
}
