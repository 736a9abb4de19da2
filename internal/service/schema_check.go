package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"askdb-go/internal/catalog"
)

// DefaultTableSchema 目标库中业务表所在的schema
const DefaultTableSchema = "public"

const columnsQuery = `SELECT table_name, column_name FROM information_schema.columns WHERE table_schema = $1`

// DriftReport Schema目录与实际数据库的差异
type DriftReport struct {
	MissingTables  []string `json:"missingTables"`
	MissingColumns []string `json:"missingColumns"`
}

// HasDrift 是否存在差异
func (r DriftReport) HasDrift() bool {
	return len(r.MissingTables) > 0 || len(r.MissingColumns) > 0
}

// CheckSchemaDrift 对比Schema目录与 information_schema.columns
// 只报告目录中有而数据库中没有的表和列，列以 "Table"."column" 形式给出
func CheckSchemaDrift(ctx context.Context, db *sql.DB, schema *catalog.Schema, tableSchema string) (*DriftReport, error) {
	if schema == nil {
		schema = catalog.Default()
	}
	if tableSchema == "" {
		tableSchema = DefaultTableSchema
	}

	rows, err := db.QueryContext(ctx, columnsQuery, tableSchema)
	if err != nil {
		return nil, fmt.Errorf("读取information_schema失败: %w", err)
	}
	defer rows.Close()

	actual := make(map[string]map[string]bool)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, fmt.Errorf("读取列信息失败: %w", err)
		}
		if actual[table] == nil {
			actual[table] = make(map[string]bool)
		}
		actual[table][column] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("读取列信息失败: %w", err)
	}

	report := &DriftReport{MissingTables: []string{}, MissingColumns: []string{}}
	for _, table := range schema.Tables {
		columns, ok := actual[table.Name]
		if !ok {
			report.MissingTables = append(report.MissingTables, table.Name)
			continue
		}
		for _, col := range table.Columns {
			if !columns[col.Name] {
				report.MissingColumns = append(report.MissingColumns, fmt.Sprintf("%q.%q", table.Name, col.Name))
			}
		}
	}
	sort.Strings(report.MissingTables)
	sort.Strings(report.MissingColumns)
	return report, nil
}
