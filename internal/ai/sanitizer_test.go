package ai

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// TestSanitize 测试标识符引号补全与行数限制
func TestSanitize(t *testing.T) {
	s := NewSanitizer(nil, nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "表名与驼峰列名加引号",
			in:   "SELECT id, firstName FROM User",
			want: `SELECT id, "firstName" FROM "User" LIMIT 100`,
		},
		{
			name: "大小写不敏感匹配并输出规范形式",
			in:   "select firstname from user where lastname ilike $1",
			want: `select "firstName" from "User" where "lastName" ilike $1 LIMIT 100`,
		},
		{
			name: "字符串字面量内不改写",
			in:   "select * from project where status = 'projectId';",
			want: `select * from "Project" where status = 'projectId' LIMIT 100`,
		},
		{
			name: "已加引号的标识符保持不变",
			in:   `SELECT "firstName" FROM "User" LIMIT 10`,
			want: `SELECT "firstName" FROM "User" LIMIT 10`,
		},
		{
			name: "COUNT聚合不追加LIMIT",
			in:   `SELECT COUNT(*) FROM "Task"`,
			want: `SELECT COUNT(*) FROM "Task"`,
		},
		{
			name: "FETCH视为已有限制",
			in:   `SELECT id FROM "Task" FETCH FIRST 5 ROWS ONLY`,
			want: `SELECT id FROM "Task" FETCH FIRST 5 ROWS ONLY`,
		},
		{
			name: "去掉结尾分号",
			in:   "SELECT id FROM \"Task\" LIMIT 5;;  \n",
			want: `SELECT id FROM "Task" LIMIT 5`,
		},
		{
			name: "去掉结尾注释后追加LIMIT",
			in:   `SELECT id FROM "Task" -- newest first`,
			want: `SELECT id FROM "Task" LIMIT 100`,
		},
		{
			name: "补全未闭合的字符串",
			in:   `SELECT name FROM "Project" WHERE name ILIKE '%web`,
			want: `SELECT name FROM "Project" WHERE name ILIKE '%web' LIMIT 100`,
		},
		{
			name: "函数调用不加引号",
			in:   "SELECT CONCAT(a, b), Task.id FROM x",
			want: `SELECT CONCAT(a, b), "Task".id FROM x LIMIT 100`,
		},
		{
			name: "后缀启发式大小写敏感",
			in:   "SELECT assigneeId, dueDate, format FROM tbl",
			want: `SELECT "assigneeId", "dueDate", format FROM tbl LIMIT 100`,
		},
		{
			name: "未知驼峰列名按启发式加引号",
			in:   "SELECT fooBar FROM tbl",
			want: `SELECT "fooBar" FROM tbl LIMIT 100`,
		},
		{
			name: "COUNT与括号之间有空白时追加LIMIT",
			in:   "SELECT COUNT (*) FROM \"Task\"",
			want: `SELECT COUNT (*) FROM "Task" LIMIT 100`,
		},
		{
			name: "未闭合美元字符串以标签前缀结尾",
			in:   "SELECT $fooBar$ x $fooBar",
			want: "SELECT $fooBar$ x $fooBar $fooBar$ LIMIT 100",
		},
		{
			name: "未闭合空标签美元字符串",
			in:   "SELECT $$ a$",
			want: "SELECT $$ a$ $$ LIMIT 100",
		},
		{
			name: "空输入",
			in:   "",
			want: "LIMIT 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Sanitize(tt.in))
			assert.Equal(t, tt.want, s.Sanitize(tt.want), "再次修复结果不变")
		})
	}
}

// TestSanitizeIdempotent 测试修复结果再次修复不变
func TestSanitizeIdempotent(t *testing.T) {
	s := NewSanitizer(nil, nil)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	fragments := []any{
		"SELECT ", "select ", " FROM ", "User", "user", "Project", "task", "firstName", "createdat",
		"fooBar", "projectId", " WHERE ", " = ", "'", "''", `"`, "$1", "$tag$", "$tag", "$$", "$", "--", "/*", "*/",
		"\n", ";", " ", "(", ")", "COUNT", "count(", " LIMIT ", " 10", " GROUP BY ", "SUM(", ",", "::text",
	}
	sqlish := gen.SliceOf(gen.OneConstOf(fragments...), reflect.TypeOf("")).Map(func(parts []string) string {
		return strings.Join(parts, "")
	})

	properties.Property("任意字符串", prop.ForAll(func(in string) bool {
		once := s.Sanitize(in)
		return s.Sanitize(once) == once
	}, gen.AnyString()))

	properties.Property("类SQL片段组合", prop.ForAll(func(in string) bool {
		once := s.Sanitize(in)
		return s.Sanitize(once) == once
	}, sqlish))

	properties.Property("结果总是有界", prop.ForAll(func(in string) bool {
		out := strings.ToUpper(s.Sanitize(in))
		return strings.Contains(out, "LIMIT") || strings.Contains(out, "FETCH") || strings.Contains(out, "COUNT(")
	}, sqlish))

	properties.TestingRun(t)
}
