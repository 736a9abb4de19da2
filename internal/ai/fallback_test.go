package ai

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askdb-go/internal/catalog"
	"askdb-go/internal/sqltext"
)

// TestFallbackGenerate 测试关键字检索查询的构造
func TestFallbackGenerate(t *testing.T) {
	g := NewFallbackGenerator(nil)

	t.Run("按表名复数命中", func(t *testing.T) {
		q := g.Generate("show me active projects")

		assert.Contains(t, q.EntityTypes, "project")
		assert.Equal(t, "project", q.EntityTypes[0])
		assert.Contains(t, q.SQL, `FROM "Project" WHERE`)
		assert.Contains(t, q.SQL, "UNION ALL")
		assert.True(t, strings.HasSuffix(q.SQL, "ORDER BY created_at DESC NULLS LAST LIMIT 50"))
		assert.Equal(t, `Schema-aware keyword search for "show me active projects"`, q.Explanation)
		assert.Contains(t, q.Parameters, "%active%")
		assert.Contains(t, q.Parameters, "%projects%")
	})

	t.Run("占位符数量与参数一致", func(t *testing.T) {
		for _, question := range []string{"tasks assigned to maria", "", "¿cuántos usuarios hay?", "expenses over 500 dollars last month"} {
			q := g.Generate(question)
			assert.Equal(t, len(q.Parameters), sqltext.MaxPlaceholder(q.SQL), question)
		}
	})

	t.Run("无命中时使用优先表", func(t *testing.T) {
		q := g.Generate("zzz qqq")
		assert.Equal(t, []string{"user", "project", "task", "expense"}, q.EntityTypes)
	})

	t.Run("最多四个检索词且截断长度", func(t *testing.T) {
		long := strings.Repeat("x", 60)
		q := g.Generate("alpha bravo charlie delta echo " + long)
		seen := map[any]bool{}
		for _, p := range q.Parameters {
			seen[p] = true
		}
		assert.Len(t, seen, 4)
		assert.False(t, seen["%echo%"])

		q = g.Generate(long)
		assert.Equal(t, "%"+strings.Repeat("x", 40)+"%", q.Parameters[0])
	})

	t.Run("空问题使用search", func(t *testing.T) {
		q := g.Generate("   ")
		require.NotEmpty(t, q.Parameters)
		assert.Equal(t, "%search%", q.Parameters[0])
	})

	t.Run("结果不受修复器影响", func(t *testing.T) {
		s := NewSanitizer(nil, nil)
		for _, question := range []string{"show me active projects", "time entries for john", "notifications"} {
			q := g.Generate(question)
			assert.Equal(t, q.SQL, s.Sanitize(q.SQL), question)
		}
	})
}

// TestFallbackRankTables 测试表打分
func TestFallbackRankTables(t *testing.T) {
	g := NewFallbackGenerator(nil)

	tables := g.rankTables([]string{"task", "status"})
	require.NotEmpty(t, tables)
	assert.Equal(t, "Task", tables[0].Name)
	assert.LessOrEqual(t, len(tables), maxFallbackTables)

	t.Run("只有优先表加分不算命中", func(t *testing.T) {
		tables := g.rankTables([]string{"zzz", "qqq"})
		names := make([]string, 0, len(tables))
		for _, table := range tables {
			names = append(names, table.Name)
		}
		assert.Equal(t, catalog.PriorityTables[:4], names)

		q := g.Generate("zzz qqq")
		assert.NotContains(t, q.SQL, `"RefreshToken"`)
		assert.NotContains(t, q.SQL, `"Department"`)
	})
}

// TestFallbackUserKeywordQuery 测试没有可检索表时的最简用户查询
func TestFallbackUserKeywordQuery(t *testing.T) {
	schema := &catalog.Schema{
		Tables: []catalog.Table{
			{Name: "User", Columns: []catalog.Column{{Name: "id", Type: catalog.TypeInt}}},
		},
	}
	g := NewFallbackGenerator(schema)

	q := g.Generate("find maria please")
	assert.Contains(t, q.SQL, "LIMIT 25")
	assert.Equal(t, []any{"%maria%"}, q.Parameters)
	assert.Equal(t, []string{"user"}, q.EntityTypes)
}

// TestFallbackDeterministic 测试同一问题总是得到相同查询
func TestFallbackDeterministic(t *testing.T) {
	g := NewFallbackGenerator(nil)

	properties := gopter.NewProperties(nil)
	properties.Property("确定性", prop.ForAll(func(question string) bool {
		a, b := g.Generate(question), g.Generate(question)
		return assert.ObjectsAreEqual(a, b)
	}, gen.AnyString()))
	properties.Property("占位符一致", prop.ForAll(func(question string) bool {
		q := g.Generate(question)
		return sqltext.MaxPlaceholder(q.SQL) == len(q.Parameters)
	}, gen.AlphaString()))
	properties.TestingRun(t)
}

// TestKeywordTokens 测试关键字切分
func TestKeywordTokens(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Show me ALL the projects", []string{"projects"}},
		{"tasks, tasks and more tasks", []string{"tasks", "more"}},
		{"¿Cuántos usuarios hay?", []string{"ntos", "usuarios"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, keywordTokens(tt.in))
		})
	}
}
