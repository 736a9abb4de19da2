package ai

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"askdb-go/internal/catalog"
)

const (
	maxFallbackTables = 6
	maxSearchTerms    = 4
	maxTermLength     = 40
	fallbackRowLimit  = 50
)

var tokenSplitter = regexp.MustCompile(`[^a-z0-9_]+`)

// 英文与西班牙文常见虚词，不参与表打分与检索
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "how": true, "many": true,
	"much": true, "what": true, "which": true, "who": true, "whom": true, "show": true,
	"list": true, "give": true, "all": true, "with": true, "from": true, "that": true,
	"this": true, "these": true, "those": true, "there": true, "have": true, "has": true,
	"was": true, "were": true, "about": true, "into": true, "per": true, "can": true,
	"you": true, "please": true, "find": true, "get": true, "tell": true, "does": true,
	"did": true, "any": true, "our": true, "their": true, "them": true, "they": true,
	"que": true, "los": true, "las": true, "del": true, "una": true, "uno": true,
	"unos": true, "unas": true, "para": true, "por": true, "con": true, "cual": true,
	"cuales": true, "como": true, "donde": true, "esta": true, "este": true, "estos": true,
	"estas": true, "sus": true, "hay": true, "son": true, "mis": true, "tiene": true,
	"tienen": true, "dame": true, "muestra": true, "muestrame": true, "cuantos": true,
	"cuantas": true,
}

var (
	titleCandidates       = []string{"name", "title", "email", "subject"}
	descriptionCandidates = []string{"description", "message", "summary", "notes", "content", "status", "role"}
	dateCandidates        = []string{"createdAt", "updatedAt", "dueDate", "startDate", "endDate"}
)

// FallbackGenerator 基于Schema的关键字检索生成器
// 纯函数式且确定：同一问题与Schema总是得到相同的查询，不依赖网络
type FallbackGenerator struct {
	schema *catalog.Schema
}

// NewFallbackGenerator 创建关键字降级生成器
func NewFallbackGenerator(schema *catalog.Schema) *FallbackGenerator {
	if schema == nil {
		schema = catalog.Default()
	}
	return &FallbackGenerator{schema: schema}
}

// Generate 为问题构建跨表ILIKE检索
func (g *FallbackGenerator) Generate(question string) GeneratedQuery {
	normalized := strings.TrimSpace(question)
	if normalized == "" {
		normalized = "search"
	}
	tokens := keywordTokens(normalized)

	terms := tokens
	if len(terms) == 0 {
		terms = []string{normalized}
	}
	if len(terms) > maxSearchTerms {
		terms = terms[:maxSearchTerms]
	}
	searchTerms := make([]string, len(terms))
	for i, term := range terms {
		searchTerms[i] = "%" + truncateBytes(term, maxTermLength) + "%"
	}

	selected := g.rankTables(tokens)
	params := make([]any, 0, len(selected)*len(searchTerms)*4)
	unions := make([]string, 0, len(selected))
	entityTypes := make([]string, 0, len(selected))

	for _, table := range selected {
		entityTypes = append(entityTypes, strings.ToLower(table.Name))

		textCols := table.TextColumns()
		if len(textCols) == 0 {
			continue
		}
		predicates := make([]string, 0, len(textCols)*len(searchTerms))
		for _, col := range textCols {
			for _, term := range searchTerms {
				params = append(params, term)
				predicates = append(predicates, fmt.Sprintf(`%s::text ILIKE $%d`, qualified(table.Name, col.Name), len(params)))
			}
		}

		unions = append(unions, fmt.Sprintf(
			"SELECT '%s' AS entity_type, %s AS entity_id, %s AS title, %s AS description, %s AS created_at FROM \"%s\" WHERE %s",
			strings.ToLower(table.Name),
			entityIDExpression(table),
			titleExpression(table),
			descriptionExpression(table),
			dateExpression(table),
			table.Name,
			strings.Join(predicates, " OR "),
		))
	}

	if len(unions) == 0 {
		return g.userKeywordQuery(normalized, tokens)
	}

	sql := "SELECT * FROM (\n  " +
		strings.Join(unions, "\n  UNION ALL\n  ") +
		fmt.Sprintf("\n) AS schema_search ORDER BY created_at DESC NULLS LAST LIMIT %d", fallbackRowLimit)

	return GeneratedQuery{
		SQL:         sql,
		Explanation: fmt.Sprintf(`Schema-aware keyword search for "%s"`, normalized),
		Parameters:  params,
		EntityTypes: entityTypes,
	}
}

// userKeywordQuery 没有任何可检索表时的最简用户检索
func (g *FallbackGenerator) userKeywordQuery(normalized string, tokens []string) GeneratedQuery {
	term := truncateBytes(normalized, maxTermLength)
	if len(tokens) > 0 {
		term = tokens[0]
	}
	return GeneratedQuery{
		SQL:         `SELECT id, "firstName", "lastName", email FROM "User" WHERE "firstName" ILIKE $1 OR "lastName" ILIKE $1 OR email ILIKE $1 LIMIT 25`,
		Explanation: fmt.Sprintf(`Basic user keyword search for "%s"`, normalized),
		Parameters:  []any{"%" + term + "%"},
		EntityTypes: []string{"user"},
	}
}

type scoredTable struct {
	table catalog.Table
	score float64
}

// rankTables 按关键字命中为表打分，同分保持Schema声明顺序
func (g *FallbackGenerator) rankTables(tokens []string) []catalog.Table {
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}
	priority := make(map[string]bool, len(catalog.PriorityTables))
	for _, name := range catalog.PriorityTables {
		priority[name] = true
	}

	scored := make([]scoredTable, 0, len(g.schema.Tables))
	matched := false
	for _, table := range g.schema.Tables {
		score := 0.0
		lower := strings.ToLower(table.Name)
		if tokenSet[lower] || tokenSet[lower+"s"] || tokenSet[lower+"es"] {
			score += 3
		}
		for _, col := range table.Columns {
			if tokenSet[strings.ToLower(col.Name)] {
				score++
			}
		}
		if score > 0 {
			matched = true
		}
		// 优先表加分只参与排序，不算命中
		if priority[table.Name] {
			score += 0.5
		}
		scored = append(scored, scoredTable{table: table, score: score})
	}

	if !matched {
		tables := make([]catalog.Table, 0, 4)
		for _, name := range catalog.PriorityTables {
			if t, ok := g.schema.Table(name); ok && len(tables) < 4 {
				tables = append(tables, t)
			}
		}
		return tables
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > maxFallbackTables {
		scored = scored[:maxFallbackTables]
	}
	tables := make([]catalog.Table, len(scored))
	for i, s := range scored {
		tables[i] = s.table
	}
	return tables
}

// keywordTokens 小写切分问题，保留长度大于2的非虚词，按出现顺序去重
func keywordTokens(question string) []string {
	parts := tokenSplitter.Split(strings.ToLower(question), -1)
	tokens := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		if len(p) <= 2 || stopWords[p] || seen[p] {
			continue
		}
		seen[p] = true
		tokens = append(tokens, p)
	}
	return tokens
}

func qualified(table, column string) string {
	return fmt.Sprintf(`"%s"."%s"`, table, column)
}

func pickColumn(table catalog.Table, candidates []string) (string, bool) {
	for _, c := range candidates {
		if table.HasColumn(c) {
			return c, true
		}
	}
	return "", false
}

func entityIDExpression(table catalog.Table) string {
	if table.HasColumn("id") {
		return qualified(table.Name, "id") + "::text"
	}
	for _, col := range table.Columns {
		if col.Type == catalog.TypeString {
			return qualified(table.Name, col.Name) + "::text"
		}
	}
	return "''"
}

func titleExpression(table catalog.Table) string {
	if table.HasColumn("firstName") && table.HasColumn("lastName") {
		first, last := qualified(table.Name, "firstName"), qualified(table.Name, "lastName")
		return fmt.Sprintf(
			"COALESCE(NULLIF(TRIM(COALESCE(%s, '') || ' ' || COALESCE(%s, '')), ''), %s::text, %s::text, '%s')",
			first, last, first, last, table.Name)
	}
	if col, ok := pickColumn(table, titleCandidates); ok {
		return fmt.Sprintf("COALESCE(%s::text, '%s')", qualified(table.Name, col), table.Name)
	}
	return "'" + table.Name + "'"
}

func descriptionExpression(table catalog.Table) string {
	if col, ok := pickColumn(table, descriptionCandidates); ok {
		return fmt.Sprintf("COALESCE(%s::text, '')", qualified(table.Name, col))
	}
	if table.HasColumn("email") {
		return fmt.Sprintf("COALESCE(%s::text, '')", qualified(table.Name, "email"))
	}
	return "''"
}

func dateExpression(table catalog.Table) string {
	if col, ok := pickColumn(table, dateCandidates); ok {
		return qualified(table.Name, col)
	}
	return "NOW()"
}

// truncateBytes 按字节截断且不切断UTF-8字符
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
