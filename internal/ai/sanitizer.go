package ai

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"askdb-go/internal/catalog"
	"askdb-go/internal/sqltext"
)

// DefaultRowLimit 未声明 LIMIT/FETCH 的查询自动追加的行数上限
const DefaultRowLimit = "100"

var (
	camelCasePattern  = regexp.MustCompile(`^[a-z]+[A-Z][a-zA-Z]*$`)
	columnSuffixRegex = regexp.MustCompile(`^[a-zA-Z]+(Id|At|Date)$`)
)

var aggregateFuncs = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
}

// Sanitizer SQL修复器
// 对模型输出补全标识符引号、去除结尾分号并保证结果集有界，
// 字符串字面量、带引号标识符与注释内的内容从不改写
type Sanitizer struct {
	schema *catalog.Schema
	logger *zap.Logger
}

// NewSanitizer 创建SQL修复器
func NewSanitizer(schema *catalog.Schema, logger *zap.Logger) *Sanitizer {
	if schema == nil {
		schema = catalog.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sanitizer{schema: schema, logger: logger}
}

// Sanitize 修复原始SQL，对任意输入都返回结果且幂等
func (s *Sanitizer) Sanitize(raw string) string {
	tokens := sqltext.Tokenize(raw)

	for i, tok := range tokens {
		if tok.Kind != sqltext.Word {
			continue
		}
		if next := sqltext.NextSignificant(tokens, i); next >= 0 && tokens[next].Text == "(" {
			continue
		}
		if quoted, ok := s.quoteIdentifier(tok.Text); ok {
			tokens[i] = sqltext.Token{Kind: sqltext.QuotedIdent, Text: quoted}
		}
	}

	tokens = trimTrailing(tokens)

	var b strings.Builder
	b.WriteString(sqltext.Join(tokens))
	if n := len(tokens); n > 0 && tokens[n-1].Unterminated {
		b.WriteString(tokens[n-1].Closer())
	}
	sql := b.String()

	bounded, grouped, aggregated := inspect(tokens)
	if grouped && aggregated {
		s.logger.Warn("SQL同时包含GROUP BY与聚合函数，请确认非聚合列均已分组", zap.String("sql", sql))
	}
	if !bounded {
		sql += " LIMIT " + DefaultRowLimit
	}
	return strings.TrimSpace(sql)
}

// quoteIdentifier 判断裸标识符是否需要加引号并返回规范形式
func (s *Sanitizer) quoteIdentifier(word string) (string, bool) {
	if name, ok := s.schema.CanonicalTable(word); ok {
		return `"` + name + `"`, true
	}
	if name, ok := s.schema.CanonicalColumn(word); ok {
		return `"` + name + `"`, true
	}
	if camelCasePattern.MatchString(word) || columnSuffixRegex.MatchString(word) {
		return `"` + word + `"`, true
	}
	return "", false
}

// trimTrailing 去掉末尾的空白、分号和注释
func trimTrailing(tokens []sqltext.Token) []sqltext.Token {
	for len(tokens) > 0 {
		last := tokens[len(tokens)-1]
		if last.Kind == sqltext.Whitespace || last.Kind == sqltext.Comment ||
			(last.Kind == sqltext.Symbol && last.Text == ";") {
			tokens = tokens[:len(tokens)-1]
			continue
		}
		break
	}
	return tokens
}

// inspect 检查行数限制、COUNT聚合与GROUP BY
func inspect(tokens []sqltext.Token) (bounded, grouped, aggregated bool) {
	for i, tok := range tokens {
		if tok.Kind != sqltext.Word {
			continue
		}
		upper := strings.ToUpper(tok.Text)
		switch upper {
		case "LIMIT", "FETCH":
			bounded = true
		case "GROUP":
			if next := sqltext.NextSignificant(tokens, i); next >= 0 && tokens[next].Is("BY") {
				grouped = true
			}
		}
		if aggregateFuncs[upper] {
			if next := sqltext.NextSignificant(tokens, i); next >= 0 && tokens[next].Text == "(" {
				aggregated = true
				// 只有紧跟括号的 COUNT( 视为有界，COUNT (*) 仍追加 LIMIT
				if upper == "COUNT" && next == i+1 {
					bounded = true
				}
			}
		}
	}
	return bounded, grouped, aggregated
}
