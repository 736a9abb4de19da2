// Package sqltext 轻量级SQL词法切分
// 只区分字符串字面量、带引号标识符、注释、单词、数字与占位符，不构建语法树
package sqltext

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind 词法单元类型
type Kind int

const (
	Whitespace Kind = iota
	Word
	QuotedIdent
	String
	Comment
	Number
	Placeholder
	Symbol
)

// Token 词法单元，Text 保留原始文本
type Token struct {
	Kind Kind
	Text string

	// Unterminated 字面量、标识符或块注释在输入末尾仍未闭合
	Unterminated bool
	closer       string
}

// Closer 返回闭合未结束单元所需的后缀
func (t Token) Closer() string {
	if !t.Unterminated {
		return ""
	}
	return t.closer
}

// IsLineComment 是否为 -- 行注释
func (t Token) IsLineComment() bool {
	return t.Kind == Comment && strings.HasPrefix(t.Text, "--")
}

// Is 判断单词是否为指定关键字（大小写不敏感）
func (t Token) Is(keyword string) bool {
	return t.Kind == Word && strings.EqualFold(t.Text, keyword)
}

// Tokenize 切分SQL文本，Join(Tokenize(s)) == s 对任意输入成立
func Tokenize(sql string) []Token {
	tokens := make([]Token, 0, len(sql)/4+1)
	i := 0
	for i < len(sql) {
		tok := next(sql, i)
		tokens = append(tokens, tok)
		i += len(tok.Text)
	}
	return tokens
}

// Join 拼接词法单元
func Join(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// NextSignificant 返回 i 之后第一个非空白、非注释单元的下标，不存在时返回 -1
func NextSignificant(tokens []Token, i int) int {
	for j := i + 1; j < len(tokens); j++ {
		if tokens[j].Kind != Whitespace && tokens[j].Kind != Comment {
			return j
		}
	}
	return -1
}

// MaxPlaceholder 返回SQL中引用的最大位置参数序号，如 $3 返回 3
func MaxPlaceholder(sql string) int {
	max := 0
	for _, t := range Tokenize(sql) {
		if t.Kind != Placeholder {
			continue
		}
		n, err := strconv.Atoi(t.Text[1:])
		if err == nil && n > max {
			max = n
		}
	}
	return max
}

func next(s string, i int) Token {
	c := s[i]
	switch {
	case c == '\'':
		return quoted(s, i, '\'', String)
	case c == '"':
		return quoted(s, i, '"', QuotedIdent)
	case c == '-' && strings.HasPrefix(s[i:], "--"):
		end := strings.IndexByte(s[i:], '\n')
		if end < 0 {
			return Token{Kind: Comment, Text: s[i:]}
		}
		return Token{Kind: Comment, Text: s[i : i+end]}
	case c == '/' && strings.HasPrefix(s[i:], "/*"):
		end := strings.Index(s[i+2:], "*/")
		if end < 0 {
			return Token{Kind: Comment, Text: s[i:], Unterminated: true, closer: "*/"}
		}
		return Token{Kind: Comment, Text: s[i : i+2+end+2]}
	case c == '$':
		return dollar(s, i)
	case isWordStart(c):
		j := i + 1
		for j < len(s) && isWordPart(s[j]) {
			j++
		}
		return Token{Kind: Word, Text: s[i:j]}
	case c >= '0' && c <= '9':
		j := i + 1
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j+1 < len(s) && s[j] == '.' && s[j+1] >= '0' && s[j+1] <= '9' {
			j++
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
		}
		return Token{Kind: Number, Text: s[i:j]}
	}

	r, size := utf8.DecodeRuneInString(s[i:])
	if unicode.IsSpace(r) {
		j := i + size
		for j < len(s) {
			r2, sz := utf8.DecodeRuneInString(s[j:])
			if !unicode.IsSpace(r2) {
				break
			}
			j += sz
		}
		return Token{Kind: Whitespace, Text: s[i:j]}
	}
	return Token{Kind: Symbol, Text: s[i : i+size]}
}

// quoted 处理 '...' 与 "..."，成对的引号视为转义
func quoted(s string, i int, q byte, kind Kind) Token {
	j := i + 1
	for j < len(s) {
		if s[j] == q {
			if j+1 < len(s) && s[j+1] == q {
				j += 2
				continue
			}
			return Token{Kind: kind, Text: s[i : j+1]}
		}
		j++
	}
	return Token{Kind: kind, Text: s[i:], Unterminated: true, closer: string(q)}
}

// dollar 处理 $n 占位符与 $tag$...$tag$ 字符串
func dollar(s string, i int) Token {
	j := i + 1
	if j < len(s) && s[j] >= '0' && s[j] <= '9' {
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		return Token{Kind: Placeholder, Text: s[i:j]}
	}
	for j < len(s) && isWordPart(s[j]) {
		j++
	}
	if j < len(s) && s[j] == '$' {
		tag := s[i : j+1]
		end := strings.Index(s[j+1:], tag)
		if end < 0 {
			return Token{Kind: String, Text: s[i:], Unterminated: true, closer: dollarCloser(s[j+1:], tag)}
		}
		return Token{Kind: String, Text: s[i : j+1+end+len(tag)]}
	}
	return Token{Kind: Symbol, Text: "$"}
}

// dollarCloser 正文以标签前缀结尾时直接拼接标签会提前闭合，先补一个空格
func dollarCloser(body, tag string) string {
	if strings.Index(body+tag, tag) != len(body) {
		return " " + tag
	}
	return tag
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordPart(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}
