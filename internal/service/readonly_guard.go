package service

import (
	"errors"
	"fmt"
	"strings"

	"askdb-go/internal/sqltext"
)

// ErrReadOnlyViolation 语句不是单条只读查询，未发送到数据库
var ErrReadOnlyViolation = errors.New("只允许单条只读查询")

// 写操作、DDL与会话控制关键字
var forbiddenKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "UPSERT": true,
	"DROP": true, "CREATE": true, "ALTER": true, "TRUNCATE": true, "RENAME": true,
	"GRANT": true, "REVOKE": true, "COPY": true, "CALL": true, "DO": true,
	"EXECUTE": true, "PREPARE": true, "DEALLOCATE": true, "DECLARE": true,
	"LOCK": true, "VACUUM": true, "ANALYZE": true, "CLUSTER": true, "REINDEX": true,
	"REFRESH": true, "COMMENT": true, "SECURITY": true, "LISTEN": true, "NOTIFY": true,
	"SET": true, "RESET": true, "INTO": true,
}

// 具有副作用或可读取服务器文件的函数
var forbiddenFunctions = map[string]bool{
	"PG_SLEEP": true, "PG_TERMINATE_BACKEND": true, "PG_CANCEL_BACKEND": true,
	"PG_READ_FILE": true, "PG_READ_BINARY_FILE": true, "PG_LS_DIR": true,
	"LO_IMPORT": true, "LO_EXPORT": true, "SET_CONFIG": true, "DBLINK": true, "DBLINK_EXEC": true,
}

// CheckReadOnly 校验SQL是单条 SELECT/WITH 语句
// 基于词法切分，字符串与注释中的关键字不会误判
func CheckReadOnly(sql string) error {
	tokens := sqltext.Tokenize(sql)

	first := ""
	empty := true
	for i, tok := range tokens {
		if tok.Kind == sqltext.Whitespace || tok.Kind == sqltext.Comment {
			continue
		}
		if tok.Unterminated {
			return fmt.Errorf("%w: 存在未闭合的字面量", ErrReadOnlyViolation)
		}
		if tok.Kind == sqltext.Symbol && tok.Text == ";" {
			if next := sqltext.NextSignificant(tokens, i); next >= 0 && tokens[next].Text != ";" {
				return fmt.Errorf("%w: 包含多条语句", ErrReadOnlyViolation)
			}
			continue
		}
		empty = false
		if tok.Kind != sqltext.Word {
			if first == "" && tok.Text != "(" {
				return fmt.Errorf("%w: 语句必须以 SELECT 或 WITH 开头", ErrReadOnlyViolation)
			}
			continue
		}

		upper := strings.ToUpper(tok.Text)
		if first == "" {
			first = upper
			if first != "SELECT" && first != "WITH" {
				return fmt.Errorf("%w: 语句必须以 SELECT 或 WITH 开头, 实际为 %s", ErrReadOnlyViolation, first)
			}
		}
		if forbiddenKeywords[upper] {
			return fmt.Errorf("%w: 包含关键字 %s", ErrReadOnlyViolation, upper)
		}
		if forbiddenFunctions[upper] {
			if next := sqltext.NextSignificant(tokens, i); next >= 0 && tokens[next].Text == "(" {
				return fmt.Errorf("%w: 调用函数 %s", ErrReadOnlyViolation, strings.ToLower(upper))
			}
		}
	}

	if empty {
		return fmt.Errorf("%w: 空语句", ErrReadOnlyViolation)
	}
	return nil
}
