package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"askdb-go/internal/ai"
	"askdb-go/internal/catalog"
)

// ErrAllTiersFailed 降级阶梯全部失败
var ErrAllTiersFailed = errors.New("所有查询层级均执行失败")

// 降级阶梯层级名称，用于日志与指标
const (
	TierGenerated = "generated"
	TierSchema    = "schema_fallback"
	TierMinimal   = "minimal"
)

const (
	noteErrorLength    = 100
	minimalTermLength  = 20
	minimalUserQuery   = `SELECT id, "firstName", "lastName", email FROM "User" WHERE "firstName" ILIKE $1 LIMIT 10`
	minimalQueryNote   = "All searches failed, showing basic user results"
	schemaFallbackNote = "Original question failed: "
)

// TierRecorder 记录每个层级的执行结果
type TierRecorder interface {
	RecordTier(tier string, success bool, duration time.Duration)
}

type nopTierRecorder struct{}

func (nopTierRecorder) RecordTier(string, bool, time.Duration) {}

// tier 降级阶梯中的一级，prev 为上一级的错误
type tier struct {
	name  string
	build func(query ai.GeneratedQuery, question string, prev error) (ai.GeneratedQuery, string)
}

// SQLExecutor 查询执行器
// 依次尝试 生成的查询 -> Schema关键字检索 -> 最简用户查询，
// 每一级执行前都重新修复SQL并经过只读校验
type SQLExecutor struct {
	runner    QueryRunner
	sanitizer *ai.Sanitizer
	fallback  *ai.FallbackGenerator
	tiers     []tier
	metrics   TierRecorder
	logger    *zap.Logger
}

var _ ai.QueryExecutor = (*SQLExecutor)(nil)

// NewSQLExecutor 创建查询执行器
func NewSQLExecutor(runner QueryRunner, schema *catalog.Schema, metrics TierRecorder, logger *zap.Logger) *SQLExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schema == nil {
		schema = catalog.Default()
	}
	if metrics == nil {
		metrics = nopTierRecorder{}
	}
	e := &SQLExecutor{
		runner:    runner,
		sanitizer: ai.NewSanitizer(schema, logger),
		fallback:  ai.NewFallbackGenerator(schema),
		metrics:   metrics,
		logger:    logger,
	}
	e.tiers = []tier{
		{name: TierGenerated, build: func(q ai.GeneratedQuery, _ string, _ error) (ai.GeneratedQuery, string) {
			return q, ""
		}},
		{name: TierSchema, build: func(_ ai.GeneratedQuery, question string, prev error) (ai.GeneratedQuery, string) {
			return e.fallback.Generate(question), schemaFallbackNote + truncateRunes(errorText(prev), noteErrorLength)
		}},
		{name: TierMinimal, build: func(_ ai.GeneratedQuery, question string, _ error) (ai.GeneratedQuery, string) {
			return MinimalQuery(question), minimalQueryNote
		}},
	}
	return e
}

// Execute 执行查询，HISTORIC 不访问数据库
func (e *SQLExecutor) Execute(ctx context.Context, query ai.GeneratedQuery, question string) (*ai.QueryResultPayload, error) {
	if query.IsHistoric() {
		return &ai.QueryResultPayload{
			Question:     question,
			SQL:          query.SQL,
			Explanation:  query.Explanation,
			EntityTypes:  query.EntityTypes,
			Results:      []map[string]any{},
			TotalResults: 0,
		}, nil
	}

	var (
		errs []error
		prev error
	)
	for _, t := range e.tiers {
		candidate, note := t.build(query, question, prev)
		start := time.Now()
		rows, sql, err := e.run(ctx, candidate)
		e.metrics.RecordTier(t.name, err == nil, time.Since(start))
		if err == nil {
			if note != "" {
				e.logger.Info("降级查询执行成功",
					zap.String("tier", t.name),
					zap.String("question", question),
					zap.Int("row_count", len(rows)))
			}
			return &ai.QueryResultPayload{
				Question:     question,
				SQL:          sql,
				Explanation:  candidate.Explanation,
				EntityTypes:  candidate.EntityTypes,
				Results:      rows,
				TotalResults: len(rows),
				Note:         note,
			}, nil
		}

		e.logger.Warn("查询层级执行失败",
			zap.String("tier", t.name),
			zap.String("question", question),
			zap.String("sql", sql),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		prev = err

		if ctx.Err() != nil {
			break
		}
	}

	err := fmt.Errorf("%w: %w", ErrAllTiersFailed, errors.Join(errs...))
	e.logger.Error("查询执行失败", zap.String("question", question), zap.Error(err))
	return nil, err
}

// run 修复、校验并执行单个查询
func (e *SQLExecutor) run(ctx context.Context, query ai.GeneratedQuery) ([]map[string]any, string, error) {
	sql := e.sanitizer.Sanitize(query.SQL)
	if err := CheckReadOnly(sql); err != nil {
		return nil, sql, err
	}
	rows, err := e.runner.Query(ctx, sql, query.Parameters...)
	if err != nil {
		return nil, sql, err
	}
	return SerializeRows(rows), sql, nil
}

// MinimalQuery 最后一级兜底：按问题前20个字符匹配用户名
func MinimalQuery(question string) ai.GeneratedQuery {
	return ai.GeneratedQuery{
		SQL:         minimalUserQuery,
		Explanation: "Basic user search",
		Parameters:  []any{"%" + truncateRunes(strings.TrimSpace(question), minimalTermLength) + "%"},
		EntityTypes: []string{"user"},
	}
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
