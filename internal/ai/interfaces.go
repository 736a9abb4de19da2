// Package ai 提供自然语言到SQL的核心能力
// 包括SQL生成、修复、关键字降级检索以及基于查询结果的流式回答合成
package ai

import (
	"context"
	"errors"
	"time"
)

// HistoricSentinel 模型返回该值表示问题针对当前会话本身，无需访问数据库
const HistoricSentinel = "HISTORIC"

// =========================================================================
// 核心数据契约
// =========================================================================

// GeneratedQuery 任一生成路径产出的查询
// Parameters 按位置绑定到 $1..$n，长度与SQL中的最大占位符序号一致（HISTORIC除外）
type GeneratedQuery struct {
	SQL         string   `json:"sql"`
	Explanation string   `json:"explanation"`
	Parameters  []any    `json:"parameters"`
	EntityTypes []string `json:"entityTypes"`
}

// IsHistoric 是否为会话历史哨兵
func (q GeneratedQuery) IsHistoric() bool {
	return q.SQL == HistoricSentinel
}

// HistoricQuery 返回标准的历史哨兵查询
func HistoricQuery() GeneratedQuery {
	return GeneratedQuery{
		SQL:         HistoricSentinel,
		Explanation: "historic data request",
		Parameters:  []any{},
		EntityTypes: []string{"general"},
	}
}

// QueryResultPayload 执行结果，作为回答合成的结构化上下文
// Note 仅在走了降级路径时设置，永远不会出现在回答文本中
type QueryResultPayload struct {
	Question     string           `json:"question"`
	SQL          string           `json:"sql"`
	Explanation  string           `json:"explanation"`
	EntityTypes  []string         `json:"entityTypes"`
	Results      []map[string]any `json:"results"`
	TotalResults int              `json:"totalResults"`
	Note         string           `json:"note,omitempty"`
}

// =========================================================================
// 组件接口
// =========================================================================

// QueryGenerator 自然语言转SQL
// 对调用方而言从不失败，内部错误一律降级为关键字检索
type QueryGenerator interface {
	Generate(ctx context.Context, question string) GeneratedQuery
}

// QueryExecutor 执行生成的查询，内部处理降级阶梯
// 只有所有阶梯都失败时才返回错误
type QueryExecutor interface {
	Execute(ctx context.Context, query GeneratedQuery, question string) (*QueryResultPayload, error)
}

// MetricsRecorder 流水线指标上报
type MetricsRecorder interface {
	// RecordGeneration source 取值 model/historic/cache/fallback
	RecordGeneration(source string)
	RecordLLMCall(provider string, success bool, duration time.Duration)
	RecordStreamChunk()
}

// NopMetrics 不上报任何指标
type NopMetrics struct{}

func (NopMetrics) RecordGeneration(string) {}

func (NopMetrics) RecordLLMCall(string, bool, time.Duration) {}

func (NopMetrics) RecordStreamChunk() {}

// =========================================================================
// 错误定义
// =========================================================================

// 生成阶段的错误，只在内部记录，不会从 Generate 返回
var (
	ErrEmptyResponse       = errors.New("模型返回内容为空")
	ErrMissingSQL          = errors.New("模型响应缺少字符串类型的sql字段")
	ErrUnparsableResponse  = errors.New("无法从模型响应中解析JSON对象")
	ErrPlaceholderMismatch = errors.New("SQL占位符数量与参数数量不一致")
)

// ErrStreamInterrupted 回答已部分输出后流被中断
var ErrStreamInterrupted = errors.New("回答流在部分输出后中断")
