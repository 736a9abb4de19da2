package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"askdb-go/internal/catalog"
	"askdb-go/internal/sqltext"
)

// 生成来源，用于指标标签
const (
	SourceModel    = "model"
	SourceHistoric = "historic"
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

// GeneratorConfig 生成器配置
type GeneratorConfig struct {
	Options GenerationOptions
	// Timeout 单次模型调用超时，0 表示只受调用方上下文约束
	Timeout time.Duration
	// Cache 可选，缓存模型生成的查询
	Cache   *QueryCache
	Metrics MetricsRecorder
}

// Generator 自然语言转SQL生成器
// 模型不可用或输出无法解析时降级到关键字检索，调用方永远拿到一个可用的查询
type Generator struct {
	llm       llms.Model
	schema    *catalog.Schema
	templates *PromptTemplateManager
	sanitizer *Sanitizer
	fallback  *FallbackGenerator
	config    GeneratorConfig
	logger    *zap.Logger
}

var _ QueryGenerator = (*Generator)(nil)

// NewGenerator 创建生成器，llm 为 nil 时始终使用关键字检索
func NewGenerator(llm llms.Model, schema *catalog.Schema, config *GeneratorConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schema == nil {
		schema = catalog.Default()
	}
	cfg := GeneratorConfig{Options: DefaultSQLGenerationOptions()}
	if config != nil {
		cfg = *config
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	return &Generator{
		llm:       llm,
		schema:    schema,
		templates: NewPromptTemplateManager(),
		sanitizer: NewSanitizer(schema, logger),
		fallback:  NewFallbackGenerator(schema),
		config:    cfg,
		logger:    logger,
	}
}

// Sanitizer 返回生成器使用的SQL修复器
func (g *Generator) Sanitizer() *Sanitizer {
	return g.sanitizer
}

// Fallback 返回关键字降级生成器
func (g *Generator) Fallback() *FallbackGenerator {
	return g.fallback
}

// Generate 生成查询，内部错误只记录日志
func (g *Generator) Generate(ctx context.Context, question string) GeneratedQuery {
	if g.config.Cache != nil {
		if cached, ok := g.config.Cache.Get(question); ok {
			g.config.Metrics.RecordGeneration(SourceCache)
			return cached
		}
	}

	query, err := g.generateFromModel(ctx, question)
	if err != nil {
		g.logger.Warn("SQL生成失败，降级为关键字检索",
			zap.String("question", question),
			zap.Error(err))
		g.config.Metrics.RecordGeneration(SourceFallback)
		fb := g.fallback.Generate(question)
		fb.SQL = g.sanitizer.Sanitize(fb.SQL)
		return fb
	}

	if query.IsHistoric() {
		g.config.Metrics.RecordGeneration(SourceHistoric)
	} else {
		g.config.Metrics.RecordGeneration(SourceModel)
	}
	if g.config.Cache != nil {
		g.config.Cache.Set(question, query)
	}
	return query
}

// generateFromModel 调用模型并解析输出，任一步骤失败都返回错误
func (g *Generator) generateFromModel(ctx context.Context, question string) (GeneratedQuery, error) {
	if g.llm == nil {
		return GeneratedQuery{}, errors.New("未配置LLM")
	}

	prompt, err := g.templates.BuildSQLPrompt(g.schema, question)
	if err != nil {
		return GeneratedQuery{}, err
	}

	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	opts := []llms.CallOption{llms.WithTemperature(g.config.Options.Temperature)}
	if g.config.Options.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.config.Options.MaxTokens))
	}
	resp, err := g.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, SQLGeneratorSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, opts...)
	if err != nil {
		return GeneratedQuery{}, fmt.Errorf("LLM调用失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return GeneratedQuery{}, ErrEmptyResponse
	}

	query, err := ParseModelResponse(resp.Choices[0].Content, question)
	if err != nil {
		return GeneratedQuery{}, err
	}
	if !query.IsHistoric() {
		query.SQL = g.sanitizer.Sanitize(query.SQL)
	}
	return query, nil
}

// ParseModelResponse 解析模型输出
// 只要求存在字符串类型的 sql 字段，其余字段缺失时使用默认值
func ParseModelResponse(content, question string) (GeneratedQuery, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return GeneratedQuery{}, ErrEmptyResponse
	}
	if trimmed == HistoricSentinel {
		return HistoricQuery(), nil
	}

	body := stripCodeFence(trimmed)
	if body == HistoricSentinel {
		return HistoricQuery(), nil
	}

	raw, err := decodeObject(body)
	if err != nil {
		candidate, ok := firstJSONObject(body)
		if !ok {
			return GeneratedQuery{}, fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
		}
		if raw, err = decodeObject(candidate); err != nil {
			return GeneratedQuery{}, fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
		}
	}

	sql, ok := raw["sql"].(string)
	if !ok || strings.TrimSpace(sql) == "" {
		return GeneratedQuery{}, ErrMissingSQL
	}
	if strings.TrimSpace(sql) == HistoricSentinel {
		return HistoricQuery(), nil
	}

	query := GeneratedQuery{
		SQL:         sql,
		Explanation: "Search for: " + question,
		Parameters:  []any{},
		EntityTypes: []string{"general"},
	}
	if explanation, ok := raw["explanation"].(string); ok && explanation != "" {
		query.Explanation = explanation
	}

	if rawParams, exists := raw["parameters"]; exists && rawParams != nil {
		list, ok := rawParams.([]any)
		if !ok {
			return GeneratedQuery{}, fmt.Errorf("%w: parameters 不是数组", ErrUnparsableResponse)
		}
		for i, p := range list {
			v, err := scalarParam(p)
			if err != nil {
				return GeneratedQuery{}, fmt.Errorf("%w: 第%d个参数%v", ErrUnparsableResponse, i+1, err)
			}
			query.Parameters = append(query.Parameters, v)
		}
	}

	if list, ok := raw["entityTypes"].([]any); ok {
		types := make([]string, 0, len(list))
		for _, t := range list {
			if s, ok := t.(string); ok && strings.TrimSpace(s) != "" {
				types = append(types, strings.ToLower(strings.TrimSpace(s)))
			}
		}
		if len(types) > 0 {
			query.EntityTypes = types
		}
	}

	if n := sqltext.MaxPlaceholder(sql); n != len(query.Parameters) {
		return GeneratedQuery{}, fmt.Errorf("%w: 占位符 %d 个, 参数 %d 个", ErrPlaceholderMismatch, n, len(query.Parameters))
	}
	return query, nil
}

// scalarParam 将JSON值转换为可绑定的标量
func scalarParam(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool:
		return val, nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("数值无效: %s", val)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("不是标量: %T", v)
	}
}

// stripCodeFence 去掉 ```json ... ``` 包裹
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{}") {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decodeObject 严格解析单个JSON对象，不允许尾随内容
func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("不是JSON对象")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("JSON对象之后存在多余内容")
	}
	return obj, nil
}

// firstJSONObject 提取第一个括号配平的JSON对象子串
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
