package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"askdb-go/internal/history"
)

// 无数据时的固定回复
const (
	noDataMessageEN = "I found no relevant data for this question."
	noDataMessageES = "No encontré datos relevantes para esta pregunta."
)

// ComposerConfig 回答合成配置
type ComposerConfig struct {
	Options GenerationOptions
	Metrics MetricsRecorder
}

// Composer 回答合成器
// 串联 生成 -> 执行 -> 流式回答，并把完成的问答写回会话历史
type Composer struct {
	llm       llms.Model
	generator QueryGenerator
	executor  QueryExecutor
	history   history.Store
	templates *PromptTemplateManager
	config    ComposerConfig
	logger    *zap.Logger
}

// NewComposer 创建回答合成器
func NewComposer(llm llms.Model, generator QueryGenerator, executor QueryExecutor, store history.Store, config *ComposerConfig, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := ComposerConfig{Options: DefaultAnswerOptions()}
	if config != nil {
		cfg = *config
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	return &Composer{
		llm:       llm,
		generator: generator,
		executor:  executor,
		history:   store,
		templates: NewPromptTemplateManager(),
		config:    cfg,
		logger:    logger,
	}
}

// Answer 回答一个问题并把回答流式写入 w
// 返回错误时如果尚未写出任何内容，调用方可以改为返回错误响应；
// 已部分写出时返回 ErrStreamInterrupted，调用方只能结束响应
func (c *Composer) Answer(ctx context.Context, question, key string, w StreamWriter) (string, error) {
	turns, err := c.history.AppendQuestion(ctx, key, question)
	if err != nil {
		return "", fmt.Errorf("记录问题失败: %w", err)
	}
	prior := turns
	if len(prior) > 0 {
		prior = prior[:len(prior)-1]
	}

	query := c.generator.Generate(ctx, question)

	var messages []llms.MessageContent
	if query.IsHistoric() {
		prompt, err := c.templates.BuildHistoricPrompt(Transcript(prior), question)
		if err != nil {
			return "", err
		}
		messages = []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, HistoricSystemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, prompt),
		}
	} else {
		payload, err := c.executor.Execute(ctx, query, question)
		if err != nil {
			return "", err
		}
		if payload.TotalResults == 0 {
			answer := NoDataMessage(question)
			if err := c.emitWhole(w, answer); err != nil {
				return "", err
			}
			c.record(ctx, key, question, answer)
			return answer, nil
		}

		contextMessage, err := ContextMessage(payload, question)
		if err != nil {
			return "", err
		}
		messages = []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, AnswerSystemPrompt)}
		if transcript := Transcript(prior); transcript != "" {
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, "Conversation history:\n"+transcript))
		}
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, contextMessage))
	}

	answer, err := c.stream(ctx, messages, w)
	if err != nil {
		c.logger.Error("回答合成失败",
			zap.String("question", question),
			zap.String("conversation_key", key),
			zap.Error(err))
		return answer, err
	}
	c.record(ctx, key, question, answer)
	return answer, nil
}

// AnswerWithContext 使用给定的系统提示词与上下文回答，不经过SQL生成也不写会话历史
func (c *Composer) AnswerWithContext(ctx context.Context, question, systemPrompt string, contextData any, w StreamWriter) (string, error) {
	data, err := json.Marshal(contextData)
	if err != nil {
		return "", fmt.Errorf("序列化上下文失败: %w", err)
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf("Context sections: %s\n\nQuestion: %s", data, question)),
	}
	return c.stream(ctx, messages, w)
}

// stream 调用模型并逐块转发
// 写入失败会让回调返回错误，从而终止上游流
func (c *Composer) stream(ctx context.Context, messages []llms.MessageContent, w StreamWriter) (string, error) {
	if c.llm == nil {
		return "", errors.New("未配置LLM")
	}

	var (
		sent bool
		buf  strings.Builder
	)
	opts := []llms.CallOption{
		llms.WithTemperature(c.config.Options.Temperature),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			if err := w.WriteChunk(string(chunk)); err != nil {
				return err
			}
			sent = true
			buf.Write(chunk)
			c.config.Metrics.RecordStreamChunk()
			return nil
		}),
	}
	if c.config.Options.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.config.Options.MaxTokens))
	}

	resp, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		if !sent {
			return "", fmt.Errorf("回答生成失败: %w", err)
		}
		if errors.Is(err, ErrStreamInterrupted) {
			return buf.String(), err
		}
		return buf.String(), fmt.Errorf("%w: %w", ErrStreamInterrupted, err)
	}

	if !sent {
		// 提供商未走流式回调时整段输出
		if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
			return "", ErrEmptyResponse
		}
		if err := c.emitWhole(w, resp.Choices[0].Content); err != nil {
			return "", err
		}
		return resp.Choices[0].Content, nil
	}
	if err := w.Flush(); err != nil {
		return buf.String(), fmt.Errorf("%w: %w", ErrStreamInterrupted, err)
	}
	return buf.String(), nil
}

func (c *Composer) emitWhole(w StreamWriter, text string) error {
	if err := w.WriteChunk(text); err != nil {
		return fmt.Errorf("写出回答失败: %w", err)
	}
	c.config.Metrics.RecordStreamChunk()
	return w.Flush()
}

// record 写回失败不影响已经发出的回答
func (c *Composer) record(ctx context.Context, key, question, answer string) {
	if err := c.history.RecordAnswer(ctx, key, question, answer); err != nil {
		c.logger.Warn("记录回答失败",
			zap.String("conversation_key", key),
			zap.Error(err))
	}
}

// Transcript 把已回答的轮次格式化为 "Turn N - Question: ... | Answer: ..."
func Transcript(turns []history.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		if !t.Answered() {
			continue
		}
		lines = append(lines, fmt.Sprintf("Turn %d - Question: %s | Answer: %s", len(lines)+1, t.Question, t.Answer))
	}
	return strings.Join(lines, "\n")
}

// ContextMessage 把执行结果嵌入用户消息，note 不会进入模型上下文
func ContextMessage(payload *QueryResultPayload, question string) (string, error) {
	clean := *payload
	clean.Note = ""
	data, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("序列化查询结果失败: %w", err)
	}
	return fmt.Sprintf("Context sections: %s\n\nQuestion: %s", data, question), nil
}

var spanishMarkers = map[string]bool{
	"que": true, "qué": true, "cuantos": true, "cuántos": true, "cuantas": true, "cuántas": true,
	"cual": true, "cuál": true, "cuales": true, "cuáles": true, "donde": true, "dónde": true,
	"quien": true, "quién": true, "los": true, "las": true, "del": true, "para": true,
	"por": true, "hay": true, "mis": true, "muestra": true, "muéstrame": true, "dame": true,
	"tareas": true, "proyectos": true, "usuarios": true, "pregunta": true, "como": true, "cómo": true,
}

// IsSpanish 粗略判断问题是否为西班牙语
func IsSpanish(question string) bool {
	if strings.ContainsAny(question, "¿¡ñÑ") {
		return true
	}
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	hits := 0
	for _, w := range words {
		if spanishMarkers[w] {
			hits++
		}
	}
	return hits >= 2 || (hits == 1 && len(words) <= 3)
}

// NoDataMessage 结果为空时的固定回复，语言跟随问题
func NoDataMessage(question string) string {
	if IsSpanish(question) {
		return noDataMessageES
	}
	return noDataMessageEN
}
