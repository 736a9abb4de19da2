package ai

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/tmc/langchaingo/llms"
)

// mockModel 基于 testify/mock 的模型
type mockModel struct {
	mock.Mock
}

func (m *mockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	args := m.Called(ctx, messages, options)
	resp, _ := args.Get(0).(*llms.ContentResponse)
	return resp, args.Error(1)
}

func (m *mockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}
}

// scriptedModel 按脚本逐块回调 StreamingFunc
// err 不为空时在输出第 failAt 个块之前返回该错误
type scriptedModel struct {
	mu       sync.Mutex
	chunks   []string
	failAt   int
	err      error
	calls    int
	messages []llms.MessageContent
	options  llms.CallOptions
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	m.calls++
	m.messages = messages
	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}
	m.options = opts
	m.mu.Unlock()

	var full strings.Builder
	for i, chunk := range m.chunks {
		if m.err != nil && i == m.failAt {
			return nil, m.err
		}
		if opts.StreamingFunc != nil {
			if err := opts.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
		}
		full.WriteString(chunk)
	}
	if m.err != nil && m.failAt >= len(m.chunks) {
		return nil, m.err
	}
	return textResponse(full.String()), nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *scriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// messageText 拼接消息中的文本部分
func messageText(msg llms.MessageContent) string {
	var b strings.Builder
	for _, part := range msg.Parts {
		if text, ok := part.(llms.TextContent); ok {
			b.WriteString(text.Text)
		}
	}
	return b.String()
}

// recordingMetrics 记录指标调用
type recordingMetrics struct {
	mu       sync.Mutex
	sources  []string
	llmCalls []bool
	chunks   int
}

func (r *recordingMetrics) RecordGeneration(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, source)
}

func (r *recordingMetrics) RecordLLMCall(_ string, success bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmCalls = append(r.llmCalls, success)
}

func (r *recordingMetrics) RecordStreamChunk() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks++
}
