// LLM客户端降级链测试

package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap/zaptest"
)

// TestNewLLMClient 测试按配置创建客户端
func TestNewLLMClient(t *testing.T) {
	tests := []struct {
		name      string
		config    *LLMRouterConfig
		wantErr   bool
		providers int
	}{
		{
			name: "只有主模型",
			config: &LLMRouterConfig{
				Primary:        &LLMConfig{Provider: ProviderOllama, Model: "llama3", BaseURL: "http://localhost:11434"},
				RequestTimeout: time.Minute,
			},
			providers: 1,
		},
		{
			name: "完整三级链",
			config: &LLMRouterConfig{
				Primary:        &LLMConfig{Provider: ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "sk-test"},
				Fallback:       &LLMConfig{Provider: ProviderAnthropic, Model: "claude-3-5-haiku-latest", APIKey: "sk-ant-test"},
				Local:          &LLMConfig{Provider: ProviderOllama, Model: "llama3"},
				RequestTimeout: time.Minute,
				HTTP:           DefaultHTTPPoolConfig(),
			},
			providers: 3,
		},
		{
			name: "缺少主模型",
			config: &LLMRouterConfig{
				RequestTimeout: time.Minute,
			},
			wantErr: true,
		},
		{
			name: "不支持的提供商",
			config: &LLMRouterConfig{
				Primary:        &LLMConfig{Provider: "mystery", Model: "m"},
				RequestTimeout: time.Minute,
			},
			wantErr: true,
		},
		{
			name: "OpenAI缺少密钥",
			config: &LLMRouterConfig{
				Primary:        &LLMConfig{Provider: ProviderOpenAI, Model: "gpt-4o-mini"},
				RequestTimeout: time.Minute,
			},
			wantErr: true,
		},
		{
			name: "超时必须为正数",
			config: &LLMRouterConfig{
				Primary: &LLMConfig{Provider: ProviderOllama, Model: "llama3"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewLLMClient(tt.config, nil, zaptest.NewLogger(t))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, client.Providers(), tt.providers)
			assert.True(t, strings.HasPrefix(client.Providers()[0], "primary:"))
		})
	}
}

// TestLLMClient_Fallback 测试主模型失败后降级
func TestLLMClient_Fallback(t *testing.T) {
	ctx := context.Background()
	messages := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, "hi")}

	t.Run("主模型失败使用备用模型", func(t *testing.T) {
		primary := new(mockModel)
		primary.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))
		secondary := new(mockModel)
		secondary.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).Return(textResponse("hello"), nil)

		metrics := &recordingMetrics{}
		client := NewLLMClientWithModels(zaptest.NewLogger(t), primary, secondary)
		client.metrics = metrics

		resp, err := client.GenerateContent(ctx, messages)
		require.NoError(t, err)
		assert.Equal(t, "hello", resp.Choices[0].Content)
		assert.Equal(t, []bool{false, true}, metrics.llmCalls)
	})

	t.Run("全部失败", func(t *testing.T) {
		a := new(mockModel)
		a.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("a down"))
		b := new(mockModel)
		b.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("b down"))

		_, err := NewLLMClientWithModels(nil, a, b).GenerateContent(ctx, messages)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a down")
		assert.Contains(t, err.Error(), "b down")
		assert.NotErrorIs(t, err, ErrStreamInterrupted)
	})

	t.Run("已输出内容后不再降级", func(t *testing.T) {
		broken := &scriptedModel{chunks: []string{"Hel", "lo"}, failAt: 1, err: errors.New("connection reset")}
		backup := &scriptedModel{chunks: []string{"should not run"}}

		var got strings.Builder
		_, err := NewLLMClientWithModels(nil, broken, backup).GenerateContent(ctx, messages,
			llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
				got.Write(chunk)
				return nil
			}))
		assert.ErrorIs(t, err, ErrStreamInterrupted)
		assert.Equal(t, "Hel", got.String())
		assert.Equal(t, 0, backup.Calls())
	})

	t.Run("流式开始前失败可以降级", func(t *testing.T) {
		broken := &scriptedModel{chunks: []string{"x"}, failAt: 0, err: errors.New("dial tcp")}
		backup := &scriptedModel{chunks: []string{"O", "K"}}

		var got strings.Builder
		resp, err := NewLLMClientWithModels(nil, broken, backup).GenerateContent(ctx, messages,
			llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
				got.Write(chunk)
				return nil
			}))
		require.NoError(t, err)
		assert.Equal(t, "OK", got.String())
		assert.Equal(t, "OK", resp.Choices[0].Content)
	})

	t.Run("上下文取消后不降级", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		a := new(mockModel)
		a.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).Return(nil, context.Canceled)
		b := new(mockModel)

		_, err := NewLLMClientWithModels(nil, a, b).GenerateContent(cancelled, messages)
		assert.ErrorIs(t, err, context.Canceled)
		b.AssertNotCalled(t, "GenerateContent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("未配置提供商", func(t *testing.T) {
		_, err := NewLLMClientWithModels(nil).GenerateContent(ctx, messages)
		assert.Error(t, err)
	})
}

// TestLLMClient_Call 测试单提示词调用
func TestLLMClient_Call(t *testing.T) {
	model := &scriptedModel{chunks: []string{"pong"}}
	out, err := NewLLMClientWithModels(nil, model).Call(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
}

// TestLLMClient_ValidateConfiguration 测试提供商连通性检查
func TestLLMClient_ValidateConfiguration(t *testing.T) {
	ok := &scriptedModel{chunks: []string{"OK"}}
	empty := &scriptedModel{}

	assert.NoError(t, NewLLMClientWithModels(zaptest.NewLogger(t), ok).ValidateConfiguration(context.Background()))
	assert.Error(t, NewLLMClientWithModels(zaptest.NewLogger(t), ok, empty).ValidateConfiguration(context.Background()))
}

// TestNewEmbedder 测试向量化器创建
func TestNewEmbedder(t *testing.T) {
	httpClient := NewHTTPClient(nil, time.Second)

	_, err := NewEmbedder(&LLMConfig{Provider: ProviderAnthropic, Model: "m", EmbeddingModel: "e"}, httpClient)
	assert.Error(t, err)

	_, err = NewEmbedder(&LLMConfig{Provider: ProviderOpenAI, Model: "m"}, httpClient)
	assert.Error(t, err)

	embedder, err := NewEmbedder(&LLMConfig{Provider: ProviderOllama, Model: "llama3", EmbeddingModel: "nomic-embed-text"}, httpClient)
	require.NoError(t, err)
	assert.NotNil(t, embedder)
}
