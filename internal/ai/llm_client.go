// LLM客户端工厂和路由管理
// 支持OpenAI、Anthropic、Ollama，按 主模型 -> 备用模型 -> 本地模型 顺序自动降级

package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

type namedModel struct {
	name  string
	model llms.Model
}

// LLMClient 带自动降级的LLM客户端，本身实现 llms.Model
type LLMClient struct {
	chain      []namedModel
	config     *LLMRouterConfig
	httpClient *http.Client
	metrics    MetricsRecorder
	logger     *zap.Logger
}

var _ llms.Model = (*LLMClient)(nil)

// NewLLMClient 根据路由配置创建LLM客户端
func NewLLMClient(config *LLMRouterConfig, metrics MetricsRecorder, logger *zap.Logger) (*LLMClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := &LLMClient{
		config:     config,
		httpClient: NewHTTPClient(config.HTTP, config.RequestTimeout),
		metrics:    metrics,
		logger:     logger,
	}

	primary, err := createLLMProvider(config.Primary, client.httpClient)
	if err != nil {
		return nil, fmt.Errorf("创建主LLM提供商 %s 失败: %w", config.Primary.Provider, err)
	}
	client.chain = append(client.chain, namedModel{name: providerLabel("primary", config.Primary), model: primary})

	if config.Fallback != nil {
		fallback, err := createLLMProvider(config.Fallback, client.httpClient)
		if err != nil {
			return nil, fmt.Errorf("创建备用LLM提供商 %s 失败: %w", config.Fallback.Provider, err)
		}
		client.chain = append(client.chain, namedModel{name: providerLabel("fallback", config.Fallback), model: fallback})
	}

	// 本地模型初始化失败不影响启动
	if config.Local != nil {
		local, err := createLLMProvider(config.Local, client.httpClient)
		if err != nil {
			logger.Warn("创建本地LLM提供商失败",
				zap.String("provider", string(config.Local.Provider)),
				zap.Error(err))
		} else {
			client.chain = append(client.chain, namedModel{name: providerLabel("local", config.Local), model: local})
		}
	}

	return client, nil
}

// NewLLMClientWithModels 使用现成的模型实例构建客户端，按传入顺序降级
func NewLLMClientWithModels(logger *zap.Logger, models ...llms.Model) *LLMClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &LLMClient{metrics: NopMetrics{}, logger: logger}
	for i, m := range models {
		client.chain = append(client.chain, namedModel{name: fmt.Sprintf("model-%d", i), model: m})
	}
	return client
}

func providerLabel(tier string, c *LLMConfig) string {
	return fmt.Sprintf("%s:%s/%s", tier, c.Provider, c.Model)
}

// createLLMProvider 创建特定提供商的LLM实例
func createLLMProvider(config *LLMConfig, httpClient *http.Client) (llms.Model, error) {
	switch config.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(config.APIKey),
			openai.WithModel(config.Model),
			openai.WithHTTPClient(httpClient),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		return openai.New(opts...)
	case ProviderAnthropic:
		return anthropic.New(
			anthropic.WithToken(config.APIKey),
			anthropic.WithModel(config.Model),
			anthropic.WithHTTPClient(httpClient),
		)
	case ProviderOllama:
		opts := []ollama.Option{
			ollama.WithModel(config.Model),
			ollama.WithHTTPClient(httpClient),
		}
		if config.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(config.BaseURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("不支持的LLM提供商: %s", config.Provider)
	}
}

// GenerateContent 依次尝试链上的模型
// 流式调用一旦向调用方输出过内容就不再降级，避免同一回答被输出两次
func (c *LLMClient) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if len(c.chain) == 0 {
		return nil, errors.New("未配置任何LLM提供商")
	}

	var callOpts llms.CallOptions
	for _, opt := range options {
		opt(&callOpts)
	}

	var streamed atomic.Bool
	if callOpts.StreamingFunc != nil {
		downstream := callOpts.StreamingFunc
		options = append(options, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) > 0 {
				streamed.Store(true)
			}
			return downstream(ctx, chunk)
		}))
	}

	var errs []error
	for i, candidate := range c.chain {
		start := time.Now()
		resp, err := candidate.model.GenerateContent(ctx, messages, options...)
		c.metrics.RecordLLMCall(candidate.name, err == nil, time.Since(start))
		if err == nil {
			return resp, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", candidate.name, err))

		if streamed.Load() || ctx.Err() != nil {
			break
		}
		if i+1 < len(c.chain) {
			c.logger.Warn("LLM调用失败，尝试下一个提供商",
				zap.String("provider", candidate.name),
				zap.String("next", c.chain[i+1].name),
				zap.Error(err))
		}
	}

	if streamed.Load() {
		return nil, fmt.Errorf("%w: %w", ErrStreamInterrupted, errors.Join(errs...))
	}
	return nil, fmt.Errorf("所有LLM提供商均调用失败: %w", errors.Join(errs...))
}

// Call 单提示词调用
func (c *LLMClient) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, c, prompt, options...)
}

// ValidateConfiguration 向链上每个模型发送测试消息
func (c *LLMClient) ValidateConfiguration(ctx context.Context) error {
	for _, candidate := range c.chain {
		if err := c.testLLMProvider(ctx, candidate); err != nil {
			return err
		}
	}
	return nil
}

// testLLMProvider 测试特定LLM提供商
func (c *LLMClient) testLLMProvider(ctx context.Context, candidate namedModel) error {
	testMessages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, "Hello, this is a test message. Please respond with 'OK'."),
	}

	response, err := candidate.model.GenerateContent(ctx, testMessages, llms.WithMaxTokens(16))
	if err != nil {
		return fmt.Errorf("%s 提供商测试失败: %w", candidate.name, err)
	}
	if len(response.Choices) == 0 || response.Choices[0].Content == "" {
		return fmt.Errorf("%s 提供商测试失败: 响应为空", candidate.name)
	}

	preview := response.Choices[0].Content
	if len(preview) > 50 {
		preview = preview[:50]
	}
	c.logger.Info("LLM提供商测试通过",
		zap.String("provider", candidate.name),
		zap.String("response", preview))
	return nil
}

// Providers 按降级顺序返回提供商标签
func (c *LLMClient) Providers() []string {
	names := make([]string, len(c.chain))
	for i, m := range c.chain {
		names[i] = m.name
	}
	return names
}

// NewEmbedder 创建文本向量化器，Anthropic 不提供向量接口
func NewEmbedder(config *LLMConfig, httpClient *http.Client) (embeddings.Embedder, error) {
	if config == nil || config.EmbeddingModel == "" {
		return nil, errors.New("未配置向量模型")
	}

	var client embeddings.EmbedderClient
	var err error
	switch config.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(config.APIKey),
			openai.WithEmbeddingModel(config.EmbeddingModel),
			openai.WithHTTPClient(httpClient),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		client, err = openai.New(opts...)
	case ProviderOllama:
		opts := []ollama.Option{
			ollama.WithModel(config.EmbeddingModel),
			ollama.WithHTTPClient(httpClient),
		}
		if config.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(config.BaseURL))
		}
		client, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("提供商 %s 不支持向量化", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("创建向量化客户端失败: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("创建向量化器失败: %w", err)
	}
	return embedder, nil
}
