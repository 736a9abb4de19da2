package config

import (
	"fmt"
	"time"

	"askdb-go/internal/ai"
)

// AIConfig 模型提供商配置
// SQL生成与回答合成使用同一提供商链上的不同模型
type AIConfig struct {
	Provider        string `env:"LLM_PROVIDER" envDefault:"openai" json:"provider"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY" json:"-"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY" json:"-"`
	BaseURL         string `env:"LLM_BASE_URL" json:"base_url,omitempty"`

	SQLModel          string  `env:"SQL_MODEL" envDefault:"gpt-4o-mini" json:"sql_model"`
	SQLTemperature    float64 `env:"SQL_TEMPERATURE" envDefault:"0.45" json:"sql_temperature"`
	SQLMaxTokens      int     `env:"SQL_MAX_TOKENS" envDefault:"1500" json:"sql_max_tokens"`
	AnswerModel       string  `env:"ANSWER_MODEL" envDefault:"gpt-4o" json:"answer_model"`
	AnswerTemperature float64 `env:"ANSWER_TEMPERATURE" envDefault:"0.7" json:"answer_temperature"`
	AnswerMaxTokens   int     `env:"ANSWER_MAX_TOKENS" envDefault:"2048" json:"answer_max_tokens"`

	FallbackProvider string `env:"FALLBACK_PROVIDER" json:"fallback_provider,omitempty"`
	FallbackModel    string `env:"FALLBACK_MODEL" json:"fallback_model,omitempty"`
	OllamaModel      string `env:"OLLAMA_MODEL" json:"ollama_model,omitempty"`
	OllamaURL        string `env:"OLLAMA_URL" envDefault:"http://localhost:11434" json:"ollama_url"`

	EmbeddingModel string        `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small" json:"embedding_model"`
	Timeout        time.Duration `env:"LLM_TIMEOUT" envDefault:"60s" json:"timeout"`
	QueryCacheTTL  time.Duration `env:"QUERY_CACHE_TTL" envDefault:"5m" json:"query_cache_ttl"`
}

// Validate 校验SQL与回答两条路由
func (c *AIConfig) Validate() error {
	if c.SQLTemperature < 0 || c.SQLTemperature > 2 || c.AnswerTemperature < 0 || c.AnswerTemperature > 2 {
		return fmt.Errorf("temperature 必须在0-2之间")
	}
	if c.SQLMaxTokens <= 0 || c.AnswerMaxTokens <= 0 {
		return fmt.Errorf("max_tokens 必须为正数")
	}
	if c.QueryCacheTTL < 0 {
		return fmt.Errorf("QUERY_CACHE_TTL 不能为负数")
	}
	if err := c.RouterConfig(c.SQLModel).Validate(); err != nil {
		return fmt.Errorf("SQL模型: %w", err)
	}
	if err := c.RouterConfig(c.AnswerModel).Validate(); err != nil {
		return fmt.Errorf("回答模型: %w", err)
	}
	return nil
}

// RouterConfig 以 model 作为主模型构建提供商链
func (c *AIConfig) RouterConfig(model string) *ai.LLMRouterConfig {
	router := &ai.LLMRouterConfig{
		Primary:        c.provider(ai.LLMProvider(c.Provider), model),
		RequestTimeout: c.Timeout,
		HTTP:           ai.DefaultHTTPPoolConfig(),
	}
	if c.FallbackProvider != "" && c.FallbackModel != "" {
		router.Fallback = c.provider(ai.LLMProvider(c.FallbackProvider), c.FallbackModel)
	}
	if c.OllamaModel != "" && c.Provider != string(ai.ProviderOllama) {
		router.Local = &ai.LLMConfig{
			Provider: ai.ProviderOllama,
			Model:    c.OllamaModel,
			BaseURL:  c.OllamaURL,
		}
	}
	return router
}

// EmbeddingConfig 向量模型配置，当前提供商不支持向量化时返回 nil
func (c *AIConfig) EmbeddingConfig() *ai.LLMConfig {
	if c.EmbeddingModel == "" {
		return nil
	}
	provider := ai.LLMProvider(c.Provider)
	if provider == ai.ProviderAnthropic {
		if c.OpenAIAPIKey == "" {
			return nil
		}
		provider = ai.ProviderOpenAI
	}
	cfg := c.provider(provider, "")
	cfg.EmbeddingModel = c.EmbeddingModel
	return cfg
}

// SQLOptions SQL生成的调用参数
func (c *AIConfig) SQLOptions() ai.GenerationOptions {
	return ai.GenerationOptions{Temperature: c.SQLTemperature, MaxTokens: c.SQLMaxTokens}
}

// AnswerOptions 回答合成的调用参数
func (c *AIConfig) AnswerOptions() ai.GenerationOptions {
	return ai.GenerationOptions{Temperature: c.AnswerTemperature, MaxTokens: c.AnswerMaxTokens}
}

func (c *AIConfig) provider(provider ai.LLMProvider, model string) *ai.LLMConfig {
	cfg := &ai.LLMConfig{Provider: provider, Model: model}
	switch provider {
	case ai.ProviderOpenAI:
		cfg.APIKey = c.OpenAIAPIKey
	case ai.ProviderAnthropic:
		cfg.APIKey = c.AnthropicAPIKey
	case ai.ProviderOllama:
		cfg.BaseURL = c.OllamaURL
	}
	// LLM_BASE_URL 只作用于主提供商
	if provider == ai.LLMProvider(c.Provider) && c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	return cfg
}
