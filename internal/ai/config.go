// LLM提供商与调用参数配置

package ai

import (
	"fmt"
	"net/http"
	"time"
)

// LLMProvider 定义LLM提供商类型
type LLMProvider string

const (
	ProviderOpenAI    LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderOllama    LLMProvider = "ollama"
)

// Valid 是否为受支持的提供商
func (p LLMProvider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama:
		return true
	}
	return false
}

// LLMConfig 单个LLM提供商配置
type LLMConfig struct {
	Provider       LLMProvider `json:"provider"`
	APIKey         string      `json:"-"`
	Model          string      `json:"model"`
	BaseURL        string      `json:"base_url,omitempty"`
	EmbeddingModel string      `json:"embedding_model,omitempty"`
}

// Validate 校验单个提供商配置
func (c *LLMConfig) Validate() error {
	if !c.Provider.Valid() {
		return fmt.Errorf("不支持的LLM提供商: %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("%s 未配置模型名称", c.Provider)
	}
	if c.Provider != ProviderOllama && c.APIKey == "" {
		return fmt.Errorf("%s 需要API密钥", c.Provider)
	}
	return nil
}

// LLMRouterConfig 主模型 -> 备用模型 -> 本地模型 的路由配置
// Fallback 与 Local 均为可选
type LLMRouterConfig struct {
	Primary  *LLMConfig `json:"primary"`
	Fallback *LLMConfig `json:"fallback,omitempty"`
	Local    *LLMConfig `json:"local,omitempty"`

	RequestTimeout time.Duration   `json:"request_timeout"`
	HTTP           *HTTPPoolConfig `json:"http"`
}

// Validate 校验路由配置
func (c *LLMRouterConfig) Validate() error {
	if c.Primary == nil {
		return fmt.Errorf("必须配置主LLM提供商")
	}
	if err := c.Primary.Validate(); err != nil {
		return fmt.Errorf("主LLM配置无效: %w", err)
	}
	if c.Fallback != nil {
		if err := c.Fallback.Validate(); err != nil {
			return fmt.Errorf("备用LLM配置无效: %w", err)
		}
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout 必须为正数, 当前: %v", c.RequestTimeout)
	}
	return nil
}

// HTTPPoolConfig LLM调用使用的HTTP连接池配置
type HTTPPoolConfig struct {
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`
}

// DefaultHTTPPoolConfig 默认连接池配置
func DefaultHTTPPoolConfig() *HTTPPoolConfig {
	return &HTTPPoolConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewHTTPClient 创建带连接池的HTTP客户端
// 流式回答可能持续较久，超时取 timeout 而非固定值
func NewHTTPClient(pool *HTTPPoolConfig, timeout time.Duration) *http.Client {
	if pool == nil {
		pool = DefaultHTTPPoolConfig()
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxIdleConnsPerHost,
		IdleConnTimeout:     pool.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// GenerationOptions 单次调用参数
type GenerationOptions struct {
	Temperature float64
	MaxTokens   int
}

// DefaultSQLGenerationOptions SQL生成使用较低温度，偏向确定性输出
func DefaultSQLGenerationOptions() GenerationOptions {
	return GenerationOptions{Temperature: 0.45, MaxTokens: 1500}
}

// DefaultAnswerOptions 回答合成参数
func DefaultAnswerOptions() GenerationOptions {
	return GenerationOptions{Temperature: 0.7, MaxTokens: 2048}
}
