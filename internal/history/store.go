// Package history 会话历史存储
// 按会话标识保存有界的问答轮次，超过TTL未更新的会话被惰性清理
package history

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AnonymousKey 无法识别调用方时使用的会话标识
const AnonymousKey = "anonymous"

// Turn 一轮问答，回答在流式输出完成前为空
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Answered 是否已有回答
func (t Turn) Answered() bool {
	return t.Answer != ""
}

// Store 会话历史存储
// 同一会话的并发写入采用后写者胜出语义，但追加与截断是原子的
type Store interface {
	// Get 返回会话历史，不存在时返回空切片
	Get(ctx context.Context, key string) ([]Turn, error)
	// AppendQuestion 追加一个回答为空的占位轮次，并从头部截断到最大轮数
	AppendQuestion(ctx context.Context, key, question string) ([]Turn, error)
	// RecordAnswer 用完整问答替换最近一个匹配的占位轮次
	RecordAnswer(ctx context.Context, key, question, answer string) error
	// Len 当前存活的会话数
	Len(ctx context.Context) (int, error)
}

// Config 存储配置
type Config struct {
	MaxTurns int
	TTL      time.Duration
	// Now 可注入的时钟，为空时使用 time.Now
	Now func() time.Time
}

// DefaultConfig 默认保留100轮、1小时过期
func DefaultConfig() Config {
	return Config{MaxTurns: 100, TTL: time.Hour}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.MaxTurns <= 0 {
		return fmt.Errorf("max_turns 必须为正数, 当前: %d", c.MaxTurns)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("ttl 必须为正数, 当前: %v", c.TTL)
	}
	return nil
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// ResolveKey 依次使用显式标识、传输层头部、调用方网络地址，都为空时使用匿名标识
func ResolveKey(explicit, header, remote string) string {
	for _, candidate := range []string{explicit, header, remote} {
		if key := strings.TrimSpace(candidate); key != "" {
			return key
		}
	}
	return AnonymousKey
}

// replacePlaceholder 在 turns 中找到最近一个问题匹配且回答为空的轮次并填入回答
// 返回被替换的下标，没有匹配时返回 -1
func replacePlaceholder(turns []Turn, question, answer string) int {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Question == question && !turns[i].Answered() {
			turns[i].Answer = answer
			return i
		}
	}
	return -1
}

// truncate 从头部截断，保留最近的 max 轮
func truncate(turns []Turn, max int) []Turn {
	if len(turns) <= max {
		return turns
	}
	kept := make([]Turn, max)
	copy(kept, turns[len(turns)-max:])
	return kept
}
