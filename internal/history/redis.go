package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultKeyPrefix Redis键前缀
const DefaultKeyPrefix = "askdb:conversation:"

const maxTxRetries = 3

// RedisStore 基于Redis列表的会话历史，每个会话一个列表
// 过期由Redis键TTL负责，等价于对所有会话的惰性清理
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	config Config
	logger *zap.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore 创建Redis存储
func NewRedisStore(client redis.UniversalClient, prefix string, config Config, logger *zap.Logger) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis客户端不能为空")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, prefix: prefix, config: config, logger: logger}, nil
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

// Get 读取会话历史
func (s *RedisStore) Get(ctx context.Context, key string) ([]Turn, error) {
	values, err := s.client.LRange(ctx, s.key(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("读取会话历史失败: %w", err)
	}
	return decodeTurns(values)
}

// AppendQuestion 在一个 MULTI 中完成追加、截断与续期
func (s *RedisStore) AppendQuestion(ctx context.Context, key, question string) ([]Turn, error) {
	payload, err := json.Marshal(Turn{Question: question})
	if err != nil {
		return nil, fmt.Errorf("序列化会话轮次失败: %w", err)
	}

	redisKey := s.key(key)
	var lrange *redis.StringSliceCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, redisKey, payload)
		pipe.LTrim(ctx, redisKey, int64(-s.config.MaxTurns), -1)
		pipe.Expire(ctx, redisKey, s.config.TTL)
		lrange = pipe.LRange(ctx, redisKey, 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("追加会话问题失败: %w", err)
	}
	return decodeTurns(lrange.Val())
}

// RecordAnswer 使用 WATCH 乐观事务替换占位轮次，冲突时重试
func (s *RedisStore) RecordAnswer(ctx context.Context, key, question, answer string) error {
	redisKey := s.key(key)

	txf := func(tx *redis.Tx) error {
		values, err := tx.LRange(ctx, redisKey, 0, -1).Result()
		if err != nil {
			return err
		}
		turns, err := decodeTurns(values)
		if err != nil {
			return err
		}

		idx := replacePlaceholder(turns, question, answer)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if idx >= 0 {
				data, err := json.Marshal(turns[idx])
				if err != nil {
					return err
				}
				pipe.LSet(ctx, redisKey, int64(idx), data)
			} else {
				data, err := json.Marshal(Turn{Question: question, Answer: answer})
				if err != nil {
					return err
				}
				pipe.RPush(ctx, redisKey, data)
				pipe.LTrim(ctx, redisKey, int64(-s.config.MaxTurns), -1)
			}
			pipe.Expire(ctx, redisKey, s.config.TTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, redisKey)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("记录会话回答失败: %w", err)
		}
		s.logger.Debug("会话历史并发冲突，重试", zap.String("conversation_key", key), zap.Int("attempt", i+1))
	}
	return fmt.Errorf("记录会话回答失败: 并发冲突重试%d次后仍未成功", maxTxRetries)
}

// Len 扫描前缀下的会话数
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("统计会话数失败: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// Ping 检查Redis连接
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodeTurns(values []string) ([]Turn, error) {
	turns := make([]Turn, 0, len(values))
	for _, v := range values {
		var t Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, fmt.Errorf("解析会话轮次失败: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}
