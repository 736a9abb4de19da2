package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type record struct {
	turns     []Turn
	updatedAt time.Time
}

// MemoryStore 进程内会话历史
// 每次访问都会清理所有过期会话，不依赖后台定时器
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record
	config  Config
	logger  *zap.Logger
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储
func NewMemoryStore(config Config, logger *zap.Logger) (*MemoryStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		records: make(map[string]*record),
		config:  config,
		logger:  logger,
	}, nil
}

// Get 返回会话历史副本
func (s *MemoryStore) Get(_ context.Context, key string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	rec, ok := s.records[key]
	if !ok {
		return []Turn{}, nil
	}
	return cloneTurns(rec.turns), nil
}

// AppendQuestion 追加占位轮次
func (s *MemoryStore) AppendQuestion(_ context.Context, key, question string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	rec := s.recordLocked(key)
	rec.turns = truncate(append(rec.turns, Turn{Question: question}), s.config.MaxTurns)
	rec.updatedAt = s.config.now()
	return cloneTurns(rec.turns), nil
}

// RecordAnswer 填入回答；占位轮次已被截断或过期时追加完整轮次
func (s *MemoryStore) RecordAnswer(_ context.Context, key, question, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	rec := s.recordLocked(key)
	if replacePlaceholder(rec.turns, question, answer) < 0 {
		rec.turns = truncate(append(rec.turns, Turn{Question: question, Answer: answer}), s.config.MaxTurns)
	}
	rec.updatedAt = s.config.now()
	return nil
}

// Len 存活会话数
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.records), nil
}

func (s *MemoryStore) recordLocked(key string) *record {
	rec, ok := s.records[key]
	if !ok {
		rec = &record{}
		s.records[key] = rec
	}
	return rec
}

// sweepLocked 清理所有超过TTL未更新的会话
func (s *MemoryStore) sweepLocked() {
	cutoff := s.config.now().Add(-s.config.TTL)
	for key, rec := range s.records {
		if rec.updatedAt.Before(cutoff) {
			delete(s.records, key)
			s.logger.Debug("会话历史已过期", zap.String("conversation_key", key))
		}
	}
}

func cloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
