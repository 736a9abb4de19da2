package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/embeddings"
	"go.uber.org/zap"
)

// DefaultVectorLimit 向量检索返回的文档数
const DefaultVectorLimit = 20

const vectorSearchQuery = `SELECT id, content, metadata, embedding <=> $1::vector AS similarity FROM "Document" WHERE embedding IS NOT NULL ORDER BY similarity ASC LIMIT %d`

// ErrEmbedderUnavailable 未配置向量模型
var ErrEmbedderUnavailable = errors.New("未配置向量模型，向量检索不可用")

// VectorSearcher 基于余弦距离的文档检索
type VectorSearcher struct {
	runner   QueryRunner
	embedder embeddings.Embedder
	limit    int
	logger   *zap.Logger
}

// NewVectorSearcher 创建向量检索器，embedder 可以为 nil
func NewVectorSearcher(runner QueryRunner, embedder embeddings.Embedder, logger *zap.Logger) *VectorSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorSearcher{runner: runner, embedder: embedder, limit: DefaultVectorLimit, logger: logger}
}

// Available 是否配置了向量模型
func (s *VectorSearcher) Available() bool {
	return s != nil && s.embedder != nil
}

// Search 将问题向量化并返回距离最近的文档，similarity 越小越相近
func (s *VectorSearcher) Search(ctx context.Context, question string) ([]map[string]any, error) {
	if !s.Available() {
		return nil, ErrEmbedderUnavailable
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("问题不能为空")
	}

	vector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("问题向量化失败: %w", err)
	}
	if len(vector) == 0 {
		return nil, errors.New("向量模型返回了空向量")
	}

	rows, err := s.runner.Query(ctx, fmt.Sprintf(vectorSearchQuery, s.limit), pgvector.NewVector(vector))
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}

	s.logger.Debug("向量检索完成",
		zap.String("question", question),
		zap.Int("dimensions", len(vector)),
		zap.Int("row_count", len(rows)))
	return SerializeRows(rows), nil
}
