package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	texts  []string
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, f.err
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	return f.vector, f.err
}

// TestVectorSearcher_Search 测试向量检索
func TestVectorSearcher_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("向量作为参数传递", func(t *testing.T) {
		embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
		runner := &MockQueryRunner{}
		runner.On("Query", ctx, mock.MatchedBy(func(sql string) bool {
			return strings.Contains(sql, `embedding <=> $1::vector`) && strings.HasSuffix(sql, "LIMIT 20")
		}), []any{pgvector.NewVector([]float32{0.1, 0.2, 0.3})}).
			Return([]map[string]any{{"id": "d1", "content": "Travel policy", "similarity": 0.12}}, nil).Once()

		searcher := NewVectorSearcher(runner, embedder, zap.NewNop())
		docs, err := searcher.Search(ctx, "  travel policy  ")

		require.NoError(t, err)
		assert.Equal(t, []string{"travel policy"}, embedder.texts)
		require.Len(t, docs, 1)
		assert.Equal(t, "Travel policy", docs[0]["content"])
		runner.AssertExpectations(t)
	})

	t.Run("未配置向量模型", func(t *testing.T) {
		searcher := NewVectorSearcher(&MockQueryRunner{}, nil, nil)
		assert.False(t, searcher.Available())

		_, err := searcher.Search(ctx, "anything")
		assert.ErrorIs(t, err, ErrEmbedderUnavailable)
	})

	t.Run("空问题", func(t *testing.T) {
		searcher := NewVectorSearcher(&MockQueryRunner{}, &fakeEmbedder{vector: []float32{1}}, nil)
		_, err := searcher.Search(ctx, "   ")
		assert.Error(t, err)
	})

	t.Run("向量化失败", func(t *testing.T) {
		runner := &MockQueryRunner{}
		searcher := NewVectorSearcher(runner, &fakeEmbedder{err: errors.New("quota exceeded")}, nil)

		_, err := searcher.Search(ctx, "budget")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
		runner.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("查询失败", func(t *testing.T) {
		runner := &MockQueryRunner{}
		runner.On("Query", ctx, mock.Anything, mock.Anything).
			Return(nil, errors.New(`type "vector" does not exist`)).Once()
		searcher := NewVectorSearcher(runner, &fakeEmbedder{vector: []float32{1, 0}}, nil)

		_, err := searcher.Search(ctx, "budget")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "向量检索失败")
	})
}
