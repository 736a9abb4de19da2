package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"askdb-go/internal/ai"
	"askdb-go/internal/history"
	"askdb-go/internal/middleware"
	"askdb-go/internal/service"
)

// AnswerComposer 回答合成接口，由 ai.Composer 实现
type AnswerComposer interface {
	Answer(ctx context.Context, question, key string, w ai.StreamWriter) (string, error)
	AnswerWithContext(ctx context.Context, question, systemPrompt string, contextData any, w ai.StreamWriter) (string, error)
}

// DocumentSearcher 文档向量检索接口，由 service.VectorSearcher 实现
type DocumentSearcher interface {
	Available() bool
	Search(ctx context.Context, question string) ([]map[string]any, error)
}

// ChatHandler 问答与检索HTTP处理器
type ChatHandler struct {
	composer           AnswerComposer
	generator          ai.QueryGenerator
	executor           ai.QueryExecutor
	documents          DocumentSearcher
	history            history.Store
	conversationHeader string
	logger             *zap.Logger
}

// ChatHandlerConfig 处理器依赖
type ChatHandlerConfig struct {
	Composer           AnswerComposer
	Generator          ai.QueryGenerator
	Executor           ai.QueryExecutor
	Documents          DocumentSearcher // 可为空，此时向量接口返回503
	History            history.Store
	ConversationHeader string
}

// NewChatHandler 创建问答处理器
func NewChatHandler(config *ChatHandlerConfig, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	header := config.ConversationHeader
	if header == "" {
		header = "X-Conversation-ID"
	}
	return &ChatHandler{
		composer:           config.Composer,
		generator:          config.Generator,
		executor:           config.Executor,
		documents:          config.Documents,
		history:            config.History,
		conversationHeader: header,
		logger:             logger,
	}
}

// ChatMessage 聊天消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 聊天请求，问题取 question，缺省时取最后一条消息
type ChatRequest struct {
	Question       string        `json:"question"`
	Messages       []ChatMessage `json:"messages"`
	ConversationID string        `json:"conversation_id"`
}

// CurrentQuestion 当前问题
func (r *ChatRequest) CurrentQuestion() string {
	if q := strings.TrimSpace(r.Question); q != "" {
		return q
	}
	if len(r.Messages) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Messages[len(r.Messages)-1].Content)
}

// SearchRequest 检索请求
type SearchRequest struct {
	Question string `json:"question"`
}

// VectorChatResponse 文档问答响应
type VectorChatResponse struct {
	Response string `json:"response"`
	Content  string `json:"content"`
}

// ChatSemantic 数据问答，回答以纯文本或SSE流式返回
// POST /api/v1/chat/semantic
func (h *ChatHandler) ChatSemantic(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, http.StatusBadRequest, "请求参数无效")
		return
	}
	question := req.CurrentQuestion()
	if question == "" {
		middleware.RespondError(c, http.StatusBadRequest, "question is required")
		return
	}

	key := history.ResolveKey(req.ConversationID, c.GetHeader(h.conversationHeader), c.ClientIP())
	requestID := middleware.GetRequestID(c)
	sse := strings.Contains(c.GetHeader("Accept"), "text/event-stream")

	c.Header(h.conversationHeader, key)
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	var (
		writer    ai.StreamWriter
		sseWriter *ai.SSEStreamWriter
	)
	if sse {
		c.Header("Content-Type", "text/event-stream; charset=utf-8")
		sseWriter = ai.NewSSEStreamWriter(requestID, c.Writer, c.Writer)
		writer = sseWriter
	} else {
		c.Header("Content-Type", "text/plain; charset=utf-8")
		writer = ai.NewTextStreamWriter(c.Writer, c.Writer)
	}
	defer writer.Close()

	h.logger.Info("问答请求",
		zap.String("request_id", requestID),
		zap.String("conversation_key", key),
		zap.String("question", question),
		zap.Bool("sse", sse))

	_, err := h.composer.Answer(c.Request.Context(), question, key, writer)
	if err != nil {
		h.respondStreamError(c, err, question, key)
		return
	}
	if sseWriter != nil {
		if err := sseWriter.Complete(); err != nil {
			h.logger.Warn("发送完成事件失败", zap.String("request_id", requestID), zap.Error(err))
		}
	}
}

// ChatVector 基于文档向量检索结果回答，完整回答以JSON返回
// POST /api/v1/chat/vector
func (h *ChatHandler) ChatVector(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, http.StatusBadRequest, "请求参数无效")
		return
	}
	question := req.CurrentQuestion()
	if question == "" {
		middleware.RespondError(c, http.StatusBadRequest, "question is required")
		return
	}
	if !h.documentsAvailable() {
		middleware.RespondError(c, http.StatusServiceUnavailable, "未配置向量模型")
		return
	}

	ctx := c.Request.Context()
	documents, err := h.documents.Search(ctx, question)
	if err != nil {
		h.logger.Error("文档检索失败", zap.String("question", question), zap.Error(err))
		middleware.RespondError(c, http.StatusInternalServerError, "Failed to process chat request")
		return
	}

	var buf bytes.Buffer
	answer, err := h.composer.AnswerWithContext(ctx, question, ai.DocumentSystemPrompt, documents, ai.NewTextStreamWriter(&buf, nil))
	if err != nil {
		h.logger.Error("文档问答失败", zap.String("question", question), zap.Error(err))
		middleware.RespondError(c, http.StatusInternalServerError, "Failed to process chat request")
		return
	}

	c.JSON(http.StatusOK, VectorChatResponse{Response: answer, Content: question})
}

// SearchSemantic 生成并执行查询，返回结果载荷；会话历史类问题原样返回生成结果
// POST /api/v1/search/semantic
func (h *ChatHandler) SearchSemantic(c *gin.Context) {
	question, ok := h.bindSearch(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	query := h.generator.Generate(ctx, question)
	if query.IsHistoric() {
		c.JSON(http.StatusOK, query)
		return
	}

	payload, err := h.executor.Execute(ctx, query, question)
	if err != nil {
		h.logger.Error("查询执行失败",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("question", question),
			zap.Error(err))
		status, message := errorStatus(err)
		middleware.RespondError(c, status, message)
		return
	}
	c.JSON(http.StatusOK, payload)
}

// SearchVector 文档向量检索，返回相似度最高的文档
// POST /api/v1/search/vector
func (h *ChatHandler) SearchVector(c *gin.Context) {
	question, ok := h.bindSearch(c)
	if !ok {
		return
	}
	if !h.documentsAvailable() {
		middleware.RespondError(c, http.StatusServiceUnavailable, "未配置向量模型")
		return
	}

	documents, err := h.documents.Search(c.Request.Context(), question)
	if err != nil {
		h.logger.Error("文档检索失败", zap.String("question", question), zap.Error(err))
		middleware.RespondError(c, http.StatusInternalServerError, "Search failed")
		return
	}
	c.JSON(http.StatusOK, documents)
}

// ConversationHistory 返回会话历史
// GET /api/v1/conversations/:id/history
func (h *ChatHandler) ConversationHistory(c *gin.Context) {
	key := strings.TrimSpace(c.Param("id"))
	if key == "" {
		middleware.RespondError(c, http.StatusBadRequest, "会话标识不能为空")
		return
	}
	turns, err := h.history.Get(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("读取会话历史失败", zap.String("conversation_key", key), zap.Error(err))
		middleware.RespondError(c, http.StatusInternalServerError, "读取会话历史失败")
		return
	}
	if turns == nil {
		turns = []history.Turn{}
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": key,
		"turns":           turns,
	})
}

func (h *ChatHandler) bindSearch(c *gin.Context) (string, bool) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, http.StatusBadRequest, "请求参数无效")
		return "", false
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		middleware.RespondError(c, http.StatusBadRequest, "question is required")
		return "", false
	}
	return question, true
}

func (h *ChatHandler) documentsAvailable() bool {
	return h.documents != nil && h.documents.Available()
}

// respondStreamError 尚未输出时改写为JSON错误，否则只能结束响应
func (h *ChatHandler) respondStreamError(c *gin.Context, err error, question, key string) {
	fields := []zap.Field{
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("conversation_key", key),
		zap.String("question", question),
		zap.Error(err),
	}
	if c.Writer.Written() {
		h.logger.Error("流式回答中断", fields...)
		c.Abort()
		return
	}

	h.logger.Error("问答失败", fields...)
	header := c.Writer.Header()
	header.Del("Content-Type")
	header.Del("Cache-Control")
	header.Del("X-Accel-Buffering")
	status, message := errorStatus(err)
	middleware.RespondError(c, status, message)
}

// errorStatus 错误到HTTP状态码的映射
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "请求超时"
	case errors.Is(err, service.ErrAllTiersFailed):
		return http.StatusInternalServerError, "查询执行失败"
	default:
		return http.StatusInternalServerError, "Failed to process chat request"
	}
}
