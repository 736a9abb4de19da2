// 流式回答写入器
// 纯文本与 Server-Sent Events 两种输出形式

package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrWriterClosed 写入器已关闭
var ErrWriterClosed = errors.New("流式写入器已关闭")

// StreamWriter 流式写入器接口
type StreamWriter interface {
	WriteChunk(chunk string) error
	Flush() error
	Close() error
}

// Flusher 刷新接口，http.Flusher 与 gin.ResponseWriter 均满足
type Flusher interface {
	Flush()
}

// TextStreamWriter 纯文本流式写入器，每个文本块写入后立即刷新
type TextStreamWriter struct {
	writer  io.Writer
	flusher Flusher
	mu      sync.Mutex
	closed  bool
	written int
}

// NewTextStreamWriter 创建纯文本写入器，flusher 可为 nil
func NewTextStreamWriter(w io.Writer, flusher Flusher) *TextStreamWriter {
	return &TextStreamWriter{writer: w, flusher: flusher}
}

// WriteChunk 写入文本块
func (w *TextStreamWriter) WriteChunk(chunk string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	n, err := io.WriteString(w.writer, chunk)
	w.written += n
	if err != nil {
		return fmt.Errorf("写入文本块失败: %w", err)
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Flush 刷新底层连接
func (w *TextStreamWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.flusher != nil && !w.closed {
		w.flusher.Flush()
	}
	return nil
}

// Close 关闭写入器，之后的写入返回 ErrWriterClosed
func (w *TextStreamWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// Written 已写入的字节数
func (w *TextStreamWriter) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// StreamEventType SSE事件类型
type StreamEventType string

const (
	StreamEventChunk    StreamEventType = "chunk"
	StreamEventComplete StreamEventType = "complete"
)

// StreamEvent SSE事件数据
type StreamEvent struct {
	ID        string          `json:"id"`
	Type      StreamEventType `json:"type"`
	Content   string          `json:"content,omitempty"`
	Sequence  int64           `json:"sequence"`
	Timestamp time.Time       `json:"timestamp"`
}

// SSEStreamWriter Server-Sent Events流式写入器
type SSEStreamWriter struct {
	streamID string
	writer   io.Writer
	flusher  Flusher
	sequence int64
	mu       sync.Mutex
	closed   bool
}

// NewSSEStreamWriter 创建SSE写入器
func NewSSEStreamWriter(streamID string, w io.Writer, flusher Flusher) *SSEStreamWriter {
	return &SSEStreamWriter{streamID: streamID, writer: w, flusher: flusher}
}

// WriteChunk 以 chunk 事件写入文本块
func (w *SSEStreamWriter) WriteChunk(chunk string) error {
	return w.writeEvent(StreamEventChunk, chunk)
}

// Complete 发送 complete 事件，仅在回答完整生成后调用
func (w *SSEStreamWriter) Complete() error {
	return w.writeEvent(StreamEventComplete, "")
}

func (w *SSEStreamWriter) writeEvent(eventType StreamEventType, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}

	w.sequence++
	data, err := json.Marshal(StreamEvent{
		ID:        w.streamID,
		Type:      eventType,
		Content:   content,
		Sequence:  w.sequence,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("序列化SSE事件失败: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "id: %d\nevent: %s\ndata: %s\n\n", w.sequence, eventType, data); err != nil {
		return fmt.Errorf("写入SSE事件失败: %w", err)
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Flush 刷新底层连接
func (w *SSEStreamWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.flusher != nil && !w.closed {
		w.flusher.Flush()
	}
	return nil
}

// Close 关闭写入器
func (w *SSEStreamWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}
