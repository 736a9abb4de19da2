package config

import (
	"context"

	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"
)

// PgxZapLogger pgx和zap的适配器
// 将pgx的trace日志重定向到zap日志系统
type PgxZapLogger struct {
	logger *zap.Logger
	level  tracelog.LogLevel
}

var _ tracelog.Logger = (*PgxZapLogger)(nil)

// NewPgxZapLogger 创建PGX Zap日志适配器
func NewPgxZapLogger(logger *zap.Logger, level string) *PgxZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PgxZapLogger{
		logger: logger.Named("pgx"),
		level:  parsePgxLogLevel(level),
	}
}

// Log 实现tracelog.Logger接口
// tracelog 的级别数值越大越详细
func (l *PgxZapLogger) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	if level > l.level || l.level == tracelog.LogLevelNone {
		return
	}

	fields := make([]zap.Field, 0, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case int:
			fields = append(fields, zap.Int(key, v))
		case int64:
			fields = append(fields, zap.Int64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		case error:
			fields = append(fields, zap.NamedError(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		l.logger.Debug(msg, fields...)
	case tracelog.LogLevelInfo:
		l.logger.Info(msg, fields...)
	case tracelog.LogLevelWarn:
		l.logger.Warn(msg, fields...)
	case tracelog.LogLevelError:
		l.logger.Error(msg, fields...)
	default:
		l.logger.Info(msg, fields...)
	}
}

// parsePgxLogLevel 解析字符串日志级别，无法识别时为warn
func parsePgxLogLevel(level string) tracelog.LogLevel {
	parsed, err := tracelog.LogLevelFromString(level)
	if err != nil {
		return tracelog.LogLevelWarn
	}
	return parsed
}

// GetLogLevel 获取当前日志级别
func (l *PgxZapLogger) GetLogLevel() tracelog.LogLevel {
	return l.level
}
