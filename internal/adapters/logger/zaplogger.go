package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"forexBot/internal/ports"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements ports.Logger on top of a JSON zap core.
type ZapLogger struct {
	logger *zap.Logger
}

var _ ports.Logger = (*ZapLogger)(nil)

// NewZapLogger creates a JSON logger writing to os.Stderr.
func NewZapLogger(level LogLevel) *ZapLogger {
	return NewZapLoggerTo(os.Stderr, level)
}

// NewZapLoggerTo creates a JSON logger writing to w.
func NewZapLoggerTo(w io.Writer, level LogLevel) *ZapLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(w),
		zapLevel(level),
	)
	return &ZapLogger{logger: zap.New(core)}
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func toZapFields(ctx context.Context, fields []map[string]interface{}) []zap.Field {
	merged := mergeFields(ctx, fields)
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys)+1)
	for _, k := range keys {
		switch v := merged[k].(type) {
		case fmt.Stringer:
			out = append(out, zap.String(k, v.String()))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}

// Debug logs a message at Debug level.
func (l *ZapLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logger.Debug(msg, toZapFields(ctx, fields)...)
}

// Info logs a message at Info level.
func (l *ZapLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logger.Info(msg, toZapFields(ctx, fields)...)
}

// Warn logs a message at Warning level.
func (l *ZapLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logger.Warn(msg, toZapFields(ctx, fields)...)
}

// Error logs an error message at Error level.
func (l *ZapLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.logger.Error(msg, append(toZapFields(ctx, fields), zap.Error(err))...)
}

// Sync flushes buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// New builds the logger selected by format ("text" or "json").
func New(format string, level LogLevel) ports.Logger {
	if format == "json" {
		return NewZapLogger(level)
	}
	return NewStdLogger(level)
}
