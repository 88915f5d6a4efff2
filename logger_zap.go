package mqtt5

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap.Logger to Logger.
type ZapLogger struct {
	logger *zap.Logger
	level  zap.AtomicLevel
}

// NewZapLogger wraps l. The returned logger filters at level on top of l's
// own configuration.
func NewZapLogger(l *zap.Logger, level LogLevel) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	z := &ZapLogger{logger: l, level: zap.NewAtomicLevel()}
	z.SetLevel(level)
	return z
}

// Debug logs a debug message.
func (z *ZapLogger) Debug(msg string, fields LogFields) {
	if z.level.Enabled(zapcore.DebugLevel) {
		z.logger.Debug(msg, zapFields(fields)...)
	}
}

// Info logs an info message.
func (z *ZapLogger) Info(msg string, fields LogFields) {
	if z.level.Enabled(zapcore.InfoLevel) {
		z.logger.Info(msg, zapFields(fields)...)
	}
}

// Warn logs a warning message.
func (z *ZapLogger) Warn(msg string, fields LogFields) {
	if z.level.Enabled(zapcore.WarnLevel) {
		z.logger.Warn(msg, zapFields(fields)...)
	}
}

// Error logs an error message.
func (z *ZapLogger) Error(msg string, fields LogFields) {
	if z.level.Enabled(zapcore.ErrorLevel) {
		z.logger.Error(msg, zapFields(fields)...)
	}
}

// WithFields returns a new logger with the given fields added.
func (z *ZapLogger) WithFields(fields LogFields) Logger {
	return &ZapLogger{
		logger: z.logger.With(zapFields(fields)...),
		level:  z.level,
	}
}

// Level returns the current log level.
func (z *ZapLogger) Level() LogLevel {
	switch z.level.Level() {
	case zapcore.DebugLevel:
		return LogLevelDebug
	case zapcore.InfoLevel:
		return LogLevelInfo
	case zapcore.WarnLevel:
		return LogLevelWarn
	case zapcore.ErrorLevel:
		return LogLevelError
	default:
		return LogLevelNone
	}
}

// SetLevel sets the log level.
func (z *ZapLogger) SetLevel(level LogLevel) {
	switch level {
	case LogLevelDebug:
		z.level.SetLevel(zapcore.DebugLevel)
	case LogLevelInfo:
		z.level.SetLevel(zapcore.InfoLevel)
	case LogLevelWarn:
		z.level.SetLevel(zapcore.WarnLevel)
	case LogLevelError:
		z.level.SetLevel(zapcore.ErrorLevel)
	default:
		z.level.SetLevel(zapcore.FatalLevel)
	}
}

func zapFields(fields LogFields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
