package logging

import (
	"context"
	"maps"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger is the default Logger, backed by zap
// Debug/Info/Warn/Error go through zap's leveled core; Fatal exits the process.
type ZapLogger struct {
	z     *zap.Logger
	level zap.AtomicLevel
}

// NewZapLogger creates a logger writing to stderr. Development mode uses the
// console encoder, production mode emits JSON with ISO8601 timestamps.
func NewZapLogger(development bool) *ZapLogger {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.Sampling = nil
	}
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg.Level = level

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return &ZapLogger{z: zap.NewNop(), level: level}
	}
	return &ZapLogger{z: z, level: level}
}

// FromZap wraps an existing zap logger. SetLevel is a no-op on loggers
// whose level is owned elsewhere.
func FromZap(z *zap.Logger) *ZapLogger {
	return &ZapLogger{z: z, level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

// Zap returns the underlying zap logger
func (l *ZapLogger) Zap() *zap.Logger { return l.z }

// Sync flushes buffered entries
func (l *ZapLogger) Sync() error { return l.z.Sync() }

func toZapFields(fields []Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	merged := make(Fields)
	for _, f := range fields {
		maps.Copy(merged, f)
	}
	keys := slices.Sorted(maps.Keys(merged))
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, merged[k]))
	}
	return out
}

func (l *ZapLogger) Debug(msg string, fields ...Fields) {
	l.z.Debug(msg, toZapFields(fields)...)
}

func (l *ZapLogger) Info(msg string, fields ...Fields) {
	l.z.Info(msg, toZapFields(fields)...)
}

func (l *ZapLogger) Warn(msg string, fields ...Fields) {
	l.z.Warn(msg, toZapFields(fields)...)
}

func (l *ZapLogger) Error(err error, msg string, fields ...Fields) {
	l.z.Error(msg, append(toZapFields(fields), zap.Error(err))...)
}

func (l *ZapLogger) Fatal(err error, msg string, fields ...Fields) {
	l.z.Fatal(msg, append(toZapFields(fields), zap.Error(err))...)
}

func (l *ZapLogger) WithFields(fields Fields) Logger {
	return &ZapLogger{
		z:     l.z.With(toZapFields([]Fields{fields})...),
		level: l.level,
	}
}

func (l *ZapLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return l.WithFields(fields)
	}
	return l
}

func (l *ZapLogger) SetLevel(level Level) {
	switch level {
	case DebugLevel:
		l.level.SetLevel(zapcore.DebugLevel)
	case InfoLevel:
		l.level.SetLevel(zapcore.InfoLevel)
	case WarnLevel:
		l.level.SetLevel(zapcore.WarnLevel)
	case ErrorLevel:
		l.level.SetLevel(zapcore.ErrorLevel)
	case FatalLevel:
		l.level.SetLevel(zapcore.FatalLevel)
	}
}
