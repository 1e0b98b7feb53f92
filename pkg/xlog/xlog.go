package xlog

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

////////////////////////////////////////////////////////////////////////////////

type Logger interface {
	With(fields ...zap.Field) Logger
	WithName(name string) Logger
	WithCallerSkip(level int) Logger

	Zap() *zap.Logger

	Debug(ctx context.Context, msg string, fields ...zap.Field)
	Info(ctx context.Context, msg string, fields ...zap.Field)
	Warn(ctx context.Context, msg string, fields ...zap.Field)
	Error(ctx context.Context, msg string, fields ...zap.Field)
	Fatal(ctx context.Context, msg string, fields ...zap.Field)
}

////////////////////////////////////////////////////////////////////////////////

type logger struct {
	log *zap.Logger
}

var _ Logger = (*logger)(nil)

////////////////////////////////////////////////////////////////////////////////

// New wraps the zap logger. Callers are reported from the call site of the
// wrapper methods, not from this package.
func New(log *zap.Logger) Logger {
	return &logger{log.WithOptions(zap.AddCallerSkip(1))}
}

func NewNop() Logger {
	return &logger{zap.NewNop()}
}

func TryNew(log *zap.Logger, err error) (Logger, error) {
	if err != nil {
		return nil, err
	}
	return New(log), nil
}

// NewLevel builds a console-friendly structured logger writing to stderr.
func NewLevel(level zapcore.Level) (Logger, error) {
	conf := zap.NewProductionConfig()
	conf.Level = zap.NewAtomicLevelAt(level)
	conf.Encoding = "console"
	conf.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	conf.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	conf.Sampling = nil
	return TryNew(conf.Build())
}

func (l *logger) Zap() *zap.Logger {
	return l.log.WithOptions(zap.AddCallerSkip(-1))
}

////////////////////////////////////////////////////////////////////////////////

func (l *logger) With(fields ...zap.Field) Logger {
	return &logger{l.log.With(fields...)}
}

func (l *logger) WithName(name string) Logger {
	return &logger{l.log.Named(name)}
}

func (l *logger) WithCallerSkip(level int) Logger {
	return &logger{l.log.WithOptions(zap.AddCallerSkip(level))}
}

////////////////////////////////////////////////////////////////////////////////

func (l *logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.log.Debug(msg, addTraceFields(ctx, fields)...)
}

func (l *logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.log.Info(msg, addTraceFields(ctx, fields)...)
}

func (l *logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.log.Warn(msg, addTraceFields(ctx, fields)...)
}

func (l *logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.log.Error(msg, addTraceFields(ctx, fields)...)
}

func (l *logger) Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	l.log.Fatal(msg, addTraceFields(ctx, fields)...)
}

func addTraceFields(ctx context.Context, fields []zap.Field) []zap.Field {
	span := trace.SpanContextFromContext(ctx)
	if span.HasTraceID() {
		fields = append(fields, zap.String("trace.id", span.TraceID().String()))
	}
	if span.HasSpanID() {
		fields = append(fields, zap.String("span.id", span.SpanID().String()))
	}
	return fields
}

////////////////////////////////////////////////////////////////////////////////
