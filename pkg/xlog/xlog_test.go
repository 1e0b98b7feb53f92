package xlog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerAddsTraceFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core)).WithName("test").With(zap.Int("core", 1))

	span := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01},
		SpanID:  trace.SpanID{0x02},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), span)

	l.Info(ctx, "with span")
	l.Warn(context.Background(), "without span")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	require.Equal(t, "test", entries[0].LoggerName)
	fields := entries[0].ContextMap()
	require.Equal(t, int64(1), fields["core"])
	require.Equal(t, span.TraceID().String(), fields["trace.id"])
	require.Equal(t, span.SpanID().String(), fields["span.id"])

	require.NotContains(t, entries[1].ContextMap(), "trace.id")
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.Debug(context.Background(), "dropped")
	require.NotNil(t, l.Zap())
}

func TestLoggerReportsCallSite(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core, zap.AddCaller())).WithName("caller")

	l.Info(context.Background(), "from test")
	l.Zap().Info("from zap")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	for _, entry := range entries {
		require.True(t, entry.Caller.Defined)
		require.True(t, strings.HasSuffix(entry.Caller.File, "xlog_test.go"), entry.Caller.File)
	}
}
