package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Run("creates console logger", func(t *testing.T) {
		cfg := DefaultConfig()
		l, err := New(cfg)
		require.NoError(t, err)
		require.NotNil(t, l)
		assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("creates json logger at debug level", func(t *testing.T) {
		cfg := &Config{Level: "debug", Format: "json", Output: "stderr", TimeFormat: "2006-01-02T15:04:05.000Z07:00"}
		l, err := New(cfg)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("info"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("ERROR"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("unknown"))
}

func TestWithTraceContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	t.Run("no span leaves logger untouched", func(t *testing.T) {
		l := WithTraceContext(context.Background(), base)
		l.Info("plain")
		entry := logs.TakeAll()[0]
		assert.Empty(t, entry.Context)
	})

	t.Run("valid span adds trace fields", func(t *testing.T) {
		traceID := trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
		spanID := trace.SpanID{0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11}
		sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
		require.True(t, sc.IsValid())
		ctx := trace.ContextWithSpanContext(context.Background(), sc)

		WithTraceContext(ctx, base).Info("traced")
		entry := logs.TakeAll()[0]
		fields := entry.ContextMap()
		assert.Equal(t, traceID.String(), fields["trace_id"])
		assert.Equal(t, spanID.String(), fields["span_id"])
	})
}

func TestNewForEnvironment(t *testing.T) {
	l, err := NewForEnvironment("production")
	require.NoError(t, err)
	require.NotNil(t, l)

	l, err = NewForEnvironment("development")
	require.NoError(t, err)
	require.NotNil(t, l)
}
