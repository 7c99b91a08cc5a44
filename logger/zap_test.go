package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).With(map[string]any{"program": "escrow"})

	log.Info("payment verified", map[string]any{
		"request_id": "req-1",
		"amount":     uint64(5_000_000),
		"error":      errors.New("none"),
	})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "payment verified", entry.Message)

	ctx := entry.ContextMap()
	assert.Equal(t, "escrow", ctx["program"])
	assert.Equal(t, "req-1", ctx["request_id"])
	assert.Equal(t, uint64(5_000_000), ctx["amount"])
	assert.Equal(t, "none", ctx["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	l.With(map[string]any{"a": 1}).Info("ignored", nil)
}
