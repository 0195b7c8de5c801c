package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_WritesModuleAndDetails(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewWithZap(zap.New(core))

	l.Info("rewriter", "refined question", map[string]any{"require_enhancement": true})

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "refined question", entries[0].Message)
	ctx := entries[0].ContextMap()
	require.Equal(t, "rewriter", ctx["module"])
	require.Equal(t, map[string]any{"require_enhancement": true}, ctx["details"])
}

func TestZapLogger_ErrorAttachesError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewWithZap(zap.New(core))

	l.Error("usecase", "turn failed", map[string]any{"error": errors.New("boom")})

	entries := logs.FilterMessage("turn failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, "boom", entries[0].ContextMap()["error"])
}

func TestZapLogger_NilDetails(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewWithZap(zap.New(core))

	l.Warn("handler", "no details", nil)
	require.Equal(t, 1, logs.Len())
}

func TestNew_WithFileSink(t *testing.T) {
	l := New(Config{FilePath: t.TempDir() + "/app.log", Production: true})
	l.Info("test", "hello", nil)
	require.NotNil(t, l)
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Debug("m", "discarded", nil)
	require.NoError(t, l.Sync())
}
