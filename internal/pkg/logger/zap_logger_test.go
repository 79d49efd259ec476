package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_WritesModuleAndDetails(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewFromCore(core)

	l.Info("EXECUTOR", "run completed", map[string]interface{}{"state": "COMPLETED"})
	l.Warn("DISPATCHER", "duplicate", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "run completed", entries[0].Message)
	assert.Equal(t, "EXECUTOR", entries[0].ContextMap()["module"])
	assert.Equal(t, map[string]interface{}{"state": "COMPLETED"}, entries[0].ContextMap()["details"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
}

func TestZapLogger_ErrorAttachesCause(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewFromCore(core)

	l.Error("EXECUTOR", "stage failed", map[string]interface{}{"error": errors.New("boom")})

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Debug("X", "ignored", nil)
	assert.NoError(t, l.Sync())
}
