package zap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/heapstash"
)

func TestLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	boom := errors.New("boom")
	l.Debug("d", heapstash.Fields{"op": "get", "key": "k"})
	l.Warn("w", heapstash.Fields{"err": boom})
	l.Info("i", nil)
	l.Error("e", nil)

	entries := logs.All()
	require.Len(t, entries, 4)
	require.Equal(t, "heapstash", entries[0].LoggerName)
	require.Equal(t, zapcore.DebugLevel, entries[0].Level)
	require.Equal(t, map[string]any{"key": "k", "op": "get"}, entries[0].ContextMap())
	require.Equal(t, "boom", entries[1].ContextMap()["err"])
	require.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}
