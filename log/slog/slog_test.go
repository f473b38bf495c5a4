package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/heapstash"
)

func TestAttrsAreGroupedAndSorted(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})
	l := New(stdslog.New(h))

	l.Debug("filtered", heapstash.Fields{"k": 1})
	l.Info("stored", heapstash.Fields{"op": "put", "key": "k"})

	out := buf.String()
	require.NotContains(t, out, "filtered")
	require.Equal(t, 1, strings.Count(out, "\n"))
	require.Contains(t, out, "msg=stored heapstash.key=k heapstash.op=put")
}
