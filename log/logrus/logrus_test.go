package logrus

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/heapstash"
)

func TestFieldsAndErrors(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	base.SetOutput(io.Discard)
	l := New(base)

	boom := errors.New("boom")
	l.Warn("plugin get failed", heapstash.Fields{"op": "get", "err": boom})
	l.Debug("d", nil)

	require.Len(t, hook.AllEntries(), 2)
	e := hook.AllEntries()[0]
	require.Equal(t, logrus.WarnLevel, e.Level)
	require.Equal(t, "heapstash", e.Data["component"])
	require.Equal(t, "get", e.Data["op"])
	require.Equal(t, boom, e.Data[logrus.ErrorKey])
	require.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
}
