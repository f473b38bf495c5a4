package promhook

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/heapstash"
	"github.com/unkn0wn-root/heapstash/plugin"
)

func TestCountersFollowCacheEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New(reg, "test_cache")
	require.NoError(t, err)

	cc, err := heapstash.New[string](heapstash.Options[string]{MaxItems: 1, Hooks: h})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cc.Put(ctx, "a", "1", heapstash.PutSettings{}))
	require.NoError(t, cc.Put(ctx, "b", "2", heapstash.PutSettings{}))
	_, err = cc.Fetch(ctx, "c", heapstash.FetchSettings{}, func(context.Context, string) (string, error) {
		return "", errors.New("origin down")
	})
	require.Error(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(h.evicted))
	require.Equal(t, 1.0, testutil.ToFloat64(h.fetchLoads.WithLabelValues("error")))
}

func TestReadResultLabels(t *testing.T) {
	h, err := New(prometheus.NewRegistry(), "")
	require.NoError(t, err)

	h.PluginReadFailed("redis", "k", plugin.ErrNotFound)
	h.PluginReadFailed("redis", "k", errors.New("timeout"))
	h.PluginReadFailed("redis", "k", errors.New("timeout"))
	h.PluginWriteFailed("redis", plugin.TaskClear, errors.New("x"))

	require.Equal(t, 1.0, testutil.ToFloat64(h.pluginReads.WithLabelValues("redis", "miss")))
	require.Equal(t, 2.0, testutil.ToFloat64(h.pluginReads.WithLabelValues("redis", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.pluginWrites.WithLabelValues("redis", "clear")))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "dup")
	require.NoError(t, err)
	_, err = New(reg, "dup")
	require.Error(t, err)
}
