package bigcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/heapstash/plugin"
)

func newTestBigCache(t *testing.T, now *time.Time) *BigCache {
	t.Helper()
	p, err := New(context.Background(), Config{
		LifeWindow: time.Hour,
		Clock:      func() time.Time { return *now },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestPutGetRemove(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	p := newTestBigCache(t, &now)

	env := plugin.Envelope{Data: []byte("payload"), ExpiresAt: plugin.ExpiryIn(now, time.Minute)}
	require.NoError(t, p.Put(ctx, []string{"a", "b"}, env))
	require.Equal(t, 2, p.Len())

	got, err := p.Get(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, env, got)

	require.NoError(t, p.Remove(ctx, "a"))
	require.NoError(t, p.Remove(ctx, "a"))
	_, err = p.Get(ctx, "a")
	require.ErrorIs(t, err, plugin.ErrNotFound)
}

func TestExpiredEntryIsDroppedOnRead(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	p := newTestBigCache(t, &now)

	require.NoError(t, p.Put(ctx, []string{"k"}, plugin.Envelope{Data: []byte("v"), ExpiresAt: plugin.ExpiryIn(now, time.Second)}))
	now = now.Add(time.Second)

	_, err := p.Get(ctx, "k")
	require.ErrorIs(t, err, plugin.ErrNotFound)
	require.Equal(t, 0, p.Len())
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	p := newTestBigCache(t, &now)

	require.NoError(t, p.Put(ctx, []string{"a", "b", "c"}, plugin.Envelope{Data: []byte("v")}))
	require.NoError(t, p.Clear(ctx))
	require.Equal(t, 0, p.Len())
}
