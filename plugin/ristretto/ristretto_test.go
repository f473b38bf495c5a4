package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/heapstash/plugin"
)

func newTestRistretto(t *testing.T, now time.Time) *Ristretto {
	t.Helper()
	p, err := New(Config{
		NumCounters:   1e4,
		MaxCost:       1 << 20,
		BufferItems:   64,
		Metrics:       true,
		IgnoreRejects: true,
		Clock:         func() time.Time { return now },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestPutGetRemove(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	p := newTestRistretto(t, now)

	env := plugin.Envelope{Data: []byte("v"), ExpiresAt: plugin.ExpiryIn(now, time.Hour)}
	require.NoError(t, p.Put(ctx, []string{"a", "b"}, env))

	got, err := p.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, env, got)

	require.NoError(t, p.Remove(ctx, "a"))
	_, err = p.Get(ctx, "a")
	require.ErrorIs(t, err, plugin.ErrNotFound)
	_, err = p.Get(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, p.Metrics())
}

func TestPutExpiredEnvelopeDeletes(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	p := newTestRistretto(t, now)

	require.NoError(t, p.Put(ctx, []string{"k"}, plugin.Envelope{Data: []byte("v")}))
	require.NoError(t, p.Put(ctx, []string{"k"}, plugin.Envelope{Data: []byte("v"), ExpiresAt: plugin.ExpiryAt(now)}))
	_, err := p.Get(ctx, "k")
	require.ErrorIs(t, err, plugin.ErrNotFound)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	p := newTestRistretto(t, time.Now())

	require.NoError(t, p.Put(ctx, []string{"a", "b"}, plugin.Envelope{Data: []byte("v")}))
	require.NoError(t, p.Clear(ctx))
	_, err := p.Get(ctx, "a")
	require.ErrorIs(t, err, plugin.ErrNotFound)
}
