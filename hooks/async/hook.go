// Package asynchook moves Hooks calls off the cache's hot path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    ReadFailedEvery: 100, // sample plugin read failures
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := heapstash.New[User](heapstash.Options[User]{
//	    IDPrefix: "user_",
//	    Plugins:  []any{redisPlugin},
//	    Hooks:    hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/heapstash"
	"github.com/unkn0wn-root/heapstash/plugin"
)

type Hooks struct {
	inner   heapstash.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against sends on a closed queue
	closed  bool
	dropped atomic.Uint64
}

var _ heapstash.Hooks = (*Hooks)(nil)

func New(inner heapstash.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped is the number of events discarded because the queue was full or
// closed.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) PluginReadFailed(p, k string, err error) {
	h.try(func() { h.inner.PluginReadFailed(p, k, err) })
}
func (h *Hooks) PluginWriteFailed(p string, t plugin.Task, err error) {
	h.try(func() { h.inner.PluginWriteFailed(p, t, err) })
}
func (h *Hooks) Evicted(k string)                 { h.try(func() { h.inner.Evicted(k) }) }
func (h *Hooks) ExpiredOnRead(k, src string)      { h.try(func() { h.inner.ExpiredOnRead(k, src) }) }
func (h *Hooks) Backfilled(p, k string)           { h.try(func() { h.inner.Backfilled(p, k) }) }
func (h *Hooks) FetchJoined(k string)             { h.try(func() { h.inner.FetchJoined(k) }) }
func (h *Hooks) FetchRetrieved(k string, e error) { h.try(func() { h.inner.FetchRetrieved(k, e) }) }
