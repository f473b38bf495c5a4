package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/heapstash"
)

type countingHooks struct {
	heapstash.NopHooks
	mu      sync.Mutex
	evicted []string
	block   chan struct{}
}

func (c *countingHooks) Evicted(k string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.evicted = append(c.evicted, k)
	c.mu.Unlock()
}

func TestEventsAreDeliveredBeforeClose(t *testing.T) {
	inner := &countingHooks{}
	h := New(inner, 2, 16)
	for i := 0; i < 10; i++ {
		h.Evicted("k")
	}
	h.Close()
	if len(inner.evicted) != 10 {
		t.Fatalf("delivered %d events, want 10", len(inner.evicted))
	}
	if h.Dropped() != 0 {
		t.Fatalf("dropped %d", h.Dropped())
	}
}

func TestFullQueueDropsInsteadOfBlocking(t *testing.T) {
	inner := &countingHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// one event held by the worker, one in the queue, the rest dropped
	for i := 0; i < 10; i++ {
		h.Evicted("k")
	}
	close(inner.block)
	h.Close()

	if got := uint64(len(inner.evicted)) + h.Dropped(); got != 10 {
		t.Fatalf("delivered+dropped=%d, want 10", got)
	}
	if h.Dropped() == 0 {
		t.Fatalf("expected drops with a blocked worker and queue of 1")
	}
}

func TestSendAfterCloseIsDropped(t *testing.T) {
	h := New(heapstash.NopHooks{}, 1, 4)
	h.Close()
	h.Close()
	h.FetchJoined("k")
	if h.Dropped() != 1 {
		t.Fatalf("dropped=%d", h.Dropped())
	}
}
