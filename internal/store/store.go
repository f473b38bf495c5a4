// Package store implements the primary in-memory layer: a key -> entry map
// paired with an insertion-ordered key list used for bounded-size eviction.
package store

import (
	"container/list"
	"sync"
	"time"

	"github.com/unkn0wn-root/heapstash/plugin"
)

// Entry is a decoded value with its absolute expiry.
type Entry[V any] struct {
	Data      V
	ExpiresAt plugin.Expiry
}

type node[V any] struct {
	key   string
	entry Entry[V]
}

// Store is safe for concurrent use. The map and the order list are always
// mutated together under mu.
type Store[V any] struct {
	mu       sync.Mutex
	maxItems int // <=0 => unbounded
	items    map[string]*list.Element
	order    *list.List // front = oldest insertion
}

func New[V any](maxItems int) *Store[V] {
	return &Store[V]{
		maxItems: maxItems,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Lookup returns the stored entry without checking expiry.
func (s *Store[V]) Lookup(key string) (Entry[V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.items[key]
	if !ok {
		return Entry[V]{}, false
	}
	return el.Value.(*node[V]).entry, true
}

// Insert stores e under every key. Overwriting a present key keeps its
// original eviction position and never evicts. A new key first evicts the
// oldest keys until the store is below maxItems. Evicted keys are returned
// in eviction order.
func (s *Store[V]) Insert(keys []string, e Entry[V]) (evicted []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if el, ok := s.items[k]; ok {
			el.Value.(*node[V]).entry = e
			continue
		}
		for s.maxItems > 0 && s.order.Len() >= s.maxItems {
			front := s.order.Front()
			if front == nil {
				break
			}
			old := front.Value.(*node[V]).key
			s.removeLocked(old)
			evicted = append(evicted, old)
		}
		s.items[k] = s.order.PushBack(&node[V]{key: k, entry: e})
	}
	return evicted
}

// Evict removes key. Missing keys are a no-op.
func (s *Store[V]) Evict(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(key)
}

// EvictIf removes key only while it still holds an expired entry, so a
// concurrent overwrite is never dropped.
func (s *Store[V]) EvictIf(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.items[key]
	if !ok || !el.Value.(*node[V]).entry.ExpiresAt.Expired(now) {
		return false
	}
	return s.removeLocked(key)
}

func (s *Store[V]) Clear() {
	s.mu.Lock()
	s.items = make(map[string]*list.Element)
	s.order.Init()
	s.mu.Unlock()
}

// SweepExpired removes every entry whose expiry is at or before now.
func (s *Store[V]) SweepExpired(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		n := el.Value.(*node[V])
		if n.entry.ExpiresAt.Expired(now) {
			s.order.Remove(el)
			delete(s.items, n.key)
			removed = append(removed, n.key)
		}
		el = next
	}
	return removed
}

func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Keys returns the keys in eviction order (oldest first).
func (s *Store[V]) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*node[V]).key)
	}
	return out
}

func (s *Store[V]) removeLocked(key string) bool {
	el, ok := s.items[key]
	if !ok {
		return false
	}
	s.order.Remove(el)
	delete(s.items, key)
	return true
}
