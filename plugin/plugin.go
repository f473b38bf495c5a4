// Package plugin defines the secondary storage contract used by heapstash.
//
// A plugin is any value implementing one or more of Getter, Putter, Remover
// and Clearer. The engine never talks to a plugin directly; it wraps it in a
// Runner, which turns every task the plugin does not implement into a no-op.
//
// Plugins receive envelopes: the encoded value plus an optional absolute
// expiry. Keys passed to plugins already carry the cache's id prefix.
// Implementations must be safe for concurrent use.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Getter implementations on a miss. Plugins must
// report a miss as an error rather than returning an empty envelope.
var ErrNotFound = errors.New("plugin: key not found")

// Expiry is an absolute expiry instant in unix milliseconds. Zero means the
// entry never expires. Relative lifetimes are time.Duration everywhere else.
type Expiry int64

// ExpiryAt converts t to an Expiry. The zero time maps to "never".
func ExpiryAt(t time.Time) Expiry {
	if t.IsZero() {
		return 0
	}
	return Expiry(t.UnixMilli())
}

// ExpiryIn returns the instant d after now. Non-positive d yields "never".
func ExpiryIn(now time.Time, d time.Duration) Expiry {
	if d <= 0 {
		return 0
	}
	return ExpiryAt(now.Add(d))
}

func (e Expiry) IsZero() bool { return e == 0 }

// Expired reports whether the instant is at or before now.
func (e Expiry) Expired(now time.Time) bool {
	return e != 0 && int64(e) <= now.UnixMilli()
}

// Time returns the expiry as time.Time (zero time for "never").
func (e Expiry) Time() time.Time {
	if e == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(e))
}

// Remaining returns the lifetime left at now, 0 for "never" and a negative
// value once expired.
func (e Expiry) Remaining(now time.Time) time.Duration {
	if e == 0 {
		return 0
	}
	return e.Time().Sub(now)
}

// Envelope is the record stored in a plugin.
type Envelope struct {
	Data      []byte
	ExpiresAt Expiry
}

// Getter loads an envelope. A miss must be reported as ErrNotFound.
type Getter interface {
	Get(ctx context.Context, key string) (Envelope, error)
}

// Putter stores the same envelope under every key in keys.
type Putter interface {
	Put(ctx context.Context, keys []string, env Envelope) error
}

// Remover deletes a key. Removing a missing key is not an error.
type Remover interface {
	Remove(ctx context.Context, key string) error
}

// Clearer drops every entry the plugin owns.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Task names one of the four plugin tasks.
type Task string

const (
	TaskGet    Task = "get"
	TaskPut    Task = "put"
	TaskRemove Task = "remove"
	TaskClear  Task = "clear"
)

// Runner wraps a plugin and exposes all four tasks uniformly. Tasks the
// plugin does not implement succeed without doing anything.
type Runner struct {
	name    string
	impl    any
	getter  Getter
	putter  Putter
	remover Remover
	clearer Clearer
}

// NewRunner wraps impl. The runner is named after impl's Name() method when
// present, otherwise after its dynamic type.
func NewRunner(impl any) *Runner {
	r := &Runner{name: fmt.Sprintf("%T", impl), impl: impl}
	if n, ok := impl.(interface{ Name() string }); ok {
		r.name = n.Name()
	}
	r.getter, _ = impl.(Getter)
	r.putter, _ = impl.(Putter)
	r.remover, _ = impl.(Remover)
	r.clearer, _ = impl.(Clearer)
	return r
}

func (r *Runner) Name() string { return r.name }

// Unwrap returns the wrapped plugin.
func (r *Runner) Unwrap() any { return r.impl }

// Implements reports whether the wrapped plugin provides task.
func (r *Runner) Implements(task Task) bool {
	switch task {
	case TaskGet:
		return r.getter != nil
	case TaskPut:
		return r.putter != nil
	case TaskRemove:
		return r.remover != nil
	case TaskClear:
		return r.clearer != nil
	}
	return false
}

// Get returns ok=false without error when the plugin has no get task.
func (r *Runner) Get(ctx context.Context, key string) (env Envelope, ok bool, err error) {
	if r.getter == nil {
		return Envelope{}, false, nil
	}
	env, err = r.getter.Get(ctx, key)
	if err != nil {
		return Envelope{}, false, err
	}
	return env, true, nil
}

func (r *Runner) Put(ctx context.Context, keys []string, env Envelope) error {
	if r.putter == nil {
		return nil
	}
	return r.putter.Put(ctx, keys, env)
}

func (r *Runner) Remove(ctx context.Context, key string) error {
	if r.remover == nil {
		return nil
	}
	return r.remover.Remove(ctx, key)
}

func (r *Runner) Clear(ctx context.Context) error {
	if r.clearer == nil {
		return nil
	}
	return r.clearer.Clear(ctx)
}
