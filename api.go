package heapstash

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/heapstash/codec"
	"github.com/unkn0wn-root/heapstash/plugin"
)

// Expiry is an absolute expiry instant (unix ms, 0 = never).
type Expiry = plugin.Expiry

// NoExpiry as a per-call TTL or PluginTTL explicitly disables expiry,
// overriding the cache-wide default.
const NoExpiry time.Duration = -1

// RetrieveFunc loads the value for id on a Fetch miss. id never carries the
// cache's IDPrefix.
type RetrieveFunc[V any] func(ctx context.Context, id string) (V, error)

// Options configure a Cache. All fields are optional.
type Options[V any] struct {
	IDPrefix string        // prepended to every key before it touches any store
	MaxItems int           // primary store bound; <=0 => unbounded
	TTL      time.Duration // default lifetime for Put; 0 => entries never expire

	Codec   c.Codec[V]       // value <-> bytes for plugins; nil => JSON
	Logger  Logger           // nil => NopLogger
	Hooks   Hooks            // nil => NopHooks
	Clock   func() time.Time // nil => time.Now
	Plugins []any            // registered in order, same as calling Use

	// EvictFromPlugins also removes keys evicted for MaxItems from every
	// plugin. Off by default: evicting from memory leaves secondary copies.
	EvictFromPlugins bool
	// SweepInterval runs Sweep in the background; 0 => lazy expiry only.
	SweepInterval time.Duration
}

// GetSettings tune a single Get.
type GetSettings struct {
	InternalCacheOnly bool // primary store only; never touch plugins
}

// PutSettings tune a single Put/PutMany.
type PutSettings struct {
	InternalCacheOnly bool
	// TTL overrides Options.TTL for this item. NoExpiry disables expiry;
	// any other negative value fails with ErrInvalidTTL.
	TTL time.Duration
	// PluginTTL overrides only the expiry sent to plugins. 0 => same as the
	// primary copy, NoExpiry => no expiry in plugins.
	PluginTTL time.Duration
}

// FetchSettings apply to the put that follows a successful Fetch load.
type FetchSettings = PutSettings

type RemoveSettings struct {
	InternalCacheOnly bool
}

type ClearSettings struct {
	InternalCacheOnly bool
}

func New[V any](opts Options[V]) (*Cache[V], error) {
	return newCache[V](opts)
}
