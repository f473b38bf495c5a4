package heapstash

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/heapstash/codec"
	"github.com/unkn0wn-root/heapstash/internal/store"
	"github.com/unkn0wn-root/heapstash/plugin"
)

// Cache is an independent cache instance. The zero value is not usable;
// construct with New.
type Cache[V any] struct {
	prefix           string
	defaultTTL       time.Duration
	codec            c.Codec[V]
	log              Logger
	hooks            Hooks
	now              func() time.Time
	evictFromPlugins bool

	primary *store.Store[V]
	sweeper *store.Sweeper

	pluginsMu sync.RWMutex
	plugins   []*plugin.Runner

	// in-flight Fetch loads, keyed by prefixed key
	flights singleflight.Group
}

func newCache[V any](opts Options[V]) (*Cache[V], error) {
	if opts.TTL < 0 {
		return nil, fmt.Errorf("heapstash: negative default ttl %v", opts.TTL)
	}

	cc := &Cache[V]{
		prefix:           opts.IDPrefix,
		defaultTTL:       opts.TTL,
		evictFromPlugins: opts.EvictFromPlugins,
		primary:          store.New[V](opts.MaxItems),
	}

	// defaults
	cc.codec = coalesce[c.Codec[V]](opts.Codec, c.JSON[V]{})
	cc.log = coalesce[Logger](opts.Logger, NopLogger{})
	cc.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	if opts.Clock != nil {
		cc.now = opts.Clock
	} else {
		cc.now = time.Now
	}

	if err := cc.Use(opts.Plugins...); err != nil {
		return nil, err
	}
	cc.sweeper = store.StartSweeper(opts.SweepInterval, func() { cc.Sweep() })

	cc.log.Debug("cache created", Fields{"idPrefix": opts.IDPrefix, "maxItems": opts.MaxItems, "ttl": opts.TTL})
	return cc, nil
}

// Use appends plugins. Registration order is read priority.
func (cc *Cache[V]) Use(impls ...any) error {
	runners := make([]*plugin.Runner, 0, len(impls))
	for i, impl := range impls {
		if isNil(impl) {
			return fmt.Errorf("heapstash: plugin %d is nil", i)
		}
		runners = append(runners, plugin.NewRunner(impl))
	}
	cc.pluginsMu.Lock()
	cc.plugins = append(cc.plugins, runners...)
	cc.pluginsMu.Unlock()
	return nil
}

// Plugins returns a snapshot of the registered runners in priority order.
func (cc *Cache[V]) Plugins() []*plugin.Runner {
	cc.pluginsMu.RLock()
	defer cc.pluginsMu.RUnlock()
	out := make([]*plugin.Runner, len(cc.plugins))
	copy(out, cc.plugins)
	return out
}

// Close stops the background sweep and closes every plugin that has a
// Close(context.Context) error method.
func (cc *Cache[V]) Close(ctx context.Context) error {
	cc.sweeper.Stop()
	var errs []error
	for _, r := range cc.Plugins() {
		if cl, ok := r.Unwrap().(interface{ Close(context.Context) error }); ok {
			if err := cl.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("heapstash: close plugin %s: %w", r.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Get returns the live value for id. A miss is (zero, false, nil).
func (cc *Cache[V]) Get(ctx context.Context, id string, s GetSettings) (V, bool, error) {
	var zero V
	if id == "" {
		return zero, false, ErrIdentifierRequired
	}
	v, ok := cc.get(ctx, cc.key(id), s.InternalCacheOnly)
	return v, ok, nil
}

func (cc *Cache[V]) get(ctx context.Context, key string, internalOnly bool) (V, bool) {
	var zero V
	lg := cc.logFor("get")
	now := cc.now()

	if e, ok := cc.primary.Lookup(key); ok {
		if !e.ExpiresAt.Expired(now) {
			return e.Data, true
		}
		cc.hooks.ExpiredOnRead(key, "primary")
		lg.debug("primary entry expired", Fields{"key": key, "expiresAt": int64(e.ExpiresAt)})
	}
	if internalOnly {
		return zero, false
	}

	for _, r := range cc.Plugins() {
		if !r.Implements(plugin.TaskGet) {
			continue
		}
		env, ok, err := r.Get(ctx, key)
		if err != nil {
			cc.hooks.PluginReadFailed(r.Name(), key, err)
			if errors.Is(err, plugin.ErrNotFound) {
				lg.debug("plugin miss", Fields{"key": key, "plugin": r.Name()})
			} else {
				lg.warn("plugin get failed; trying next", Fields{"key": key, "plugin": r.Name(), "err": err})
			}
			continue
		}
		if !ok {
			continue
		}
		if env.ExpiresAt.Expired(now) {
			cc.hooks.ExpiredOnRead(key, r.Name())
			lg.debug("plugin entry expired", Fields{"key": key, "plugin": r.Name()})
			continue
		}
		v, err := cc.codec.Decode(env.Data)
		if err != nil {
			cc.hooks.PluginReadFailed(r.Name(), key, err)
			lg.warn("plugin value decode failed; trying next", Fields{"key": key, "plugin": r.Name(), "err": err})
			continue
		}

		evicted := cc.primary.Insert([]string{key}, store.Entry[V]{Data: v, ExpiresAt: env.ExpiresAt})
		cc.evicted(evicted)
		if err := cc.removeEvicted(ctx, evicted); err != nil {
			lg.warn("evicted keys not removed from plugins", Fields{"keys": evicted, "err": err})
		}
		cc.hooks.Backfilled(r.Name(), key)
		lg.debug("plugin hit; backfilled primary", Fields{"key": key, "plugin": r.Name()})
		return v, true
	}
	return zero, false
}

// Put stores item under id.
func (cc *Cache[V]) Put(ctx context.Context, id string, item V, s PutSettings) error {
	return cc.PutMany(ctx, []string{id}, item, s)
}

// PutMany stores the same item under every id. Each id is subject to its
// own MaxItems eviction check.
func (cc *Cache[V]) PutMany(ctx context.Context, ids []string, item V, s PutSettings) error {
	if len(ids) == 0 {
		return ErrIdentifierRequired
	}
	for _, id := range ids {
		if id == "" {
			return ErrIdentifierRequired
		}
	}
	if isNil(item) {
		return ErrItemRequired
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cc.key(id)
	}
	return cc.put(ctx, keys, item, s)
}

func (cc *Cache[V]) put(ctx context.Context, keys []string, item V, s PutSettings) error {
	if err := checkTTL(s.TTL); err != nil {
		return err
	}
	if err := checkTTL(s.PluginTTL); err != nil {
		return err
	}
	lg := cc.logFor("put")
	now := cc.now()

	ttl := coalesce(s.TTL, cc.defaultTTL)
	exp := plugin.ExpiryIn(now, ttl) // NoExpiry (<0) => never

	// encode before committing so a codec failure leaves the primary store untouched
	var data []byte
	if !s.InternalCacheOnly {
		var err error
		if data, err = cc.codec.Encode(item); err != nil {
			return fmt.Errorf("heapstash: encode %q: %w", strings.Join(keys, ","), err)
		}
	}

	evicted := cc.primary.Insert(keys, store.Entry[V]{Data: item, ExpiresAt: exp})
	cc.evicted(evicted)
	lg.debug("stored in primary", Fields{"keys": keys, "expiresAt": int64(exp)})

	if s.InternalCacheOnly {
		return nil
	}

	if err := cc.removeEvicted(ctx, evicted); err != nil {
		return err
	}

	pluginExp := exp
	switch {
	case s.PluginTTL < 0:
		pluginExp = 0
	case s.PluginTTL > 0:
		pluginExp = plugin.ExpiryIn(now, s.PluginTTL)
	}
	env := plugin.Envelope{Data: data, ExpiresAt: pluginExp}
	if err := cc.fanOut(plugin.TaskPut, strings.Join(keys, ","), func(r *plugin.Runner) error {
		return r.Put(ctx, keys, env)
	}); err != nil {
		return err
	}
	lg.debug("stored in plugins", Fields{"keys": keys, "expiresAt": int64(pluginExp)})
	return nil
}

// Remove deletes id. Missing keys are not an error.
func (cc *Cache[V]) Remove(ctx context.Context, id string, s RemoveSettings) error {
	if id == "" {
		return ErrIdentifierRequired
	}
	key := cc.key(id)
	if cc.primary.Evict(key) {
		cc.logFor("remove").debug("removed from primary", Fields{"key": key})
	}
	if s.InternalCacheOnly {
		return nil
	}
	return cc.fanOut(plugin.TaskRemove, key, func(r *plugin.Runner) error { return r.Remove(ctx, key) })
}

// Clear empties the primary store and, unless InternalCacheOnly, every plugin.
func (cc *Cache[V]) Clear(ctx context.Context, s ClearSettings) error {
	cc.primary.Clear()
	cc.logFor("clear").debug("primary cleared", nil)
	if s.InternalCacheOnly {
		return nil
	}
	return cc.fanOut(plugin.TaskClear, "", func(r *plugin.Runner) error { return r.Clear(ctx) })
}

// Sweep drops expired primary entries now and returns how many were removed.
// Reads never return expired entries whether or not Sweep runs.
func (cc *Cache[V]) Sweep() int {
	removed := cc.primary.SweepExpired(cc.now())
	if len(removed) > 0 {
		cc.logFor("sweep").debug("expired entries removed", Fields{"removed": len(removed)})
	}
	return len(removed)
}

// Len is the number of primary entries, expired ones included.
func (cc *Cache[V]) Len() int { return cc.primary.Len() }

// Keys returns the primary store's keys (prefixed) in eviction order.
func (cc *Cache[V]) Keys() []string { return cc.primary.Keys() }

// fanOut runs task on every plugin that implements it, concurrently. All
// runners are invoked; the first failure is returned.
func (cc *Cache[V]) fanOut(task plugin.Task, key string, fn func(r *plugin.Runner) error) error {
	var g errgroup.Group
	for _, r := range cc.Plugins() {
		if !r.Implements(task) {
			continue
		}
		g.Go(func() error {
			if err := fn(r); err != nil {
				cc.hooks.PluginWriteFailed(r.Name(), task, err)
				return &PluginError{Plugin: r.Name(), Task: task, Key: key, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

// checkTTL accepts 0 (unset), positive durations and NoExpiry.
func checkTTL(d time.Duration) error {
	if d < 0 && d != NoExpiry {
		return fmt.Errorf("%w: %v", ErrInvalidTTL, d)
	}
	return nil
}

// removeEvicted removes keys evicted for MaxItems from every plugin when
// EvictFromPlugins is set. Put and the Get backfill both evict.
func (cc *Cache[V]) removeEvicted(ctx context.Context, keys []string) error {
	if !cc.evictFromPlugins {
		return nil
	}
	for _, k := range keys {
		if err := cc.fanOut(plugin.TaskRemove, k, func(r *plugin.Runner) error { return r.Remove(ctx, k) }); err != nil {
			return err
		}
	}
	return nil
}

func (cc *Cache[V]) evicted(keys []string) {
	for _, k := range keys {
		cc.hooks.Evicted(k)
		cc.logFor("evict").debug("evicted oldest entry", Fields{"key": k})
	}
}

func (cc *Cache[V]) key(id string) string {
	return cc.prefix + id
}
