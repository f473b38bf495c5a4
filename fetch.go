package heapstash

import (
	"context"
)

// Fetch returns the cached value for id, loading it with retrieve on a miss.
//
// Concurrent Fetch calls for the same id share one load: retrieve (and the
// plugin lookup that precedes it) runs once, and every caller receives the
// same value or the same error. The load runs detached from the caller's
// cancellation; ctx only bounds how long this caller waits for it.
//
// A value found in a plugin is stored in the primary store only; it is not
// written back to plugins.
func (cc *Cache[V]) Fetch(ctx context.Context, id string, s FetchSettings, retrieve RetrieveFunc[V]) (V, error) {
	var zero V
	if id == "" {
		return zero, ErrIdentifierRequired
	}
	if retrieve == nil {
		return zero, ErrRetrieveFunctionRequired
	}
	if err := checkTTL(s.TTL); err != nil {
		return zero, err
	}
	if err := checkTTL(s.PluginTTL); err != nil {
		return zero, err
	}
	key := cc.key(id)
	lg := cc.logFor("fetch")

	if v, ok := cc.get(ctx, key, true); ok {
		lg.debug("served from primary", Fields{"key": key})
		return v, nil
	}

	leader := false
	flightCtx := context.WithoutCancel(ctx)
	ch := cc.flights.DoChan(key, func() (any, error) {
		leader = true
		return cc.load(flightCtx, id, key, s, retrieve)
	})

	select {
	case res := <-ch:
		if !leader {
			cc.hooks.FetchJoined(key)
			lg.debug("joined in-flight load", Fields{"key": key, "err": res.Err})
		}
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// load runs once per in-flight key. The value is committed to the primary
// store before the flight ends, so a caller that misses the flight finds it
// on the recheck below instead of loading again.
func (cc *Cache[V]) load(ctx context.Context, id, key string, s FetchSettings, retrieve RetrieveFunc[V]) (any, error) {
	lg := cc.logFor("fetch")

	if v, ok := cc.get(ctx, key, true); ok {
		return v, nil
	}

	var (
		v     V
		found bool
	)
	if !s.InternalCacheOnly {
		v, found = cc.get(ctx, key, false)
	}

	put := s
	if found {
		lg.debug("second-chance get hit", Fields{"key": key})
		put.InternalCacheOnly = true
	} else {
		lg.debug("running retrieve function", Fields{"key": key})
		var err error
		v, err = retrieve(ctx, id)
		cc.hooks.FetchRetrieved(key, err)
		if err != nil {
			lg.debug("retrieve function failed", Fields{"key": key, "err": err})
			return nil, err
		}
	}

	if isNil(v) {
		return nil, ErrItemRequired
	}
	if err := cc.put(ctx, []string{key}, v, put); err != nil {
		return nil, err
	}
	return v, nil
}
