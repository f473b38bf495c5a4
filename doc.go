// Package heapstash implements an in-process cache facade: a bounded,
// TTL-aware primary memory layer in front of zero or more pluggable
// secondary backends (filesystem, Redis, MongoDB, DynamoDB, SQL, ...).
//
// Components:
//   - Primary store: key -> value map plus an insertion-ordered key list,
//     bounded by Options.MaxItems with oldest-first eviction.
//   - Plugins: any value implementing a subset of plugin.Getter, Putter,
//     Remover and Clearer. Missing tasks are no-ops.
//   - Codec[V]: (de)serializes V <-> []byte for plugins.
//
// Reads consult the primary store first, then plugins in registration order
// (first fresh hit wins and is copied into the primary store). Writes commit
// to the primary store, then fan out to every plugin concurrently.
//
// Fetch coalesces concurrent loads of the same key:
//
//	u, err := cache.Fetch(ctx, "42", heapstash.FetchSettings{}, func(ctx context.Context, id string) (User, error) {
//	    return db.LoadUser(ctx, id) // runs once per key, however many callers wait
//	})
package heapstash
