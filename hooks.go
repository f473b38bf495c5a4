package heapstash

import "github.com/unkn0wn-root/heapstash/plugin"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// A plugin get failed or returned an unusable envelope; the read moved on.
	// Misses (plugin.ErrNotFound) are reported too.
	PluginReadFailed(plugin, storageKey string, err error)

	// A plugin put/remove/clear failed; the error was returned to the caller.
	PluginWriteFailed(plugin string, task plugin.Task, err error)

	// A key was dropped from the primary store to honor MaxItems.
	Evicted(storageKey string)

	// A read found an expired entry. source is "primary" or a plugin name.
	ExpiredOnRead(storageKey, source string)

	// A plugin hit was copied into the primary store.
	Backfilled(plugin, storageKey string)

	// A Fetch caller joined an in-flight load instead of starting one.
	FetchJoined(storageKey string)

	// A Fetch load finished (err == nil on success).
	FetchRetrieved(storageKey string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) PluginReadFailed(string, string, error)       {}
func (NopHooks) PluginWriteFailed(string, plugin.Task, error) {}
func (NopHooks) Evicted(string)                               {}
func (NopHooks) ExpiredOnRead(string, string)                 {}
func (NopHooks) Backfilled(string, string)                    {}
func (NopHooks) FetchJoined(string)                           {}
func (NopHooks) FetchRetrieved(string, error)                 {}
