// Package sloghooks logs heapstash hook events with log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/heapstash"
	"github.com/unkn0wn-root/heapstash/plugin"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	ReadFailedEvery uint64
	EvictedEvery    uint64
	// LogMisses also logs plugin reads that failed with plugin.ErrNotFound.
	LogMisses bool
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	readFailedCtr atomic.Uint64
	evictedCtr    atomic.Uint64
}

var _ heapstash.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) PluginReadFailed(p, storageKey string, err error) {
	if h.l == nil {
		return
	}
	if errors.Is(err, plugin.ErrNotFound) && !h.opts.LogMisses {
		return
	}
	if !sample(h.opts.ReadFailedEvery, &h.readFailedCtr) {
		return
	}
	h.l.Warn("heapstash.plugin_read_failed",
		"plugin", p,
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) PluginWriteFailed(p string, task plugin.Task, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("heapstash.plugin_write_failed",
		"plugin", p,
		"task", string(task),
		"err", err)
}

func (h *Hooks) Evicted(storageKey string) {
	if h.l == nil || !sample(h.opts.EvictedEvery, &h.evictedCtr) {
		return
	}
	h.l.Debug("heapstash.evicted", "key", h.redact(storageKey))
}

func (h *Hooks) ExpiredOnRead(storageKey, source string) {
	if h.l == nil {
		return
	}
	h.l.Debug("heapstash.expired_on_read",
		"key", h.redact(storageKey),
		"source", source)
}

func (h *Hooks) Backfilled(p, storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Debug("heapstash.backfilled",
		"plugin", p,
		"key", h.redact(storageKey))
}

func (h *Hooks) FetchJoined(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Debug("heapstash.fetch_joined", "key", h.redact(storageKey))
}

func (h *Hooks) FetchRetrieved(storageKey string, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Warn("heapstash.fetch_retrieve_failed",
			"key", h.redact(storageKey),
			"err", err)
		return
	}
	h.l.Debug("heapstash.fetch_retrieved", "key", h.redact(storageKey))
}
