// Package promhook counts heapstash hook events with Prometheus counters.
package promhook

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/heapstash"
	"github.com/unkn0wn-root/heapstash/plugin"
)

type Hooks struct {
	pluginReads   *prometheus.CounterVec
	pluginWrites  *prometheus.CounterVec
	evicted       prometheus.Counter
	expiredOnRead *prometheus.CounterVec
	backfilled    *prometheus.CounterVec
	fetchJoined   prometheus.Counter
	fetchLoads    *prometheus.CounterVec
}

var _ heapstash.Hooks = (*Hooks)(nil)

// New registers the counters on reg under namespace (e.g. "app_cache").
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	h := &Hooks{
		pluginReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plugin_read_failures_total",
				Help:      "Plugin get calls that missed or failed, by plugin and result",
			},
			[]string{"plugin", "result"},
		),
		pluginWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plugin_write_failures_total",
				Help:      "Failed plugin put/remove/clear calls",
			},
			[]string{"plugin", "task"},
		),
		evicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evictions_total",
				Help:      "Primary store entries evicted to honor MaxItems",
			},
		),
		expiredOnRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "expired_on_read_total",
				Help:      "Expired entries found by reads, by source",
			},
			[]string{"source"},
		),
		backfilled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backfills_total",
				Help:      "Plugin hits copied into the primary store",
			},
			[]string{"plugin"},
		),
		fetchJoined: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_joined_total",
				Help:      "Fetch calls that joined an in-flight load",
			},
		),
		fetchLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_retrievals_total",
				Help:      "Retrieve function calls made by Fetch, by status",
			},
			[]string{"status"},
		),
	}

	for _, c := range []prometheus.Collector{
		h.pluginReads, h.pluginWrites, h.evicted, h.expiredOnRead,
		h.backfilled, h.fetchJoined, h.fetchLoads,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) PluginReadFailed(p, _ string, err error) {
	result := "error"
	if errors.Is(err, plugin.ErrNotFound) {
		result = "miss"
	}
	h.pluginReads.WithLabelValues(p, result).Inc()
}

func (h *Hooks) PluginWriteFailed(p string, task plugin.Task, _ error) {
	h.pluginWrites.WithLabelValues(p, string(task)).Inc()
}

func (h *Hooks) Evicted(string) { h.evicted.Inc() }

func (h *Hooks) ExpiredOnRead(_, source string) { h.expiredOnRead.WithLabelValues(source).Inc() }

func (h *Hooks) Backfilled(p, _ string) { h.backfilled.WithLabelValues(p).Inc() }

func (h *Hooks) FetchJoined(string) { h.fetchJoined.Inc() }

func (h *Hooks) FetchRetrieved(_ string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	h.fetchLoads.WithLabelValues(status).Inc()
}
