// Package ristretto is an admission-controlled in-process byte tier backed
// by dgraph-io/ristretto.
package ristretto

import (
	"context"
	"errors"
	"fmt"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/heapstash/internal/wire"
	"github.com/unkn0wn-root/heapstash/plugin"
)

// ErrRejected is returned by Put when ristretto's admission policy drops
// the write.
var ErrRejected = errors.New("ristretto plugin: write rejected by admission policy")

type Ristretto struct {
	c   *rc.Cache
	now func() time.Time
	ignoreRejects bool
}

var (
	_ plugin.Getter  = (*Ristretto)(nil)
	_ plugin.Putter  = (*Ristretto)(nil)
	_ plugin.Remover = (*Ristretto)(nil)
	_ plugin.Clearer = (*Ristretto)(nil)
)

type Config struct {
	NumCounters int64
	MaxCost     int64 // cost of an entry is its encoded size in bytes
	BufferItems int64
	Metrics     bool
	// IgnoreRejects treats admission drops as success. Ristretto is a
	// best-effort tier, so most callers want this.
	IgnoreRejects bool
	Clock         func() time.Time
}

func New(cfg Config) (*Ristretto, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto plugin: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Ristretto{c: c, now: now, ignoreRejects: cfg.IgnoreRejects}, nil
}

func (p *Ristretto) Name() string { return "ristretto" }

func (p *Ristretto) Get(_ context.Context, key string) (plugin.Envelope, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return plugin.Envelope{}, plugin.ErrNotFound
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return plugin.Envelope{}, plugin.ErrNotFound
	}
	env, err := wire.Decode(b)
	if err != nil {
		p.c.Del(key)
		return plugin.Envelope{}, fmt.Errorf("ristretto plugin: %q: %w", key, err)
	}
	return env, nil
}

// Put hands the remaining lifetime to ristretto and waits for the write
// buffers to drain so the value is visible to the next Get.
func (p *Ristretto) Put(_ context.Context, keys []string, env plugin.Envelope) error {
	var ttl time.Duration
	if !env.ExpiresAt.IsZero() {
		ttl = env.ExpiresAt.Remaining(p.now())
		if ttl <= 0 {
			for _, k := range keys {
				p.c.Del(k)
			}
			return nil
		}
	}
	b := wire.Encode(env)
	var rejected []string
	for _, k := range keys {
		if !p.c.SetWithTTL(k, b, int64(len(b)), ttl) {
			rejected = append(rejected, k)
		}
	}
	p.c.Wait()
	if len(rejected) > 0 && !p.ignoreRejects {
		return fmt.Errorf("%w: %v", ErrRejected, rejected)
	}
	return nil
}

func (p *Ristretto) Remove(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Ristretto) Clear(context.Context) error {
	p.c.Clear()
	return nil
}

func (p *Ristretto) Close(context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto's counters (nil unless Config.Metrics).
func (p *Ristretto) Metrics() *rc.Metrics { return p.c.Metrics }
