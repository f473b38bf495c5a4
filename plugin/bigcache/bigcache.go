// Package bigcache is an in-process byte tier backed by allegro/bigcache.
//
// BigCache only knows a global LifeWindow, so per-entry expiry travels
// inside the wire envelope and is enforced on read.
package bigcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/heapstash/internal/wire"
	"github.com/unkn0wn-root/heapstash/plugin"
)

type BigCache struct {
	c   *bc.BigCache
	now func() time.Time
}

var (
	_ plugin.Getter  = (*BigCache)(nil)
	_ plugin.Putter  = (*BigCache)(nil)
	_ plugin.Remover = (*BigCache)(nil)
	_ plugin.Clearer = (*BigCache)(nil)
)

type Config struct {
	LifeWindow         time.Duration // upper bound on any entry's life; 0 => 10m
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
	Clock              func() time.Time
}

func New(ctx context.Context, cfg Config) (*BigCache, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 10 * time.Minute
	}
	conf := bc.DefaultConfig(life)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &BigCache{c: c, now: now}, nil
}

func (p *BigCache) Name() string { return "bigcache" }

func (p *BigCache) Get(_ context.Context, key string) (plugin.Envelope, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return plugin.Envelope{}, plugin.ErrNotFound
	}
	if err != nil {
		return plugin.Envelope{}, err
	}
	env, err := wire.Decode(b)
	if err != nil {
		return plugin.Envelope{}, fmt.Errorf("bigcache plugin: %q: %w", key, err)
	}
	if env.ExpiresAt.Expired(p.now()) {
		_ = p.c.Delete(key)
		return plugin.Envelope{}, plugin.ErrNotFound
	}
	return env, nil
}

func (p *BigCache) Put(_ context.Context, keys []string, env plugin.Envelope) error {
	b := wire.Encode(env)
	for _, k := range keys {
		if err := p.c.Set(k, b); err != nil {
			return err
		}
	}
	return nil
}

func (p *BigCache) Remove(_ context.Context, key string) error {
	if err := p.c.Delete(key); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
		return err
	}
	return nil
}

func (p *BigCache) Clear(context.Context) error {
	return p.c.Reset()
}

func (p *BigCache) Len() int { return p.c.Len() }

func (p *BigCache) Close(context.Context) error {
	return p.c.Close()
}
