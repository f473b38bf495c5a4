// Package redis stores heapstash envelopes in Redis.
//
// Envelopes are framed with internal/wire and written with SET PX, so Redis
// expires entries on its own. Clear either flushes the database or, when a
// Namespace is configured, deletes only keys under that namespace.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/heapstash/internal/wire"
	"github.com/unkn0wn-root/heapstash/plugin"
)

var ErrNilClient = errors.New("redis plugin: nil client")

const defaultScanCount = 256

type Redis struct {
	rdb         goredis.UniversalClient
	namespace   string
	scanCount   int64
	closeClient bool
	now         func() time.Time
}

var (
	_ plugin.Getter  = (*Redis)(nil)
	_ plugin.Putter  = (*Redis)(nil)
	_ plugin.Remover = (*Redis)(nil)
	_ plugin.Clearer = (*Redis)(nil)
)

type Config struct {
	Client goredis.UniversalClient
	// Namespace limits Clear to keys starting with it (usually the cache's
	// IDPrefix). Empty => Clear runs FLUSHDB.
	Namespace   string
	ScanCount   int64 // SCAN COUNT hint for namespaced Clear; 0 => 256
	CloseClient bool  // set true only if this plugin exclusively owns the client
	Clock       func() time.Time
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	r := &Redis{
		rdb:         cfg.Client,
		namespace:   cfg.Namespace,
		scanCount:   cfg.ScanCount,
		closeClient: cfg.CloseClient,
		now:         cfg.Clock,
	}
	if r.scanCount <= 0 {
		r.scanCount = defaultScanCount
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

func (p *Redis) Name() string { return "redis" }

func (p *Redis) Get(ctx context.Context, key string) (plugin.Envelope, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return plugin.Envelope{}, plugin.ErrNotFound
	}
	if err != nil {
		return plugin.Envelope{}, err // transport/server error
	}
	env, err := wire.Decode(b)
	if err != nil {
		return plugin.Envelope{}, fmt.Errorf("redis plugin: %q: %w", key, err)
	}
	return env, nil
}

// Put writes every key in one pipeline. An envelope that is already expired
// deletes the keys instead of writing them.
func (p *Redis) Put(ctx context.Context, keys []string, env plugin.Envelope) error {
	var ttl time.Duration
	if !env.ExpiresAt.IsZero() {
		ttl = env.ExpiresAt.Remaining(p.now())
		if ttl < time.Millisecond {
			return p.rdb.Del(ctx, keys...).Err()
		}
	}
	b := wire.Encode(env)
	_, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, k := range keys {
			pipe.Set(ctx, k, b, ttl) // ttl 0 => no expiry
		}
		return nil
	})
	return err
}

func (p *Redis) Remove(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

func (p *Redis) Clear(ctx context.Context) error {
	if p.namespace == "" {
		return p.rdb.FlushDB(ctx).Err()
	}
	var cursor uint64
	for {
		keys, next, err := p.rdb.Scan(ctx, cursor, matchPrefix(p.namespace), p.scanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := p.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// matchPrefix builds a SCAN MATCH pattern for keys starting with prefix,
// escaping the glob metacharacters * ? [ ] and \.
func matchPrefix(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix) + 2)
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('*')
	return b.String()
}

// Close releases the underlying redis client only when this plugin owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
