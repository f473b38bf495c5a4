// Package filesystem stores one file per key in a directory of a
// go-billy filesystem.
//
// Keys are escaped into single path elements (see internal/util), so any
// key is safe to use. Files hold wire-framed envelopes and are replaced
// atomically through a temp file and rename.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/unkn0wn-root/heapstash/internal/util"
	"github.com/unkn0wn-root/heapstash/internal/wire"
	"github.com/unkn0wn-root/heapstash/plugin"
)

const tmpPrefix = ".heapstash-tmp-"

var ErrNilFS = errors.New("filesystem plugin: nil filesystem")

type FileSystem struct {
	// memfs is not safe for concurrent mutation; writers are serialized.
	mu  sync.RWMutex
	bfs billy.Filesystem
	dir string
}

var (
	_ plugin.Getter  = (*FileSystem)(nil)
	_ plugin.Putter  = (*FileSystem)(nil)
	_ plugin.Remover = (*FileSystem)(nil)
	_ plugin.Clearer = (*FileSystem)(nil)
)

type Config struct {
	FS  billy.Filesystem
	Dir string // directory inside FS holding the entries; "" => FS root
}

func New(cfg Config) (*FileSystem, error) {
	if cfg.FS == nil {
		return nil, ErrNilFS
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "/"
	}
	if err := cfg.FS.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filesystem plugin: create %s: %w", dir, err)
	}
	return &FileSystem{bfs: cfg.FS, dir: dir}, nil
}

// NewLocal stores entries under dir on the local disk.
func NewLocal(dir string) (*FileSystem, error) {
	return New(Config{FS: osfs.New(dir)})
}

// NewMemory keeps entries in an in-memory filesystem.
func NewMemory() *FileSystem {
	p, _ := New(Config{FS: memfs.New()})
	return p
}

func (p *FileSystem) Name() string { return "filesystem" }

func (p *FileSystem) path(key string) string {
	return path.Join(p.dir, util.FileName(key))
}

func (p *FileSystem) Get(_ context.Context, key string) (plugin.Envelope, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, err := p.bfs.Open(p.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return plugin.Envelope{}, plugin.ErrNotFound
	}
	if err != nil {
		return plugin.Envelope{}, err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return plugin.Envelope{}, err
	}
	env, err := wire.Decode(b)
	if err != nil {
		return plugin.Envelope{}, fmt.Errorf("filesystem plugin: %q: %w", key, err)
	}
	return env, nil
}

func (p *FileSystem) Put(ctx context.Context, keys []string, env plugin.Envelope) error {
	b := wire.Encode(env)
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.write(p.path(k), b); err != nil {
			return err
		}
	}
	return nil
}

func (p *FileSystem) write(name string, b []byte) (err error) {
	tmp, err := p.bfs.TempFile(p.dir, tmpPrefix)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = p.bfs.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return p.bfs.Rename(tmp.Name(), name)
}

func (p *FileSystem) Remove(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.bfs.Remove(p.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every regular file in the directory, stray temp files included.
func (p *FileSystem) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	infos, err := p.bfs.ReadDir(p.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var errs []error
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			continue
		}
		if err := p.bfs.Remove(path.Join(p.dir, info.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Keys lists the stored keys, skipping temp files and names that do not
// decode.
func (p *FileSystem) Keys() ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	infos, err := p.bfs.ReadDir(p.dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || strings.HasPrefix(info.Name(), tmpPrefix) {
			continue
		}
		k, err := util.KeyFromFileName(info.Name())
		if err != nil {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}
