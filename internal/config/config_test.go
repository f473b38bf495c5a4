package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sample = `
cache:
  id_prefix: app_
  max_items: 100
  ttl: 5m
  codec: msgpack
log:
  level: debug
plugins:
  - bigcache:
      life_window: 1h
  - redis:
      addr: localhost:6379
      namespace: app_
  - dynamodb:
      table: cache
      primary_key: pk
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heapstash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "app_", cfg.Cache.IDPrefix)
	require.Equal(t, 100, cfg.Cache.MaxItems)
	require.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format, "defaults survive partial files")

	require.Len(t, cfg.Plugins, 3)
	require.Equal(t, "bigcache", cfg.Plugins[0].Kind())
	require.Equal(t, time.Hour, cfg.Plugins[0].BigCache.LifeWindow)
	require.Equal(t, "redis", cfg.Plugins[1].Kind())
	require.Equal(t, "pk", cfg.Plugins[2].DynamoDB.PrimaryKey)
}

func TestLoadFromEnv(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, sample))
	require.NoError(t, err)

	t.Setenv("HEAPSTASH_TTL", "30s")
	t.Setenv("HEAPSTASH_REDIS_ADDR", "redis:6380")
	t.Setenv("HEAPSTASH_AWS_REGION", "eu-west-1")
	require.NoError(t, LoadFromEnv(cfg))

	require.Equal(t, 30*time.Second, cfg.Cache.TTL)
	require.Equal(t, "redis:6380", cfg.Plugins[1].Redis.Addr)
	require.Equal(t, "eu-west-1", cfg.Plugins[2].DynamoDB.Region)

	t.Setenv("HEAPSTASH_MAX_ITEMS", "many")
	require.Error(t, LoadFromEnv(cfg))
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"two backends": "plugins:\n  - redis: {addr: x}\n    sql: {dsn: y}\n",
		"no backend":   "plugins:\n  - {}\n",
		"redis addr":   "plugins:\n  - redis: {}\n",
		"codec":        "cache:\n  codec: gob\n",
		"mongo":        "plugins:\n  - mongo: {uri: mongodb://x}\n",
	}
	for name, body := range cases {
		cfg, err := LoadFromFile(writeConfig(t, body))
		require.NoError(t, err, name)
		require.Error(t, cfg.Validate(), name)
	}
	require.NoError(t, DefaultConfig().Validate())
}
