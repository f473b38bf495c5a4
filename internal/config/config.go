// Package config loads the heapstash CLI configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheConfig mirrors heapstash.Options.
type CacheConfig struct {
	IDPrefix         string        `yaml:"id_prefix"`
	MaxItems         int           `yaml:"max_items"`
	TTL              time.Duration `yaml:"ttl"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	EvictFromPlugins bool          `yaml:"evict_from_plugins"`
	Codec            string        `yaml:"codec"` // json | msgpack | cbor
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // console | json
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

type FileSystemConfig struct {
	Dir string `yaml:"dir"`
}

type SQLConfig struct {
	DSN   string `yaml:"dsn"` // sqlite DSN, e.g. file:cache.db
	Table string `yaml:"table"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type DynamoDBConfig struct {
	Table           string `yaml:"table"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PrimaryKey      string `yaml:"primary_key"`
	TTLAttribute    string `yaml:"ttl_attribute"`
}

type BigCacheConfig struct {
	LifeWindow         time.Duration `yaml:"life_window"`
	HardMaxCacheSizeMB int           `yaml:"hard_max_cache_size_mb"`
}

type RistrettoConfig struct {
	MaxCost     int64 `yaml:"max_cost"`
	NumCounters int64 `yaml:"num_counters"`
}

// PluginConfig configures one plugin. Exactly one field must be set.
type PluginConfig struct {
	Redis      *RedisConfig      `yaml:"redis,omitempty"`
	FileSystem *FileSystemConfig `yaml:"filesystem,omitempty"`
	SQL        *SQLConfig        `yaml:"sql,omitempty"`
	Mongo      *MongoConfig      `yaml:"mongo,omitempty"`
	DynamoDB   *DynamoDBConfig   `yaml:"dynamodb,omitempty"`
	BigCache   *BigCacheConfig   `yaml:"bigcache,omitempty"`
	Ristretto  *RistrettoConfig  `yaml:"ristretto,omitempty"`
}

// Kind names the configured plugin ("" when none or several are set).
func (p PluginConfig) Kind() string {
	var kinds []string
	if p.Redis != nil {
		kinds = append(kinds, "redis")
	}
	if p.FileSystem != nil {
		kinds = append(kinds, "filesystem")
	}
	if p.SQL != nil {
		kinds = append(kinds, "sql")
	}
	if p.Mongo != nil {
		kinds = append(kinds, "mongo")
	}
	if p.DynamoDB != nil {
		kinds = append(kinds, "dynamodb")
	}
	if p.BigCache != nil {
		kinds = append(kinds, "bigcache")
	}
	if p.Ristretto != nil {
		kinds = append(kinds, "ristretto")
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Config is the central configuration struct. Plugins are registered in
// list order, which is also read priority.
type Config struct {
	Cache   CacheConfig    `yaml:"cache"`
	Log     LogConfig      `yaml:"log"`
	Plugins []PluginConfig `yaml:"plugins"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Codec: "json",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config.
// Backend overrides apply to every plugin entry of that type.
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv("HEAPSTASH_ID_PREFIX"); v != "" {
		cfg.Cache.IDPrefix = v
	}
	if v := os.Getenv("HEAPSTASH_MAX_ITEMS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: HEAPSTASH_MAX_ITEMS: %w", err)
		}
		cfg.Cache.MaxItems = n
	}
	if v := os.Getenv("HEAPSTASH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: HEAPSTASH_TTL: %w", err)
		}
		cfg.Cache.TTL = d
	}
	if v := os.Getenv("HEAPSTASH_CODEC"); v != "" {
		cfg.Cache.Codec = v
	}
	if v := os.Getenv("HEAPSTASH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HEAPSTASH_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	for i := range cfg.Plugins {
		p := &cfg.Plugins[i]
		if p.Redis != nil {
			if v := os.Getenv("HEAPSTASH_REDIS_ADDR"); v != "" {
				p.Redis.Addr = v
			}
			if v := os.Getenv("HEAPSTASH_REDIS_PASSWORD"); v != "" {
				p.Redis.Password = v
			}
		}
		if p.FileSystem != nil {
			if v := os.Getenv("HEAPSTASH_FS_DIR"); v != "" {
				p.FileSystem.Dir = v
			}
		}
		if p.SQL != nil {
			if v := os.Getenv("HEAPSTASH_SQL_DSN"); v != "" {
				p.SQL.DSN = v
			}
		}
		if p.Mongo != nil {
			if v := os.Getenv("HEAPSTASH_MONGO_URI"); v != "" {
				p.Mongo.URI = v
			}
		}
		if p.DynamoDB != nil {
			if v := os.Getenv("HEAPSTASH_DYNAMODB_TABLE"); v != "" {
				p.DynamoDB.Table = v
			}
			if v := os.Getenv("HEAPSTASH_AWS_REGION"); v != "" {
				p.DynamoDB.Region = v
			}
			if v := os.Getenv("HEAPSTASH_AWS_ENDPOINT"); v != "" {
				p.DynamoDB.Endpoint = v
			}
		}
	}
	return nil
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if c.Cache.MaxItems < 0 {
		return errors.New("config: cache.max_items must be >= 0")
	}
	if c.Cache.TTL < 0 {
		return errors.New("config: cache.ttl must be >= 0")
	}
	switch c.Cache.Codec {
	case "", "json", "msgpack", "cbor":
	default:
		return fmt.Errorf("config: unknown codec %q", c.Cache.Codec)
	}
	for i, p := range c.Plugins {
		switch p.Kind() {
		case "":
			return fmt.Errorf("config: plugins[%d] must set exactly one backend", i)
		case "redis":
			if p.Redis.Addr == "" {
				return fmt.Errorf("config: plugins[%d].redis.addr is required", i)
			}
		case "filesystem":
			if p.FileSystem.Dir == "" {
				return fmt.Errorf("config: plugins[%d].filesystem.dir is required", i)
			}
		case "sql":
			if p.SQL.DSN == "" {
				return fmt.Errorf("config: plugins[%d].sql.dsn is required", i)
			}
		case "mongo":
			if p.Mongo.URI == "" || p.Mongo.Database == "" || p.Mongo.Collection == "" {
				return fmt.Errorf("config: plugins[%d].mongo needs uri, database and collection", i)
			}
		case "dynamodb":
			if p.DynamoDB.Table == "" {
				return fmt.Errorf("config: plugins[%d].dynamodb.table is required", i)
			}
		}
	}
	return nil
}
