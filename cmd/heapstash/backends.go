package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/unkn0wn-root/heapstash"
	"github.com/unkn0wn-root/heapstash/codec"
	"github.com/unkn0wn-root/heapstash/internal/config"
	hslog "github.com/unkn0wn-root/heapstash/log/zap"
	"github.com/unkn0wn-root/heapstash/plugin/bigcache"
	"github.com/unkn0wn-root/heapstash/plugin/dynamodb"
	"github.com/unkn0wn-root/heapstash/plugin/filesystem"
	"github.com/unkn0wn-root/heapstash/plugin/mongo"
	"github.com/unkn0wn-root/heapstash/plugin/redis"
	"github.com/unkn0wn-root/heapstash/plugin/ristretto"
	sqlplugin "github.com/unkn0wn-root/heapstash/plugin/sql"
)

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func newCodec(name string) (codec.Codec[any], error) {
	switch name {
	case "", "json":
		return codec.JSON[any]{}, nil
	case "msgpack":
		return codec.Msgpack[any]{}, nil
	case "cbor":
		return codec.NewCBOR[any](true)
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// openCache builds the cache and registers every configured plugin in
// order. The returned cache owns the plugins; Close releases them.
func openCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (*heapstash.Cache[any], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cd, err := newCodec(cfg.Cache.Codec)
	if err != nil {
		return nil, err
	}

	plugins := make([]any, 0, len(cfg.Plugins))
	closeAll := func() {
		for _, p := range plugins {
			if c, ok := p.(interface{ Close(context.Context) error }); ok {
				_ = c.Close(ctx)
			}
		}
	}
	for i, pc := range cfg.Plugins {
		p, err := openPlugin(ctx, pc, cfg.Cache.IDPrefix)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("plugins[%d] (%s): %w", i, pc.Kind(), err)
		}
		plugins = append(plugins, p)
	}

	cache, err := heapstash.New(heapstash.Options[any]{
		IDPrefix:         cfg.Cache.IDPrefix,
		MaxItems:         cfg.Cache.MaxItems,
		TTL:              cfg.Cache.TTL,
		SweepInterval:    cfg.Cache.SweepInterval,
		EvictFromPlugins: cfg.Cache.EvictFromPlugins,
		Codec:            cd,
		Logger:           hslog.New(log),
		Plugins:          plugins,
	})
	if err != nil {
		closeAll()
		return nil, err
	}
	return cache, nil
}

func openPlugin(ctx context.Context, pc config.PluginConfig, prefix string) (any, error) {
	switch pc.Kind() {
	case "redis":
		rc := pc.Redis
		ns := rc.Namespace
		if ns == "" {
			ns = prefix
		}
		return redis.New(redis.Config{
			Client: goredis.NewClient(&goredis.Options{
				Addr:     rc.Addr,
				Password: rc.Password,
				DB:       rc.DB,
			}),
			Namespace:   ns,
			CloseClient: true,
		})
	case "filesystem":
		return filesystem.NewLocal(pc.FileSystem.Dir)
	case "sql":
		db, err := gorm.Open(sqlite.Open(pc.SQL.DSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, err
		}
		p, err := sqlplugin.New(sqlplugin.Config{DB: db, Table: pc.SQL.Table, AutoMigrate: true, CloseDB: true})
		if err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, err
		}
		return p, nil
	case "mongo":
		mc := pc.Mongo
		return mongo.Connect(ctx, mc.URI, mc.Database, mc.Collection)
	case "dynamodb":
		dc := pc.DynamoDB
		client, err := dynamodb.NewClient(ctx, dynamodb.ClientConfig{
			Region:          dc.Region,
			Endpoint:        dc.Endpoint,
			AccessKeyID:     dc.AccessKeyID,
			SecretAccessKey: dc.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return dynamodb.New(dynamodb.Config{
			Client:       client,
			TableName:    dc.Table,
			PrimaryKey:   dc.PrimaryKey,
			TTLAttribute: dc.TTLAttribute,
		})
	case "bigcache":
		bcfg := pc.BigCache
		return bigcache.New(ctx, bigcache.Config{
			LifeWindow:         bcfg.LifeWindow,
			HardMaxCacheSizeMB: bcfg.HardMaxCacheSizeMB,
		})
	case "ristretto":
		rc := pc.Ristretto
		maxCost := rc.MaxCost
		if maxCost <= 0 {
			maxCost = 64 << 20
		}
		counters := rc.NumCounters
		if counters <= 0 {
			counters = 1e6
		}
		return ristretto.New(ristretto.Config{
			NumCounters:   counters,
			MaxCost:       maxCost,
			BufferItems:   64,
			IgnoreRejects: true,
		})
	}
	return nil, errors.New("no backend configured")
}
