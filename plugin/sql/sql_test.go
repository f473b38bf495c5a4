package sql

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/unkn0wn-root/heapstash/plugin"
)

func newTestSQL(t *testing.T) (*SQL, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every new connection would get its own in-memory database
	sqlDB.SetMaxOpenConns(1)

	p, err := New(Config{DB: db, AutoMigrate: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return p, db
}

func TestCloseLeavesSharedDBOpen(t *testing.T) {
	p, db := newTestSQL(t)
	require.NoError(t, p.Close(context.Background()))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Ping())
}

func TestCloseDBClosesOwnedPool(t *testing.T) {
	_, db := newTestSQL(t)
	p, err := New(Config{DB: db, CloseDB: true})
	require.NoError(t, err)
	require.NoError(t, p.Close(context.Background()))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.Error(t, sqlDB.Ping())
}

func TestNewRejectsNilDB(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrNilDB)
}

func TestPutGetUpsert(t *testing.T) {
	ctx := context.Background()
	p, db := newTestSQL(t)

	first := plugin.Envelope{Data: []byte("one"), ExpiresAt: 1_700_000_000_000}
	require.NoError(t, p.Put(ctx, []string{"a", "b"}, first))

	got, err := p.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, first, got)

	second := plugin.Envelope{Data: []byte("two")}
	require.NoError(t, p.Put(ctx, []string{"a"}, second))
	got, err = p.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, second, got)

	var n int64
	require.NoError(t, db.Table(DefaultTable).Count(&n).Error)
	require.Equal(t, int64(2), n)
}

func TestMissRemoveClear(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestSQL(t)

	_, err := p.Get(ctx, "missing")
	require.ErrorIs(t, err, plugin.ErrNotFound)

	require.NoError(t, p.Put(ctx, []string{"a", "b"}, plugin.Envelope{Data: []byte("v")}))
	require.NoError(t, p.Remove(ctx, "a"))
	require.NoError(t, p.Remove(ctx, "a"))
	_, err = p.Get(ctx, "a")
	require.ErrorIs(t, err, plugin.ErrNotFound)

	require.NoError(t, p.Clear(ctx))
	_, err = p.Get(ctx, "b")
	require.ErrorIs(t, err, plugin.ErrNotFound)
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestSQL(t)
	now := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, p.Put(ctx, []string{"old"}, plugin.Envelope{Data: []byte("v"), ExpiresAt: plugin.ExpiryAt(now)}))
	require.NoError(t, p.Put(ctx, []string{"fresh"}, plugin.Envelope{Data: []byte("v"), ExpiresAt: plugin.ExpiryIn(now, time.Hour)}))
	require.NoError(t, p.Put(ctx, []string{"forever"}, plugin.Envelope{Data: []byte("v")}))

	n, err := p.PurgeExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = p.Get(ctx, "old")
	require.ErrorIs(t, err, plugin.ErrNotFound)
	_, err = p.Get(ctx, "forever")
	require.NoError(t, err)
}
