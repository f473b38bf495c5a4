// Package sql stores envelopes in a relational table through gorm.
//
// Any gorm dialector works; the tests use the pure-Go glebarez/sqlite.
// Rows keep the expiry as unix milliseconds so expired rows can be purged
// with a single indexed delete.
package sql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/unkn0wn-root/heapstash/plugin"
)

const DefaultTable = "heapstash_entries"

var ErrNilDB = errors.New("sql plugin: nil db")

// Entry is one stored envelope.
type Entry struct {
	Key       string `gorm:"column:cache_key;primaryKey;size:512"`
	Data      []byte `gorm:"column:data;not null"`
	ExpiresAt int64  `gorm:"column:expires_at;not null;index"`
}

type SQL struct {
	db      *gorm.DB
	table   string
	closeDB bool
}

var (
	_ plugin.Getter  = (*SQL)(nil)
	_ plugin.Putter  = (*SQL)(nil)
	_ plugin.Remover = (*SQL)(nil)
	_ plugin.Clearer = (*SQL)(nil)
)

type Config struct {
	DB          *gorm.DB
	Table       string // "" => heapstash_entries
	AutoMigrate bool   // create/upgrade the table on New
	CloseDB     bool   // set true only if this plugin exclusively owns DB
}

func New(cfg Config) (*SQL, error) {
	if cfg.DB == nil {
		return nil, ErrNilDB
	}
	p := &SQL{db: cfg.DB, table: cfg.Table, closeDB: cfg.CloseDB}
	if p.table == "" {
		p.table = DefaultTable
	}
	if cfg.AutoMigrate {
		if err := p.db.Table(p.table).AutoMigrate(&Entry{}); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *SQL) Name() string { return "sql" }

func (p *SQL) q(ctx context.Context) *gorm.DB {
	return p.db.WithContext(ctx).Table(p.table)
}

func (p *SQL) Get(ctx context.Context, key string) (plugin.Envelope, error) {
	var e Entry
	err := p.q(ctx).Where("cache_key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return plugin.Envelope{}, plugin.ErrNotFound
	}
	if err != nil {
		return plugin.Envelope{}, err
	}
	return plugin.Envelope{Data: e.Data, ExpiresAt: plugin.Expiry(e.ExpiresAt)}, nil
}

// Put upserts one row per key in a single statement.
func (p *SQL) Put(ctx context.Context, keys []string, env plugin.Envelope) error {
	rows := make([]Entry, len(keys))
	for i, k := range keys {
		rows[i] = Entry{Key: k, Data: env.Data, ExpiresAt: int64(env.ExpiresAt)}
	}
	return p.q(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at"}),
	}).Create(&rows).Error
}

func (p *SQL) Remove(ctx context.Context, key string) error {
	return p.q(ctx).Where("cache_key = ?", key).Delete(&Entry{}).Error
}

func (p *SQL) Clear(ctx context.Context) error {
	return p.q(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Entry{}).Error
}

// PurgeExpired deletes rows whose expiry is at or before now and returns
// how many were removed.
func (p *SQL) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := p.q(ctx).Where("expires_at <> 0 AND expires_at <= ?", now.UnixMilli()).Delete(&Entry{})
	return res.RowsAffected, res.Error
}

// Close closes the connection pool only when the plugin owns it.
func (p *SQL) Close(context.Context) error {
	if !p.closeDB {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
