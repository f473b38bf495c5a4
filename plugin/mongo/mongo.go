// Package mongo stores envelopes as MongoDB documents:
//
//	{key: <string>, value: <binary>, expiresAtMs: <int64>, expireAt: <date>}
//
// expireAt is only set for expiring entries; with the TTL index created by
// EnsureTTLIndex MongoDB deletes those documents on its own (the TTL monitor
// runs about once a minute, so reads still check expiresAtMs).
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unkn0wn-root/heapstash/plugin"
)

const (
	fieldKey      = "key"
	fieldValue    = "value"
	fieldExpiryMs = "expiresAtMs"
	fieldExpireAt = "expireAt"
)

var ErrNilCollection = errors.New("mongo plugin: nil collection")

// Collection is the subset of *mongo.Collection the plugin uses.
type Collection interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

var _ Collection = (*mongo.Collection)(nil)

type document struct {
	Key      string `bson:"key"`
	Value    []byte `bson:"value"`
	ExpiryMs int64  `bson:"expiresAtMs,omitempty"`
}

type Mongo struct {
	coll   Collection
	client *mongo.Client // set when the plugin owns the connection
}

var (
	_ plugin.Getter  = (*Mongo)(nil)
	_ plugin.Putter  = (*Mongo)(nil)
	_ plugin.Remover = (*Mongo)(nil)
	_ plugin.Clearer = (*Mongo)(nil)
)

type Config struct {
	Collection Collection
}

func New(cfg Config) (*Mongo, error) {
	if cfg.Collection == nil {
		return nil, ErrNilCollection
	}
	return &Mongo{coll: cfg.Collection}, nil
}

// Connect dials uri, ensures the TTL index on db.collection and returns a
// plugin that disconnects the client on Close.
func Connect(ctx context.Context, uri, db, collection string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	coll := client.Database(db).Collection(collection)
	if err := EnsureTTLIndex(ctx, coll); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &Mongo{coll: coll, client: client}, nil
}

// EnsureTTLIndex creates the unique key index and the expireAt TTL index
// (expireAfterSeconds: 0). Both calls are idempotent.
func EnsureTTLIndex(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: fieldKey, Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: fieldExpireAt, Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo plugin: create indexes: %w", err)
	}
	return nil
}

func (p *Mongo) Name() string { return "mongo" }

func (p *Mongo) Get(ctx context.Context, key string) (plugin.Envelope, error) {
	var doc document
	err := p.coll.FindOne(ctx, bson.M{fieldKey: key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return plugin.Envelope{}, plugin.ErrNotFound
	}
	if err != nil {
		return plugin.Envelope{}, err
	}
	return plugin.Envelope{Data: doc.Value, ExpiresAt: plugin.Expiry(doc.ExpiryMs)}, nil
}

// Put upserts every key in one unordered bulk write.
func (p *Mongo) Put(ctx context.Context, keys []string, env plugin.Envelope) error {
	update := upsertDoc(env)
	models := make([]mongo.WriteModel, len(keys))
	for i, k := range keys {
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(bson.M{fieldKey: k}).
			SetUpdate(update).
			SetUpsert(true)
	}
	_, err := p.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}

func upsertDoc(env plugin.Envelope) bson.M {
	if env.ExpiresAt.IsZero() {
		return bson.M{
			"$set":   bson.M{fieldValue: env.Data},
			"$unset": bson.M{fieldExpiryMs: "", fieldExpireAt: ""},
		}
	}
	return bson.M{
		"$set": bson.M{
			fieldValue:    env.Data,
			fieldExpiryMs: int64(env.ExpiresAt),
			fieldExpireAt: env.ExpiresAt.Time(),
		},
	}
}

func (p *Mongo) Remove(ctx context.Context, key string) error {
	_, err := p.coll.DeleteOne(ctx, bson.M{fieldKey: key})
	return err
}

func (p *Mongo) Clear(ctx context.Context) error {
	_, err := p.coll.DeleteMany(ctx, bson.M{})
	return err
}

func (p *Mongo) Close(ctx context.Context) error {
	if p.client == nil {
		return nil
	}
	return p.client.Disconnect(ctx)
}
