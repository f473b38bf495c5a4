// Package dynamodb stores envelopes as DynamoDB items.
//
// Item layout (attribute names configurable where noted):
//
//	<PrimaryKey>   S  cache key (default "id")
//	data           JSON objects/arrays as native attributes, anything else as B
//	<TTLAttribute> N  expiry in epoch seconds for DynamoDB TTL (default "ttl")
//	expiresAtMs    N  exact expiry in unix milliseconds
//	_              M  {"stringified": true} when data holds JSON text in an S
//
// JSON payloads that DynamoDB rejects as native attributes (a
// ValidationException, e.g. nesting deeper than 32 levels) are retried as
// a single string with the "_" marker.
package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/heapstash/plugin"
)

const (
	attrData     = "data"
	attrExpiryMs = "expiresAtMs"
	attrMarker   = "_"

	defaultPrimaryKey   = "id"
	defaultTTLAttribute = "ttl"
	defaultParallelism  = 8
)

var (
	ErrNilClient = errors.New("dynamodb plugin: nil client")
	ErrNoTable   = errors.New("dynamodb plugin: table name required")
)

// API is the subset of *dynamodb.Client the plugin uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

type DynamoDB struct {
	api            API
	table          string
	primaryKey     string
	ttlAttribute   string
	consistentRead bool
	binaryOnly     bool
	parallelism    int
}

var (
	_ plugin.Getter  = (*DynamoDB)(nil)
	_ plugin.Putter  = (*DynamoDB)(nil)
	_ plugin.Remover = (*DynamoDB)(nil)
	_ plugin.Clearer = (*DynamoDB)(nil)
)

type Config struct {
	Client         API
	TableName      string
	PrimaryKey     string // partition key attribute (type S); "" => "id"
	TTLAttribute   string // "" => "ttl"
	ConsistentRead bool
	// BinaryOnly stores every payload as B. Native attributes normalize
	// JSON (key order, whitespace), which only JSON-like codecs tolerate.
	BinaryOnly  bool
	Parallelism int // concurrent writes for multi-key Put and Clear; 0 => 8
}

func New(cfg Config) (*DynamoDB, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	if cfg.TableName == "" {
		return nil, ErrNoTable
	}
	p := &DynamoDB{
		api:            cfg.Client,
		table:          cfg.TableName,
		primaryKey:     cfg.PrimaryKey,
		ttlAttribute:   cfg.TTLAttribute,
		consistentRead: cfg.ConsistentRead,
		binaryOnly:     cfg.BinaryOnly,
		parallelism:    cfg.Parallelism,
	}
	if p.primaryKey == "" {
		p.primaryKey = defaultPrimaryKey
	}
	if p.ttlAttribute == "" {
		p.ttlAttribute = defaultTTLAttribute
	}
	if p.parallelism <= 0 {
		p.parallelism = defaultParallelism
	}
	return p, nil
}

func (p *DynamoDB) Name() string { return "dynamodb" }

func (p *DynamoDB) key(k string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{p.primaryKey: &types.AttributeValueMemberS{Value: k}}
}

func (p *DynamoDB) Get(ctx context.Context, key string) (plugin.Envelope, error) {
	out, err := p.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(p.table),
		Key:            p.key(key),
		ConsistentRead: aws.Bool(p.consistentRead),
	})
	if err != nil {
		return plugin.Envelope{}, err
	}
	if len(out.Item) == 0 {
		return plugin.Envelope{}, plugin.ErrNotFound
	}
	env, err := p.decodeItem(out.Item)
	if err != nil {
		return plugin.Envelope{}, fmt.Errorf("dynamodb plugin: %q: %w", key, err)
	}
	return env, nil
}

func (p *DynamoDB) decodeItem(item map[string]types.AttributeValue) (plugin.Envelope, error) {
	var env plugin.Envelope

	if av, ok := item[attrExpiryMs]; ok {
		var ms int64
		if err := attributevalue.Unmarshal(av, &ms); err != nil {
			return env, err
		}
		env.ExpiresAt = plugin.Expiry(ms)
	} else if av, ok := item[p.ttlAttribute]; ok {
		var secs int64
		if err := attributevalue.Unmarshal(av, &secs); err != nil {
			return env, err
		}
		env.ExpiresAt = plugin.Expiry(secs * 1000)
	}

	data, ok := item[attrData]
	if !ok {
		return env, errors.New("item has no data attribute")
	}
	var marker struct {
		Stringified bool `dynamodbav:"stringified"`
	}
	if av, ok := item[attrMarker]; ok {
		if err := attributevalue.Unmarshal(av, &marker); err != nil {
			return env, err
		}
	}

	if b, ok := data.(*types.AttributeValueMemberB); ok {
		env.Data = b.Value
		return env, nil
	}
	if s, ok := data.(*types.AttributeValueMemberS); ok && marker.Stringified {
		env.Data = []byte(s.Value)
		return env, nil
	}
	b, err := fromAttributeJSON(data)
	if err != nil {
		return env, err
	}
	env.Data = b
	return env, nil
}

// Put writes one item per key, at most Parallelism at a time.
func (p *DynamoDB) Put(ctx context.Context, keys []string, env plugin.Envelope) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for _, k := range keys {
		g.Go(func() error { return p.putOne(ctx, k, env) })
	}
	return g.Wait()
}

func (p *DynamoDB) putOne(ctx context.Context, key string, env plugin.Envelope) error {
	var (
		native types.AttributeValue
		isJSON bool
	)
	if !p.binaryOnly {
		native, isJSON = toAttributeJSON(env.Data)
	}
	if !isJSON {
		return p.putItem(ctx, p.item(key, env, &types.AttributeValueMemberB{Value: env.Data}, false))
	}
	err := p.putItem(ctx, p.item(key, env, native, false))
	if !isValidationError(err) {
		return err
	}
	return p.putItem(ctx, p.item(key, env, &types.AttributeValueMemberS{Value: string(env.Data)}, true))
}

func (p *DynamoDB) item(key string, env plugin.Envelope, data types.AttributeValue, stringified bool) map[string]types.AttributeValue {
	item := p.key(key)
	item[attrData] = data
	if !env.ExpiresAt.IsZero() {
		ms := int64(env.ExpiresAt)
		item[attrExpiryMs] = &types.AttributeValueMemberN{Value: fmt.Sprint(ms)}
		// round up so DynamoDB never deletes an item before its expiry
		item[p.ttlAttribute] = &types.AttributeValueMemberN{Value: fmt.Sprint((ms + 999) / 1000)}
	}
	if stringified {
		marker, _ := attributevalue.MarshalMap(map[string]bool{"stringified": true})
		item[attrMarker] = &types.AttributeValueMemberM{Value: marker}
	}
	return item
}

func (p *DynamoDB) putItem(ctx context.Context, item map[string]types.AttributeValue) error {
	_, err := p.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(p.table),
		Item:      item,
	})
	return err
}

func isValidationError(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationException"
}

func (p *DynamoDB) Remove(ctx context.Context, key string) error {
	_, err := p.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(p.table),
		Key:       p.key(key),
	})
	return err
}

// Clear scans the table for primary keys and deletes every item.
func (p *DynamoDB) Clear(ctx context.Context) error {
	var start map[string]types.AttributeValue
	for {
		out, err := p.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(p.table),
			ProjectionExpression:     aws.String("#k"),
			ExpressionAttributeNames: map[string]string{"#k": p.primaryKey},
			ExclusiveStartKey:        start,
		})
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.parallelism)
		for _, it := range out.Items {
			k, ok := it[p.primaryKey]
			if !ok {
				continue
			}
			g.Go(func() error {
				_, err := p.api.DeleteItem(gctx, &dynamodb.DeleteItemInput{
					TableName: aws.String(p.table),
					Key:       map[string]types.AttributeValue{p.primaryKey: k},
				})
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		start = out.LastEvaluatedKey
	}
}
