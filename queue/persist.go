package queue

import (
	"context"
	"errors"
	"time"

	"github.com/dailyyoga/offline/cache"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// EncodeSnapshot returns the persisted form of ops.
func EncodeSnapshot(ops []Operation) ([]byte, error) {
	return msgpack.Marshal(ops)
}

// DecodeSnapshot parses a persisted snapshot; empty data is an empty queue.
func DecodeSnapshot(data []byte) ([]Operation, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var ops []Operation
	if err := msgpack.Unmarshal(data, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

// cachePersister keeps the snapshot in the cache store under a long TTL.
type cachePersister struct {
	store cache.Store
	ttl   time.Duration
}

// NewCachePersister stores the queue snapshot in store, expiring after ttl.
// A non-positive ttl uses the default snapshot TTL. The snapshot key is
// reserved in store so prefix invalidation and Clear leave it alone.
func NewCachePersister(store cache.Store, ttl time.Duration) Persister {
	if ttl <= 0 {
		ttl = DefaultConfig().SnapshotTTL
	}
	return &cachePersister{store: store, ttl: ttl}
}

func (p *cachePersister) Save(_ context.Context, key string, data []byte) error {
	p.store.Reserve(key)
	p.store.Set(key, data, p.ttl)
	return nil
}

func (p *cachePersister) Load(_ context.Context, key string) ([]byte, bool, error) {
	p.store.Reserve(key)
	data, ok := cache.Get[[]byte](p.store, key)
	return data, ok, nil
}

// redisPersister keeps the snapshot in redis so it survives restarts.
type redisPersister struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisPersister stores the queue snapshot in redis. A zero ttl keeps the
// snapshot until it is overwritten.
func NewRedisPersister(client redis.UniversalClient, ttl time.Duration) Persister {
	return &redisPersister{client: client, ttl: ttl}
}

func (p *redisPersister) Save(ctx context.Context, key string, data []byte) error {
	return p.client.Set(ctx, key, data, p.ttl).Err()
}

func (p *redisPersister) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := p.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}
