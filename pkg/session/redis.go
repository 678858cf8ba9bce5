package session

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sptgo/gameserver/pkg/mongoid"
)

// RedisStore keeps activity in a Redis sorted set scored by unix
// milliseconds. It's suitable for multi-server deployments.
type RedisStore struct {
	client redis.Cmdable
	key    string
	closed atomic.Bool
}

// RedisStoreOption configures RedisStore behavior.
type RedisStoreOption func(*redisStoreConfig)

type redisStoreConfig struct {
	key string
}

// WithRedisKey sets the sorted set key.
// Default: "spt:session:activity".
func WithRedisKey(key string) RedisStoreOption {
	return func(c *redisStoreConfig) {
		c.key = key
	}
}

// NewRedisStore creates a Redis-backed activity store.
func NewRedisStore(client redis.Cmdable, opts ...RedisStoreOption) *RedisStore {
	cfg := &redisStoreConfig{
		key: "spt:session:activity",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &RedisStore{client: client, key: cfg.key}
}

// SetActivity implements Store. ZADD GT keeps the newest score.
func (r *RedisStore) SetActivity(ctx context.Context, id mongoid.ID, at time.Time) error {
	if r.closed.Load() {
		return ErrStoreClosed
	}
	return r.client.ZAddArgs(ctx, r.key, redis.ZAddArgs{
		GT: true,
		Members: []redis.Z{{
			Score:  float64(at.UnixMilli()),
			Member: id.String(),
		}},
	}).Err()
}

// GetActivity implements Store.
func (r *RedisStore) GetActivity(ctx context.Context, id mongoid.ID) (time.Time, bool, error) {
	if r.closed.Load() {
		return time.Time{}, false, ErrStoreClosed
	}
	score, err := r.client.ZScore(ctx, r.key, id.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return time.UnixMilli(int64(score)), true, nil
}

// ActiveSince implements Store.
func (r *RedisStore) ActiveSince(ctx context.Context, since time.Time) ([]mongoid.ID, error) {
	if r.closed.Load() {
		return nil, ErrStoreClosed
	}
	members, err := r.client.ZRangeByScore(ctx, r.key, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]mongoid.ID, 0, len(members))
	for _, m := range members {
		id, err := mongoid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Prune implements Store.
func (r *RedisStore) Prune(ctx context.Context, before time.Time) error {
	if r.closed.Load() {
		return ErrStoreClosed
	}
	return r.client.ZRemRangeByScore(ctx, r.key, "-inf", "("+strconv.FormatInt(before.UnixMilli(), 10)).Err()
}

// Close implements Store. The client is owned by the caller and left open.
func (r *RedisStore) Close() error {
	r.closed.Store(true)
	return nil
}
