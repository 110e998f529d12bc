package cache

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Redis is a Cache backed by a Redis server. An OOM reply under the server's
// maxmemory policy is reported as ErrQuotaExceeded.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis cache. Keys are namespaced with prefix.
func NewRedis(addr, password string, db int, prefix string) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		prefix: prefix,
	}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return eris.Wrap(r.client.Ping(ctx).Err(), "cache: redis ping")
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: redis get %s", key)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	err := r.client.Set(ctx, r.prefix+key, value, 0).Err()
	if err != nil && strings.HasPrefix(err.Error(), "OOM") {
		return eris.Wrapf(ErrQuotaExceeded, "set %s: %v", key, err)
	}
	return eris.Wrapf(err, "cache: redis set %s", key)
}

func (r *Redis) Close() error {
	return r.client.Close()
}
