// Package cache keeps short-lived lookups in Redis. The order service uses it
// for geocoded store-to-address coordinates, so repeated checkouts to one
// address do not hit the geocoder again.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss reports that the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

type Store interface {
	Lookup(ctx context.Context, key string) (string, error)
	Remember(ctx context.Context, key, value string, ttl time.Duration) error
	Key(parts ...string) string
}

// Redis is a Store namespaced by a key prefix, normally the service name.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(addr, prefix string) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		}),
		prefix: prefix,
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Lookup(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return val, err
}

func (r *Redis) Remember(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Key joins parts under the prefix: "<prefix>:geocode:<address>".
func (r *Redis) Key(parts ...string) string {
	return r.prefix + ":" + strings.Join(parts, ":")
}
