package lease

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisLease struct {
	client *redis.Client
}

var redisReleaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLease(addr, password string, db int) (Lease, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisLease{client: client}, nil
}

func (r *redisLease) Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := r.client.SetNX(ctx, leaseKey(name), holder, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *redisLease) Release(ctx context.Context, name, holder string) error {
	result, err := redisReleaseScript.Run(ctx, r.client, []string{leaseKey(name)}, holder).Result()
	if err != nil {
		return err
	}
	deleted, ok := result.(int64)
	if !ok {
		return errors.New("unexpected redis lease response")
	}
	if deleted == 0 {
		return ErrNotHeld
	}
	return nil
}

func (r *redisLease) Close() error {
	return r.client.Close()
}

func leaseKey(name string) string {
	return "docflow:lease:" + name
}
