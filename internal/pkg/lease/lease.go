// Package lease provides a best-effort mutual exclusion lease across replicas.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock grants a named lease to one holder at a time.
type Lock interface {
	// Acquire reports whether the lease was obtained. The returned release
	// function is safe to call even when acquisition failed.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, func(), error)
}

// releaseScript deletes the key only if it still holds our token, so a lease
// that expired and was taken by another replica is left alone.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

type redisLock struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisLock returns a Lock backed by SET NX PX. A nil client yields a lock
// that is always granted, for single-replica deployments.
func NewRedisLock(rdb *redis.Client) Lock {
	if rdb == nil {
		return Local{}
	}
	return &redisLock{rdb: rdb, prefix: "lease:"}
}

func (l *redisLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, func(), error) {
	key := l.prefix + name
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, func() {}, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	if !ok {
		return false, func() {}, nil
	}

	release := func() {
		// Use a fresh context so a cancelled caller still frees the lease.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.rdb, []string{key}, token).Err()
	}
	return true, release, nil
}

// Local always grants the lease.
type Local struct{}

func (Local) Acquire(context.Context, string, time.Duration) (bool, func(), error) {
	return true, func() {}, nil
}

// NewRedisClient connects and pings Redis. An empty addr returns nil.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
