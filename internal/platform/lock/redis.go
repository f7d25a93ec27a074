package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker backed by SET NX with per-holder tokens, for multi-instance deployments.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedis constructs a redis locker. ttl bounds how long a crashed holder blocks others.
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{client: client, prefix: "toolroom:lock:", ttl: ttl, retry: 20 * time.Millisecond}
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	token := uuid.NewString()
	held := make([]string, 0, len(keys))
	release := func() {
		// release must outlive a cancelled request context
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			_ = releaseScript.Run(rctx, r.client, []string{held[i]}, token).Err()
		}
	}
	for _, k := range keys {
		name := r.prefix + k
		if err := r.obtain(ctx, name, token); err != nil {
			release()
			return nil, fmt.Errorf("lock: acquire %s: %w", k, err)
		}
		held = append(held, name)
	}
	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (r *Redis) obtain(ctx context.Context, name, token string) error {
	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		err := r.client.SetArgs(ctx, name, token, redis.SetArgs{Mode: "NX", TTL: r.ttl}).Err()
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
