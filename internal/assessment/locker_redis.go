package assessment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// leaseClient is the part of *redis.Client the locker uses.
type leaseClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLocker is a lease lock shared by every gateway replica. The lease
// is renewed every ttl/3 while held; a holder that dies releases the key
// when the lease runs out.
//
// If renewal fails (Redis unreachable for longer than ttl) another replica
// can take the lock while the first operation is still running. The
// version check in UpdateSession rejects the stale session write, but an
// answer upsert made in that window is not fenced.
type RedisLocker struct {
	client leaseClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return newRedisLocker(client, ttl)
}

func newRedisLocker(client leaseClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: client, prefix: "prep:lock:", ttl: ttl, retry: 25 * time.Millisecond}
}

// unlockScript deletes the key only when we still own it.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`

// renewScript extends the lease only when we still own it.
const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := l.prefix + key
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.renew(k, token, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// Release on a fresh context so a cancelled request still unlocks.
			c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = l.client.Eval(c, unlockScript, []string{k}, token).Err()
		})
	}, nil
}

// renew keeps the lease alive until stop is closed or the lease is lost.
func (l *RedisLocker) renew(k, token string, stop <-chan struct{}) {
	t := time.NewTicker(l.ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			n, err := l.client.Eval(c, renewScript, []string{k}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil || n == 0 {
				log.Warn().Err(err).Str("key", k).Msg("lock lease lost")
				return
			}
		}
	}
}
