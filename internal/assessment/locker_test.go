package assessment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	l := NewLocalLocker()
	var (
		inside int32
		maxIn  int32
		wg     sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "k")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxIn)
				if n <= m || atomic.CompareAndSwapInt32(&maxIn, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxIn)
	assert.Empty(t, l.locks, "entries are released")
}

func TestLocalLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocalLocker()
	unlockA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // second call is harmless
	assert.Empty(t, l.locks)
}

// fakeLeases mimics the SET NX / GET+DEL / GET+PEXPIRE semantics the
// locker relies on, with real expiry.
type fakeLeases struct {
	mu      sync.Mutex
	tokens  map[string]string
	expires map[string]time.Time
	renewed int
}

func newFakeLeases() *fakeLeases {
	return &fakeLeases{tokens: map[string]string{}, expires: map[string]time.Time{}}
}

func (f *fakeLeases) live(k string) (string, bool) {
	tok, ok := f.tokens[k]
	if ok && time.Now().After(f.expires[k]) {
		delete(f.tokens, k)
		return "", false
	}
	return tok, ok
}

func (f *fakeLeases) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live(key); ok {
		return redis.NewBoolResult(false, nil)
	}
	f.tokens[key] = value.(string)
	f.expires[key] = time.Now().Add(ttl)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLeases) Eval(_ context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := keys[0]
	if tok, ok := f.live(k); !ok || tok != args[0].(string) {
		return redis.NewCmdResult(int64(0), nil)
	}
	switch script {
	case unlockScript:
		delete(f.tokens, k)
	case renewScript:
		f.expires[k] = time.Now().Add(time.Duration(args[1].(int64)) * time.Millisecond)
		f.renewed++
	}
	return redis.NewCmdResult(int64(1), nil)
}

func TestRedisLocker_RenewsLeaseWhileHeld(t *testing.T) {
	leases := newFakeLeases()
	l := newRedisLocker(leases, 60*time.Millisecond)
	l.retry = 5 * time.Millisecond

	unlock, err := l.Lock(context.Background(), "s1")
	require.NoError(t, err)

	// Well past the ttl the first holder still owns the key.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "s1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	leases.mu.Lock()
	assert.Greater(t, leases.renewed, 0)
	leases.mu.Unlock()

	unlock()
	unlock()
	unlock2, err := l.Lock(context.Background(), "s1")
	require.NoError(t, err, "released on unlock")
	unlock2()
}

func TestRedisLocker_ExpiredLeaseCanBeTaken(t *testing.T) {
	leases := newFakeLeases()
	l := newRedisLocker(leases, 50*time.Millisecond)
	l.retry = 5 * time.Millisecond

	// A holder that died: the key exists but nobody renews it.
	leases.tokens["prep:lock:s1"] = "dead"
	leases.expires["prep:lock:s1"] = time.Now().Add(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := l.Lock(ctx, "s1")
	require.NoError(t, err)
	unlock()
}
