package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements the few commands the locker issues.
type fakeRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	keys map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: make(map[string]string)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.keys[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[keys[0]] == args[0].(string) {
		delete(f.keys, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLockerAcquireRelease(t *testing.T) {
	client := newFakeRedis()
	locker := NewRedisLocker(client, RedisConfig{Prefix: "lock:", WaitTimeout: 30 * time.Millisecond, RetryInterval: 5 * time.Millisecond})

	release, err := locker.Acquire(context.Background(), "agency")
	require.NoError(t, err)
	assert.Contains(t, client.keys, "lock:agency")

	_, err = locker.Acquire(context.Background(), "agency")
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, release(context.Background()))
	assert.NotContains(t, client.keys, "lock:agency")

	again, err := locker.Acquire(context.Background(), "agency")
	require.NoError(t, err)
	require.NoError(t, again(context.Background()))
}

func TestRedisLockerReleaseKeepsForeignToken(t *testing.T) {
	client := newFakeRedis()
	locker := NewRedisLocker(client, RedisConfig{Prefix: "lock:"})

	release, err := locker.Acquire(context.Background(), "agency")
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key.
	client.mu.Lock()
	client.keys["lock:agency"] = "someone-else"
	client.mu.Unlock()

	require.NoError(t, release(context.Background()))
	assert.Equal(t, "someone-else", client.keys["lock:agency"])
}

func TestRedisLockerWaitsForHolder(t *testing.T) {
	client := newFakeRedis()
	locker := NewRedisLocker(client, RedisConfig{WaitTimeout: time.Second, RetryInterval: 2 * time.Millisecond})

	release, err := locker.Acquire(context.Background(), "agency")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = release(context.Background())
	}()

	second, err := locker.Acquire(context.Background(), "agency")
	require.NoError(t, err)
	require.NoError(t, second(context.Background()))
}
