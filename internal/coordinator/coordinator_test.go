package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExclusive(t *testing.T) {
	c := NewMemory()
	lease, err := c.Acquire(context.Background(), "deploy", time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err = c.Acquire(ctx, "deploy", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = c.Acquire(context.Background(), "other", time.Minute)
	require.NoError(t, err)

	require.NoError(t, lease.Release(context.Background()))
	_, err = c.Acquire(context.Background(), "deploy", time.Minute)
	require.NoError(t, err)
}

func TestMemoryExpiredLeaseIsTakenOver(t *testing.T) {
	c := NewMemory()
	stale, err := c.Acquire(context.Background(), "k", 10*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	fresh, err := c.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, stale.Release(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Acquire(ctx, "k", time.Minute)
	assert.Error(t, err, "stale release must not free the new holder")
	require.NoError(t, fresh.Release(context.Background()))
}

func TestMemoryRenewKeepsLease(t *testing.T) {
	c := NewMemory()
	lease, err := c.Acquire(context.Background(), "k", 40*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(25 * time.Millisecond)
	require.NoError(t, lease.Renew(context.Background(), time.Minute))
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, lease.Release(context.Background()))
}

func TestMemoryRenewAfterTakeover(t *testing.T) {
	c := NewMemory()
	stale, err := c.Acquire(context.Background(), "k", 10*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = c.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, stale.Renew(context.Background(), time.Minute), ErrLeaseLost)
}

func TestRedisLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedis(client, "tool-batch:")
	lease, err := c.Acquire(context.Background(), "deploy", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("tool-batch:deploy"))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, err = c.Acquire(ctx, "deploy", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, lease.Release(context.Background()))
	assert.False(t, mr.Exists("tool-batch:deploy"))
}

func TestRedisReleaseKeepsForeignToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedis(client, "p:")
	lease, err := c.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	require.NoError(t, mr.Set("p:k", "someone-else"))
	require.NoError(t, lease.Release(context.Background()))
	got, err := mr.Get("p:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisRenew(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedis(client, "p:")
	lease, err := c.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	require.NoError(t, lease.Renew(context.Background(), time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("p:k"))
	mr.FastForward(30 * time.Second)
	assert.True(t, mr.Exists("p:k"))

	require.NoError(t, mr.Set("p:k", "someone-else"))
	assert.ErrorIs(t, lease.Renew(context.Background(), time.Minute), ErrLeaseLost)
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := DialRedis(context.Background(), "redis://"+mr.Addr(), "x:")
	require.NoError(t, err)
	_, err = c.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("x:k"))

	pinger, ok := c.(Pinger)
	require.True(t, ok)
	assert.NoError(t, pinger.Ping(context.Background()))
	mr.Close()
	assert.Error(t, pinger.Ping(context.Background()))

	_, ok = NewMemory().(Pinger)
	assert.False(t, ok)

	_, err = DialRedis(context.Background(), "", "x:")
	assert.Error(t, err)
	_, err = DialRedis(context.Background(), "://bad", "x:")
	assert.Error(t, err)
}
