package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

type redisCoordinator struct {
	client redis.UniversalClient
	prefix string
	poll   time.Duration
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
}

// NewRedis builds a coordinator on an existing client.
func NewRedis(client redis.UniversalClient, prefix string) Coordinator {
	return &redisCoordinator{client: client, prefix: prefix, poll: 30 * time.Millisecond}
}

// DialRedis connects to redisURL and verifies the connection.
func DialRedis(ctx context.Context, redisURL, prefix string) (Coordinator, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis url is empty")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedis(client, prefix), nil
}

func (c *redisCoordinator) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	fullKey := c.prefix + key
	token := uuid.NewString()

	for {
		ok, err := c.client.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx failed: %w", err)
		}
		if ok {
			return &redisLease{client: c.client, key: fullKey, token: token}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire redis lease %s: %w", key, ctx.Err())
		case <-time.After(c.poll):
		}
	}
}

// Renew extends the key only while it still holds this lease's token.
func (l *redisLease) Renew(ctx context.Context, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	renewed, err := l.client.Eval(ctx, renewScript, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("renew redis lease: %w", err)
	}
	if renewed == 0 {
		return fmt.Errorf("renew redis lease %s: %w", l.key, ErrLeaseLost)
	}
	return nil
}

// Release deletes the key only while it still holds this lease's token.
func (l *redisLease) Release(ctx context.Context) error {
	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release redis lease: %w", err)
	}
	return nil
}

// Ping checks the redis connection.
func (c *redisCoordinator) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
