// Package coordinator serialises runs of the same named batch through
// expiring leases, in process or across replicas via Redis.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultTTL applies when Acquire is called without a ttl.
const DefaultTTL = 2 * time.Minute

// ErrLeaseLost is returned by Renew once the lease expired and another
// holder took the key.
var ErrLeaseLost = errors.New("lease lost")

// Lease is held until released or expired.
type Lease interface {
	// Renew pushes the expiry to ttl from now.
	Renew(ctx context.Context, ttl time.Duration) error
	Release(context.Context) error
}

// Coordinator hands out exclusive leases per key.
type Coordinator interface {
	// Acquire blocks until the lease for key is free or ctx ends.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Pinger is implemented by coordinators backed by a remote store.
type Pinger interface {
	Ping(context.Context) error
}

type memoryCoordinator struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	poll  time.Duration
}

type memoryLock struct {
	expires time.Time
	owner   *memoryLease
}

type memoryLease struct {
	key string
	c   *memoryCoordinator
}

// NewMemory returns an in-process coordinator.
func NewMemory() Coordinator {
	return &memoryCoordinator{locks: make(map[string]memoryLock), poll: 20 * time.Millisecond}
}

func (c *memoryCoordinator) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	for {
		c.mu.Lock()
		lock, exists := c.locks[key]
		now := time.Now()
		if !exists || now.After(lock.expires) {
			lease := &memoryLease{key: key, c: c}
			c.locks[key] = memoryLock{expires: now.Add(ttl), owner: lease}
			c.mu.Unlock()
			return lease, nil
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lease %s: %w", key, ctx.Err())
		case <-time.After(c.poll):
		}
	}
}

func (l *memoryLease) Renew(_ context.Context, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	lock, ok := l.c.locks[l.key]
	now := time.Now()
	if !ok || lock.owner != l || now.After(lock.expires) {
		return fmt.Errorf("renew lease %s: %w", l.key, ErrLeaseLost)
	}
	lock.expires = now.Add(ttl)
	l.c.locks[l.key] = lock
	return nil
}

// Release frees the key unless the lease expired and was taken over.
func (l *memoryLease) Release(_ context.Context) error {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	if lock, ok := l.c.locks[l.key]; ok && lock.owner == l {
		delete(l.c.locks, l.key)
	}
	return nil
}
