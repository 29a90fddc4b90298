// Package lock provides short-lived advisory locks keyed by string.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 30 * time.Second

// Lock coordinates exclusive access to a single key.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Locker mints locks for arbitrary keys.
type Locker interface {
	NewLock(key string) (Lock, error)
}

// Store defines the operations used by RedisLock.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	// CompareAndDelete removes key only if it still holds expected, atomically.
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// RedisLock implements Lock using Redis SETNX + TTL.
type RedisLock struct {
	client Store
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client Store, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Key returns the redis key guarded by the lock.
func (l *RedisLock) Key() string {
	return l.key
}

// Acquire tries to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if the owner value still matches. A lock that
// expired and was taken by someone else is left alone.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	if _, err := l.client.CompareAndDelete(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	l.owner = ""
	return nil
}

// RedisLocker mints RedisLocks sharing one client and TTL.
type RedisLocker struct {
	client Store
	ttl    time.Duration
	keyFn  func(key string) string
}

// NewRedisLocker builds a Locker. keyFn namespaces the caller key; nil keeps it as is.
func NewRedisLocker(client Store, ttl time.Duration, keyFn func(key string) string) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for locker")
	}
	if keyFn == nil {
		keyFn = func(key string) string { return key }
	}
	return &RedisLocker{client: client, ttl: ttl, keyFn: keyFn}, nil
}

func (l *RedisLocker) NewLock(key string) (Lock, error) {
	return NewRedisLock(l.client, l.keyFn(key), l.ttl)
}

// LocalLocker serializes keys within a single process. It backs single-node
// runs without Redis and tests.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) NewLock(key string) (Lock, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	return &localLock{parent: l, key: key}, nil
}

// Held reports whether key is currently locked.
func (l *LocalLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

type localLock struct {
	parent *LocalLocker
	key    string
	owned  bool
}

func (l *localLock) Acquire(context.Context) (bool, error) {
	l.parent.mu.Lock()
	defer l.parent.mu.Unlock()
	if _, taken := l.parent.held[l.key]; taken {
		return false, nil
	}
	l.parent.held[l.key] = struct{}{}
	l.owned = true
	return true, nil
}

func (l *localLock) Release(context.Context) error {
	if !l.owned {
		return nil
	}
	l.parent.mu.Lock()
	defer l.parent.mu.Unlock()
	delete(l.parent.held, l.key)
	l.owned = false
	return nil
}
