package redis

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/alpian-ledger/payment-service/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// Lua script for safe lock release (only the holder can release)
	releaseLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	// Lua script for lease extension
	extendLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// LockManager hands out leased locks on retry-work resources. At most one
// live, unexpired lock exists per resource id; a crashed holder's lock
// expires with its lease.
type LockManager struct {
	client *redis.Client
	holder string
}

// NewLockManager creates a lock manager identifying this service instance.
func NewLockManager(client *redis.Client, holder string) *LockManager {
	if holder == "" {
		holder = uuid.New().String()
	}
	return &LockManager{client: client, holder: holder}
}

// Acquire claims the resource for ttl. Contention is an expected signal, not
// a failure: it returns ErrLockUnavailable when another holder has the lock.
func (m *LockManager) Acquire(ctx context.Context, resourceID string, ttl time.Duration) (*Lock, error) {
	l := &Lock{
		client: m.client,
		key:    fmt.Sprintf("retrylock:%s", resourceID),
		value:  fmt.Sprintf("%s:%s", m.holder, uuid.New().String()),
		ttl:    ttl,
	}

	ok, err := m.client.SetNX(ctx, l.key, l.value, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", resourceID, err)
	}
	if !ok {
		return nil, domainErrors.ErrLockUnavailable
	}
	return l, nil
}

// Lock is a held lease on one resource.
type Lock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// Extend pushes the lease expiry out by ttl.
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := extendLockScript.Run(ctx, l.client, []string{l.key}, l.value, ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("extend lock: %w", err)
	}
	if val, ok := result.(int64); !ok || val == 0 {
		return domainErrors.ErrLockNotHeld
	}
	return nil
}

// Release frees the lock if this holder still owns it. Releasing an expired
// lock is not an error; the lease already did the work.
func (l *Lock) Release(ctx context.Context) error {
	_, err := releaseLockScript.Run(ctx, l.client, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
