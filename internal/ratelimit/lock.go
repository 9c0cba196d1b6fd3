package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// compareRelease deletes the key only while the releasing lease still owns
// it, so a lease that outlived its TTL cannot release a successor's lock.
const compareReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var ErrLockUnavailable = errors.New("lock client not configured")

// LockKey builds a namespaced lock key so different concerns cannot collide
// on the shared redis keyspace.
func LockKey(parts ...string) string {
	return "lock:" + strings.Join(parts, ":")
}

// Lease is a held lock. It expires on its own at the TTL; Release hands it
// back early.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.locker == nil {
		return nil
	}
	return l.locker.script.Run(ctx, l.locker.client, []string{l.key}, l.token).Err()
}

// Locker hands out single-holder leases backed by redis SETNX. A nil Locker
// is valid and means locking is not available.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(compareReleaseScript),
	}
}

// Acquire takes the lock in a single attempt. A nil lease with a nil error
// means another holder has it.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, ErrLockUnavailable
	}
	if key == "" {
		return nil, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Lease{locker: l, key: key, token: token}, nil
}

// AwaitRelease blocks until the current holder of key lets go, wait elapses,
// or ctx is done. It reports whether the key was observed free.
func (l *Locker) AwaitRelease(ctx context.Context, key string, wait, poll time.Duration) bool {
	if l == nil || l.client == nil {
		return false
	}
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}

	deadline := time.Now().Add(wait)
	for {
		exists, err := l.client.Exists(ctx, key).Result()
		if err == nil && exists == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(poll):
		}
	}
}
