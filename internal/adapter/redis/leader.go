package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrNotLeader is returned by Renew when the lease belongs to someone else or
// has expired.
var ErrNotLeader = errors.New("leader lease not held")

// renewScript extends the lease only while it is still ours.
var renewScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the lease only while it is still ours.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LeaderElector grants a lease on a key to at most one instance at a time.
// A leader that stops renewing loses the lease after ttl.
type LeaderElector struct {
	rdb        *goredis.Client
	instanceID string
	key        string
	ttl        time.Duration
}

// NewLeaderElector creates an elector for key. instanceID must be unique per
// process (hostname-pid works).
func NewLeaderElector(rdb *goredis.Client, key, instanceID string, ttl time.Duration) *LeaderElector {
	return &LeaderElector{rdb: rdb, instanceID: instanceID, key: key, ttl: ttl}
}

// TryAcquire reports whether this instance holds the lease afterwards. A
// current leader renews instead of failing.
func (l *LeaderElector) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.instanceID, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire leader lease: %w", err)
	}
	if ok {
		return true, nil
	}

	err = l.Renew(ctx)
	if errors.Is(err, ErrNotLeader) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Renew extends the lease. It returns ErrNotLeader if the lease is gone.
func (l *LeaderElector) Renew(ctx context.Context) error {
	n, err := renewScript.Run(ctx, l.rdb, []string{l.key}, l.instanceID, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to renew leader lease: %w", err)
	}
	if n == 0 {
		return ErrNotLeader
	}
	return nil
}

// Release gives the lease up if this instance holds it.
func (l *LeaderElector) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to release leader lease: %w", err)
	}
	return nil
}
