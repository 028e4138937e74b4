package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Redis release must compare the token so a replica never deletes a lock
// another replica re-acquired after TTL expiry.
const monthLockRelease = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var errLockerUnavailable = errors.New("scheduler_locker_unavailable")

// Locker keeps multiple scheduler replicas from racing the same monthly
// job. Keys are scoped per job and month. The database guards stay the
// correctness mechanism; the lock only avoids wasted work.
type Locker struct {
	client  *redis.Client
	release *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:  client,
		release: redis.NewScript(monthLockRelease),
	}
}

func monthLockKey(job, month string) string {
	return fmt.Sprintf("upline:scheduler:%s:%s", job, month)
}

// TryLock claims the job for the month. The returned token identifies this
// holder and is required to release.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errLockerUnavailable
	}
	if key == "" || ttl <= 0 {
		return "", false, errLockerUnavailable
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release drops the claim when token still owns it. Safe to call after
// expiry; a stale token is a no-op.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.release.Run(ctx, l.client, []string{key}, token).Err()
}
