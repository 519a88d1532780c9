package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Lock serializes reservations per showing with a Redis SetNX mutex. The
// TTL caps how long a crashed holder can block a showing; waiters poll
// until the configured timeout.
type Lock struct {
	Client  *redis.Client
	Timeout time.Duration
}

const (
	lockTTL       = 10 * time.Second
	retryInterval = 25 * time.Millisecond
)

func NewLock(client *redis.Client, timeout time.Duration) *Lock {
	return &Lock{Client: client, Timeout: timeout}
}

func lockKey(showingID string) string {
	return "showing_lock:" + showingID
}

// LockShowing acquires the mutex for a showing, retrying until the
// configured timeout. It returns an owner token that must be passed back
// to UnlockShowing.
func (l *Lock) LockShowing(ctx context.Context, showingID string) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.Timeout)

	for {
		ok, err := l.Client.SetNX(ctx, lockKey(showingID), token, lockTTL).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", context.DeadlineExceeded
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// UnlockShowing releases the mutex if this caller still owns it. A lock
// that expired and was re-acquired by someone else is left alone.
func (l *Lock) UnlockShowing(ctx context.Context, showingID, token string) error {
	key := lockKey(showingID)
	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == token {
		return l.Client.Del(ctx, key).Err()
	}
	return nil
}
