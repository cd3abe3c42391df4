package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SlotLock serializes the validate-then-commit section of booking for one
// (interviewer, slot start) pair. It narrows the race window; the unique
// index on active interview slots is the storage-level backstop.
type SlotLock interface {
	// Acquire returns acquired=false when another booking holds the slot.
	// release is safe to call once, and only when acquired is true.
	Acquire(ctx context.Context, interviewerID string, slotStart time.Time) (release func(), acquired bool, err error)
}

// RedisSlotLock implements SlotLock with SETNX and a TTL so crashed holders
// expire on their own.
type RedisSlotLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSlotLock(client *redis.Client, ttl time.Duration) *RedisSlotLock {
	return &RedisSlotLock{client: client, ttl: ttl}
}

// releaseScript deletes the key only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisSlotLock) Acquire(ctx context.Context, interviewerID string, slotStart time.Time) (func(), bool, error) {
	key := fmt.Sprintf("slotlock:%s:%d", interviewerID, slotStart.Unix())
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Best effort; the TTL reclaims the key if this fails.
		_ = releaseScript.Run(context.Background(), l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

// NoopSlotLock always grants the lock. Used when no redis is configured;
// the unique index still turns true races into a slot_taken rejection.
type NoopSlotLock struct{}

func (NoopSlotLock) Acquire(ctx context.Context, interviewerID string, slotStart time.Time) (func(), bool, error) {
	return func() {}, true, nil
}
