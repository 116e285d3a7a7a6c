package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// EventLedger remembers which webhook events were already processed so a
// redelivered event is acknowledged without being applied twice.
type EventLedger interface {
	// MarkProcessed records eventID and reports whether this call was the first.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	// Forget drops eventID so a failed attempt can be retried on redelivery.
	Forget(ctx context.Context, eventID string) error
}

type RedisEventLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisEventLedger(client *redis.Client, ttl time.Duration) *RedisEventLedger {
	return &RedisEventLedger{
		client: client,
		ttl:    ttl,
	}
}

func (l *RedisEventLedger) getKey(eventID string) string {
	return "idem:webhook:" + eventID
}

func (l *RedisEventLedger) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	return l.client.SetNX(ctx, l.getKey(eventID), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
}

func (l *RedisEventLedger) Forget(ctx context.Context, eventID string) error {
	return l.client.Del(ctx, l.getKey(eventID)).Err()
}

// MemoryEventLedger is the in-process ledger used when no Redis is
// configured. Entries are lost on restart and are not shared between replicas.
type MemoryEventLedger struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, time.Time]
}

func NewMemoryEventLedger(size int, ttl time.Duration) *MemoryEventLedger {
	return &MemoryEventLedger{cache: expirable.NewLRU[string, time.Time](size, nil, ttl)}
}

func (l *MemoryEventLedger) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, seen := l.cache.Get(eventID); seen {
		return false, nil
	}
	l.cache.Add(eventID, time.Now().UTC())
	return true, nil
}

func (l *MemoryEventLedger) Forget(_ context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Remove(eventID)
	return nil
}
