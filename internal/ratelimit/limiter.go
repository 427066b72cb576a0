package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/internal/observability"
)

// Counter increments key atomically and sets its expiry to ttl on first use.
// It returns the new count.
type Counter interface {
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Limiter is a fixed window counter per actor. A limit of zero disables it.
type Limiter struct {
	counter Counter
	limit   int64
	window  time.Duration
	now     func() time.Time
}

func NewLimiter(counter Counter, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		counter: counter,
		limit:   int64(limit),
		window:  window,
		now:     time.Now,
	}
}

// Allow counts one call for actor. It returns *domain.RateLimitedError once the
// window's limit is exceeded.
func (l *Limiter) Allow(ctx context.Context, actor string) error {
	if l == nil || l.limit <= 0 {
		return nil
	}

	now := l.now()
	bucket := now.Truncate(l.window)
	// The key lives until its bucket closes, which is also when the next call
	// can succeed.
	remaining := bucket.Add(l.window).Sub(now)
	key := fmt.Sprintf("ratelimit:%s:%d", actor, bucket.Unix())

	count, err := l.counter.IncrWindow(ctx, key, remaining)
	if err != nil {
		return fmt.Errorf("rate limit counter: %w", err)
	}

	if count > l.limit {
		observability.RateLimited.Inc()
		return &domain.RateLimitedError{
			Actor:             actor,
			RetryAfterSeconds: int(math.Ceil(remaining.Seconds())),
		}
	}

	return nil
}

// MemoryCounter is a process local Counter.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryCounter) IncrWindow(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evict(now)

	e, ok := m.entries[key]
	if !ok {
		e = &memoryEntry{expiresAt: now.Add(ttl)}
		m.entries[key] = e
	}
	e.count++

	return e.count, nil
}

func (m *MemoryCounter) evict(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}
