package security

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/peerpoints/peerpoints/internal/database"
)

// ErrRateLimited is returned when a key has exhausted its window quota.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitResult reports the outcome of a limiter check, including the
// quota information surfaced to clients in response headers.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetTime time.Time
}

// RateLimitStore is the injectable counter store behind the limiter.
// The in-memory store is the default; the Redis store shares counters
// across processes.
type RateLimitStore interface {
	// Incr increments the counter for key, creating a fresh window of the
	// given length when none is active, and returns the new count and the
	// window's reset time.
	Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error)
	// Decr un-counts one request, used to exempt successful completions.
	Decr(ctx context.Context, key string) error
}

// Limiter is a fixed-window rate limiter over a RateLimitStore.
type Limiter struct {
	store   RateLimitStore
	enabled bool
}

// NewLimiter creates a Limiter. A disabled limiter allows everything.
func NewLimiter(store RateLimitStore, enabled bool) *Limiter {
	return &Limiter{store: store, enabled: enabled}
}

// Check counts a request against key's window and reports whether it is
// allowed. Exactly maxRequests calls succeed per window; the next fails
// until the window elapses and the entry is recreated.
func (l *Limiter) Check(ctx context.Context, key string, maxRequests int, window time.Duration) (RateLimitResult, error) {
	if !l.enabled {
		return RateLimitResult{Allowed: true, Limit: maxRequests, Remaining: maxRequests}, nil
	}

	count, reset, err := l.store.Incr(ctx, key, window)
	if err != nil {
		return RateLimitResult{}, err
	}

	remaining := maxRequests - count
	if remaining < 0 {
		remaining = 0
	}

	return RateLimitResult{
		Allowed:   count <= maxRequests,
		Limit:     maxRequests,
		Remaining: remaining,
		ResetTime: reset,
	}, nil
}

// Forgive un-counts a previously counted request. Used with skip-successful
// limits so legitimate usage is not penalized while repeated failures still
// throttle.
func (l *Limiter) Forgive(ctx context.Context, key string) {
	if !l.enabled {
		return
	}
	l.store.Decr(ctx, key)
}

type rateLimitEntry struct {
	count int
	reset time.Time
}

// MemoryRateLimitStore is the in-process counter store. Stale entries are
// swept probabilistically on access (~1% of calls) to bound memory;
// best-effort, not guaranteed-timely.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	entries map[string]*rateLimitEntry
}

// NewMemoryRateLimitStore creates an empty in-memory counter store.
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{entries: make(map[string]*rateLimitEntry)}
}

func (s *MemoryRateLimitStore) Incr(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if rand.Intn(100) == 0 {
		for k, e := range s.entries {
			if now.After(e.reset) {
				delete(s.entries, k)
			}
		}
	}

	e, ok := s.entries[key]
	if !ok || now.After(e.reset) {
		e = &rateLimitEntry{reset: now.Add(window)}
		s.entries[key] = e
	}
	e.count++

	return e.count, e.reset, nil
}

func (s *MemoryRateLimitStore) Decr(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && e.count > 0 {
		e.count--
	}
	return nil
}

// RedisRateLimitStore shares counters across processes via INCR with a
// window-length TTL. Cleanup is deterministic: keys expire on their own.
type RedisRateLimitStore struct {
	rdb *database.Redis
}

// NewRedisRateLimitStore creates a Redis-backed counter store.
func NewRedisRateLimitStore(rdb *database.Redis) *RedisRateLimitStore {
	return &RedisRateLimitStore{rdb: rdb}
}

func (s *RedisRateLimitStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	rkey := "ratelimit:" + key

	count, err := s.rdb.Incr(ctx, rkey).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		s.rdb.Expire(ctx, rkey, window)
	}

	ttl, err := s.rdb.TTL(ctx, rkey).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}

	return int(count), time.Now().Add(ttl), nil
}

func (s *RedisRateLimitStore) Decr(ctx context.Context, key string) error {
	return s.rdb.Decr(ctx, "ratelimit:"+key).Err()
}
