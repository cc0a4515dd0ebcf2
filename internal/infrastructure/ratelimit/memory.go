package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count        int
	resetAt      time.Time
	blockedUntil time.Time
}

// MemoryStore keeps counters in process memory. It is only correct for a
// single instance.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window), now: time.Now}
}

func (s *MemoryStore) Consume(_ context.Context, key string, cfg Config) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if ok && now.Before(w.blockedUntil) {
		return Result{RetryAfter: w.blockedUntil.Sub(now)}, nil
	}
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(cfg.Duration)}
		s.windows[key] = w
		s.sweep(now)
	}

	w.count++
	if w.count > cfg.Points {
		if cfg.BlockDuration > 0 {
			w.blockedUntil = now.Add(cfg.BlockDuration)
			return Result{RetryAfter: cfg.BlockDuration}, nil
		}
		return Result{RetryAfter: w.resetAt.Sub(now)}, nil
	}
	return Result{Allowed: true, Remaining: cfg.Points - w.count, RetryAfter: w.resetAt.Sub(now)}, nil
}

// sweep drops windows that are both expired and unblocked. Called with mu held.
func (s *MemoryStore) sweep(now time.Time) {
	for k, w := range s.windows {
		if !now.Before(w.resetAt) && !now.Before(w.blockedUntil) {
			delete(s.windows, k)
		}
	}
}
