package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultIdleTTL      = 15 * time.Minute
	defaultCleanupEvery = 2 * time.Minute
)

// Store hands out one token bucket per client key and forgets keys that
// have been idle for longer than the TTL.
type Store struct {
	mu           sync.Mutex
	entries      map[string]*entry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type Option func(*Store)

func WithIdleTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.idleTTL = d
		}
	}
}

func WithCleanupEvery(d time.Duration) Option {
	return func(s *Store) { s.cleanupEvery = d }
}

// NewStore returns a store whose buckets refill at rps tokens per second and
// hold at most burst tokens. A burst below 1 is raised to 1.
func NewStore(rps float64, burst int, opts ...Option) *Store {
	if burst < 1 {
		burst = 1
	}
	s := &Store{
		entries:      make(map[string]*entry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      defaultIdleTTL,
		cleanupEvery: defaultCleanupEvery,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) RPS() float64 { return float64(s.rps) }
func (s *Store) Burst() int   { return s.burst }

// Allow takes one token from key's bucket. When the bucket is empty it
// reports how long until the next token is available.
func (s *Store) Allow(key string) (bool, time.Duration) {
	now := s.now()
	lim := s.limiter(key, now)

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (s *Store) limiter(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.lastSeen = now
		return e.lim
	}
	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &entry{lim: lim, lastSeen: now}
	return lim
}

// Len reports how many client keys are tracked.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup drops every key idle for longer than the TTL.
func (s *Store) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.entries {
		if e.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor runs Cleanup periodically until ctx is done.
func (s *Store) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
