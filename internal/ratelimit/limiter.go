package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/traceline/payment-service/internal/domain/errors"
)

// shardCount spreads identities over independent locks so unrelated callers
// do not serialize behind one global mutex.
const shardCount = 16

// Limiter is a sliding-window request counter keyed by caller identity.
// Allow records the current timestamp against the identity's window, evicts
// entries older than now-window, and fails closed once the in-window count
// reaches the budget. Eviction happens both amortized on access and via the
// background sweeper, so identities that stop calling do not leak memory.
type Limiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time
	shards      [shardCount]*shard
}

type shard struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithNow overrides the time source, for deterministic tests.
func WithNow(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a limiter enforcing maxRequests per window per
// identity.
func NewLimiter(maxRequests int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &shard{windows: make(map[string][]time.Time)}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records one request attempt for identity. Rejected attempts are not
// recorded; the budget counts admitted requests only.
func (l *Limiter) Allow(identity string) error {
	s := l.shardFor(identity)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	entries := s.windows[identity]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.maxRequests {
		s.windows[identity] = kept
		return domainErrors.NewRateLimitExceededError(identity)
	}

	s.windows[identity] = append(kept, now)
	return nil
}

// Sweep reclaims window state for identities whose every entry has aged out.
func (l *Limiter) Sweep() {
	cutoff := l.now().Add(-l.window)
	for _, s := range l.shards {
		s.mu.Lock()
		for identity, entries := range s.windows {
			idle := true
			for _, ts := range entries {
				if ts.After(cutoff) {
					idle = false
					break
				}
			}
			if idle {
				delete(s.windows, identity)
			}
		}
		s.mu.Unlock()
	}
}

// StartSweeper runs Sweep on the given interval until ctx is cancelled.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = l.window
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-ctx.Done():
				logger.Debug("Rate limiter sweeper stopped")
				return
			}
		}
	}()
}

// tracked returns whether identity currently holds window state. Test hook.
func (l *Limiter) tracked(identity string) bool {
	s := l.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.windows[identity]
	return ok
}

func (l *Limiter) shardFor(identity string) *shard {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return l.shards[h.Sum32()%shardCount]
}
