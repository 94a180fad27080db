package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/log"
)

const (
	DefaultRequestsPerMinute = 20
	DefaultBurst             = 5
	DefaultIdleTTL           = 30 * time.Minute
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Memory keeps one token bucket per client in process memory.
type Memory struct {
	mu      sync.Mutex
	clients map[string]*entry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	hasher  domain.Hasher
	now     func() time.Time
}

type Option func(*Memory)

func WithRate(perMinute, burst int) Option {
	return func(m *Memory) {
		if perMinute > 0 {
			m.limit = rate.Limit(float64(perMinute) / 60)
		}
		if burst > 0 {
			m.burst = burst
		}
	}
}

func WithIdleTTL(d time.Duration) Option {
	return func(m *Memory) {
		m.idleTTL = d
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(hasher domain.Hasher, opts ...Option) *Memory {
	m := &Memory{
		clients: make(map[string]*entry),
		limit:   rate.Limit(float64(DefaultRequestsPerMinute) / 60),
		burst:   DefaultBurst,
		idleTTL: DefaultIdleTTL,
		hasher:  hasher,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ domain.RateLimiter = (*Memory)(nil)

func (m *Memory) Allow(clientID string) bool {
	key := clientID
	if m.hasher != nil {
		key = m.hasher.Hash([]byte(clientID))
	}
	now := m.now()

	m.mu.Lock()
	e, ok := m.clients[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.clients[key] = e
	}
	e.lastSeen = now
	m.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Evict drops clients idle for longer than the configured TTL and returns
// how many were removed.
func (m *Memory) Evict() int {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, e := range m.clients {
		if e.lastSeen.Before(cutoff) {
			delete(m.clients, key)
			removed++
		}
	}
	return removed
}

// Len reports how many clients are tracked.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Run evicts idle clients every interval until ctx is done.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Evict(); n > 0 {
				log.WithCtx(ctx).Debug("Evicted idle rate limiter entries", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}
