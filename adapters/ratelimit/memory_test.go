package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/satriahrh/cocoa-fruit/gateway/adapters/hasher"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestAllowBurstThenDeny(t *testing.T) {
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMemory(nil, WithRate(60, 3), WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		assert.True(t, m.Allow("10.0.0.1"), "request %d", i)
	}
	assert.False(t, m.Allow("10.0.0.1"))

	// 60/min refills one token per second
	clock.Advance(time.Second)
	assert.True(t, m.Allow("10.0.0.1"))
	assert.False(t, m.Allow("10.0.0.1"))
}

func TestClientsAreIsolated(t *testing.T) {
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMemory(nil, WithRate(1, 1), WithClock(clock.Now))

	assert.True(t, m.Allow("a"))
	assert.False(t, m.Allow("a"))
	assert.True(t, m.Allow("b"))
	assert.Equal(t, 2, m.Len())
}

func TestKeysAreHashed(t *testing.T) {
	m := NewMemory(hasher.New([]byte("salt")))
	m.Allow("192.168.1.1")

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotContains(t, m.clients, "192.168.1.1")
	assert.Contains(t, m.clients, hasher.New([]byte("salt")).Hash([]byte("192.168.1.1")))
}

func TestEvictIdleClients(t *testing.T) {
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMemory(nil, WithIdleTTL(time.Minute), WithClock(clock.Now))

	m.Allow("old")
	clock.Advance(45 * time.Second)
	m.Allow("fresh")
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, m.Evict())
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 0, m.Evict())
}

func TestRunStopsWithContext(t *testing.T) {
	m := NewMemory(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDefaults(t *testing.T) {
	m := NewMemory(nil)
	for i := 0; i < DefaultBurst; i++ {
		assert.True(t, m.Allow("c"))
	}
	assert.False(t, m.Allow("c"))
}
