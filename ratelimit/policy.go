// Package ratelimit enforces the per-customer daily message allowance
// consulted once per drained buffer, before the responder is invoked.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/macienko/GemsChatbot/core"
)

// CounterStore tracks one counter per sender with a midnight rollover.
// Implementations: MemoryCounterStore here, the bun-backed store in
// store/sql.
type CounterStore interface {
	// CheckAndIncrement bumps the sender's counter for the day containing
	// now and reports whether the message is still within limit. The
	// counter resets automatically when the date changes.
	CheckAndIncrement(ctx context.Context, senderID string, limit int, now time.Time) (bool, error)

	// Reset zeroes the sender's counter, reporting whether it existed.
	Reset(ctx context.Context, senderID string) (bool, error)
}

// DailyPolicy applies the configured daily limit. A zero or negative limit
// disables enforcement entirely.
type DailyPolicy struct {
	Store CounterStore
	Limit int
	Now   func() time.Time
}

func NewDailyPolicy(store CounterStore, limit int) *DailyPolicy {
	return &DailyPolicy{
		Store: store,
		Limit: limit,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

func (p *DailyPolicy) Allow(ctx context.Context, senderID string) (bool, error) {
	if p == nil || p.Store == nil || p.Limit <= 0 {
		return true, nil
	}
	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return false, core.BadInputError("ratelimit: sender id is required", nil)
	}
	return p.Store.CheckAndIncrement(ctx, senderID, p.Limit, p.now())
}

func (p *DailyPolicy) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now()
}

type memoryCounter struct {
	count int
	day   string
}

// MemoryCounterStore is the volatile counter backing.
type MemoryCounterStore struct {
	mu    sync.Mutex
	items map[string]memoryCounter
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{items: map[string]memoryCounter{}}
}

func (s *MemoryCounterStore) CheckAndIncrement(_ context.Context, senderID string, limit int, now time.Time) (bool, error) {
	day := now.UTC().Format(time.DateOnly)

	s.mu.Lock()
	defer s.mu.Unlock()

	counter := s.items[senderID]
	if counter.day != day {
		counter = memoryCounter{day: day}
	}
	if counter.count >= limit {
		s.items[senderID] = counter
		return false, nil
	}
	counter.count++
	s.items[senderID] = counter
	return true, nil
}

func (s *MemoryCounterStore) Reset(_ context.Context, senderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counter, ok := s.items[senderID]
	if !ok {
		return false, nil
	}
	counter.count = 0
	s.items[senderID] = counter
	return true, nil
}

var (
	_ core.RateLimiter = (*DailyPolicy)(nil)
	_ CounterStore     = (*MemoryCounterStore)(nil)
)
