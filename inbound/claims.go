package inbound

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultClaimTTL = 10 * time.Minute

// ClaimStore deduplicates webhook deliveries. Claim returns false when the
// key is already held or already completed within its TTL; Fail releases
// the claim so the provider's retry of the same message is accepted.
type ClaimStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string) error
}

type claimState string

const (
	claimProcessing claimState = "processing"
	claimComplete   claimState = "complete"
)

type claim struct {
	key       string
	state     claimState
	claimID   string
	expiresAt time.Time
}

// MemoryClaimStore is the in-process ClaimStore backing.
type MemoryClaimStore struct {
	Now func() time.Time

	mu      sync.Mutex
	entries map[string]claim
	claims  map[string]string
	nextID  int
}

func NewMemoryClaimStore() *MemoryClaimStore {
	return &MemoryClaimStore{
		Now:     func() time.Time { return time.Now().UTC() },
		entries: map[string]claim{},
		claims:  map[string]string{},
	}
}

func (s *MemoryClaimStore) Claim(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if s == nil {
		return "", false, inboundInternal("inbound: claim store is nil", nil)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, inboundBadInput("inbound: claim key is required", nil)
	}
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(now)

	entry, exists := s.entries[key]
	if exists && now.Before(entry.expiresAt) {
		return "", false, nil
	}
	if exists && entry.claimID != "" {
		delete(s.claims, entry.claimID)
	}

	s.nextID++
	claimID := fmt.Sprintf("claim_%d", s.nextID)
	s.entries[key] = claim{
		key:       key,
		state:     claimProcessing,
		claimID:   claimID,
		expiresAt: now.Add(ttl),
	}
	s.claims[claimID] = key
	return claimID, true, nil
}

func (s *MemoryClaimStore) Complete(_ context.Context, claimID string) error {
	if s == nil {
		return inboundInternal("inbound: claim store is nil", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.claims[claimID]
	if !ok {
		return nil
	}
	entry, exists := s.entries[key]
	if exists && entry.claimID == claimID {
		entry.state = claimComplete
		s.entries[key] = entry
	}
	delete(s.claims, claimID)
	return nil
}

func (s *MemoryClaimStore) Fail(_ context.Context, claimID string) error {
	if s == nil {
		return inboundInternal("inbound: claim store is nil", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.claims[claimID]
	if !ok {
		return nil
	}
	entry, exists := s.entries[key]
	if exists && entry.claimID == claimID && entry.state == claimProcessing {
		delete(s.entries, key)
	}
	delete(s.claims, claimID)
	return nil
}

func (s *MemoryClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MemoryClaimStore) evictExpiredLocked(now time.Time) {
	for key, entry := range s.entries {
		if now.Before(entry.expiresAt) {
			continue
		}
		if entry.claimID != "" {
			delete(s.claims, entry.claimID)
		}
		delete(s.entries, key)
	}
}

var _ ClaimStore = (*MemoryClaimStore)(nil)
