package handoff

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/macienko/GemsChatbot/core"
)

// MemoryRegistry is the volatile backing: claims live in process memory and
// do not survive a restart.
type MemoryRegistry struct {
	Now func() time.Time

	mu      sync.Mutex
	records map[string]core.HandoffRecord
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		Now:     func() time.Time { return time.Now().UTC() },
		records: map[string]core.HandoffRecord{},
	}
}

func (r *MemoryRegistry) TakeOver(_ context.Context, operator string, customer string) (bool, error) {
	operator = strings.TrimSpace(operator)
	customer = strings.TrimSpace(customer)
	if operator == "" || customer == "" {
		return false, core.BadInputError("handoff: operator and customer are required", nil)
	}

	now := r.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[customer]; ok && existing.Operator != operator {
		return false, nil
	}
	record := core.HandoffRecord{
		Customer:     customer,
		Operator:     operator,
		StartedAt:    now,
		LastActivity: now,
	}
	r.records[customer] = record
	return true, nil
}

func (r *MemoryRegistry) Release(_ context.Context, customer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, strings.TrimSpace(customer))
	return nil
}

func (r *MemoryRegistry) GetActive(_ context.Context, customer string) (core.HandoffRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[strings.TrimSpace(customer)]
	return record, ok, nil
}

func (r *MemoryRegistry) GetOwnerHandoff(_ context.Context, operator string) (string, bool, error) {
	operator = strings.TrimSpace(operator)
	r.mu.Lock()
	defer r.mu.Unlock()
	for customer, record := range r.records {
		if record.Operator == operator {
			return customer, true, nil
		}
	}
	return "", false, nil
}

func (r *MemoryRegistry) TouchActivity(_ context.Context, customer string) error {
	now := r.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	customer = strings.TrimSpace(customer)
	if record, ok := r.records[customer]; ok {
		record.LastActivity = now
		r.records[customer] = record
	}
	return nil
}

func (r *MemoryRegistry) ListActive(_ context.Context) ([]core.HandoffRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.HandoffRecord, 0, len(r.records))
	for _, record := range r.records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Customer < out[j].Customer })
	return out, nil
}

func (r *MemoryRegistry) CleanupExpired(_ context.Context, timeout time.Duration) ([]core.HandoffRecord, error) {
	now := r.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []core.HandoffRecord
	for customer, record := range r.records {
		if now.Sub(record.LastActivity) >= timeout {
			expired = append(expired, record)
			delete(r.records, customer)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].Customer < expired[j].Customer })
	return expired, nil
}

var _ Registry = (*MemoryRegistry)(nil)
