// Package history keeps a bounded per-customer conversation log so the
// responder retains context across buffered turns and human hand-offs.
package history

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/macienko/GemsChatbot/core"
)

const (
	RoleCustomer  = "customer"
	RoleAssistant = "assistant"
	RoleOperator  = "operator"
)

// maxExchanges caps retained entries per customer (20 message pairs).
const maxExchanges = 40

type Exchange struct {
	Role string
	Body string
	At   time.Time
}

type Store struct {
	Now func() time.Time

	mu    sync.Mutex
	items map[string][]Exchange
}

func NewStore() *Store {
	return &Store{
		Now:   func() time.Time { return time.Now().UTC() },
		items: map[string][]Exchange{},
	}
}

// Append records one entry, trimming the oldest entries past the cap.
func (s *Store) Append(customer string, role string, body string) {
	customer = strings.TrimSpace(customer)
	body = strings.TrimSpace(body)
	if customer == "" || body == "" {
		return
	}

	now := s.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.items[customer], Exchange{Role: role, Body: body, At: now})
	if len(entries) > maxExchanges {
		entries = entries[len(entries)-maxExchanges:]
	}
	s.items[customer] = entries
}

// History returns a copy of the customer's retained entries in order.
func (s *Store) History(customer string) []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.items[strings.TrimSpace(customer)]
	out := make([]Exchange, len(entries))
	copy(out, entries)
	return out
}

// Reset clears the customer's log, used when a conversation starts over.
func (s *Store) Reset(customer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, strings.TrimSpace(customer))
}

// AppendHumanExchange records a forwarded message in either direction of a
// hand-off. Empty sides are skipped.
func (s *Store) AppendHumanExchange(_ context.Context, customer string, customerMsg string, operatorReply string) error {
	s.Append(customer, RoleCustomer, customerMsg)
	s.Append(customer, RoleOperator, operatorReply)
	return nil
}

var _ core.HistoryRecorder = (*Store)(nil)
