package buffer

import (
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/macienko/GemsChatbot/core"
)

// Drained is one sender's coalesced buffer, removed from the store.
type Drained struct {
	Sender    string
	Combined  string
	Fragments int
}

type Options struct {
	Now    func() time.Time
	Logger core.Logger
}

// Store accumulates inbound fragments per sender until the sender has been
// idle for the configured threshold. All mutation happens inside one mutex;
// the lock is never held across a collaborator call.
type Store struct {
	now    func() time.Time
	logger core.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	fragments    []string
	lastReceived time.Time
}

func NewStore(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	return &Store{
		now:     now,
		logger:  logger,
		entries: map[string]*entry{},
	}
}

// Enqueue appends a fragment to the sender's entry, creating one if absent,
// and refreshes the last-received timestamp.
func (s *Store) Enqueue(sender string, fragment string) {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return
	}

	now := s.now()
	s.mu.Lock()
	pending, exists := s.entries[sender]
	if !exists {
		pending = &entry{}
		s.entries[sender] = pending
	}
	pending.fragments = append(pending.fragments, fragment)
	pending.lastReceived = now
	total := len(pending.fragments)
	s.mu.Unlock()

	if exists {
		s.logger.Debug("buffered fragment", "sender", sender, "total", total)
	} else {
		s.logger.Debug("new buffer", "sender", sender)
	}
}

// DrainReady atomically removes and returns every entry idle for at least
// idleThreshold, fragments joined with newlines in arrival order. Entries
// still receiving traffic stay untouched. A fragment racing a drain either
// lands in the returned combined text or starts a fresh entry; it is never
// dropped.
func (s *Store) DrainReady(idleThreshold time.Duration) []Drained {
	now := s.now()

	s.mu.Lock()
	var ready []Drained
	for sender, pending := range s.entries {
		if now.Sub(pending.lastReceived) < idleThreshold {
			continue
		}
		ready = append(ready, Drained{
			Sender:    sender,
			Combined:  strings.Join(pending.fragments, "\n"),
			Fragments: len(pending.fragments),
		})
		delete(s.entries, sender)
	}
	s.mu.Unlock()

	return ready
}

// Pending reports how many senders currently hold a live entry.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
