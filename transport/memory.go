package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/macienko/GemsChatbot/core"
)

// SentMessage is one message captured by the memory sender.
type SentMessage struct {
	Recipient string
	Body      string
	MediaURL  string
}

// MemorySender is the in-process transport backing, used by tests and by
// local runs that have no provider credentials. Every message is captured
// and reports as delivered unless a status override is set.
type MemorySender struct {
	mu       sync.Mutex
	sent     []SentMessage
	statuses map[string]core.DeliveryStatus
	nextID   int
}

func NewMemorySender() *MemorySender {
	return &MemorySender{statuses: map[string]core.DeliveryStatus{}}
}

func (s *MemorySender) Send(_ context.Context, recipient string, body string, mediaURL string) (string, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", transportError(
			"transport: recipient is required",
			goerrors.CategoryBadInput,
			400,
			nil,
		)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.sent = append(s.sent, SentMessage{Recipient: recipient, Body: body, MediaURL: mediaURL})
	return fmt.Sprintf("mem-%d", s.nextID), nil
}

func (s *MemorySender) AwaitDelivery(_ context.Context, deliveryID string, _ time.Duration) (core.DeliveryStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.statuses[deliveryID]; ok {
		return status, nil
	}
	return core.DeliveryStatusDelivered, nil
}

// SetStatus overrides what AwaitDelivery reports for one delivery id.
func (s *MemorySender) SetStatus(deliveryID string, status core.DeliveryStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[deliveryID] = status
}

// Sent returns a copy of every captured message in send order.
func (s *MemorySender) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentMessage, len(s.sent))
	copy(out, s.sent)
	return out
}

var _ core.TransportSender = (*MemorySender)(nil)
