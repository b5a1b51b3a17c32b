package core

import (
	"context"
	"sort"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

// Responder turns a customer's combined buffered text into an ordered list
// of replies. Implementations are opaque to the relay and may call out to a
// model or a catalog lookup; the relay never holds a lock across this call.
type Responder interface {
	Respond(ctx context.Context, senderID string, combinedText string) ([]ReplyItem, error)
}

// TransportSender delivers a single outbound message over the messaging
// channel and lets the caller wait for a terminal delivery status.
type TransportSender interface {
	Send(ctx context.Context, recipientID string, body string, mediaURL string) (string, error)
	AwaitDelivery(ctx context.Context, deliveryID string, timeout time.Duration) (DeliveryStatus, error)
}

// RateLimiter is consulted once per drained buffer before the responder is
// invoked.
type RateLimiter interface {
	Allow(ctx context.Context, senderID string) (bool, error)
}

// OperatorDirectory is the static configured set of operator identities,
// read-only for the lifetime of the process.
type OperatorDirectory interface {
	IsOperator(identity string) bool
	Operators() []string
}

// HistoryRecorder records human exchanges so the responder keeps context
// across a hand-off.
type HistoryRecorder interface {
	AppendHumanExchange(ctx context.Context, customer string, customerMsg string, operatorReply string) error
}

// MessageArchive persists a copy of relayed message bodies.
type MessageArchive interface {
	Record(ctx context.Context, phone string, direction MessageDirection, body string) error
}

// EscalationNotifier fans an escalation out to every registered operator.
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, customer string, lastMessage string) error
}

type StaticOperatorDirectory struct {
	identities map[string]struct{}
}

func NewStaticOperatorDirectory(identities []string) *StaticOperatorDirectory {
	set := make(map[string]struct{}, len(identities))
	for _, identity := range identities {
		identity = strings.TrimSpace(identity)
		if identity == "" {
			continue
		}
		set[identity] = struct{}{}
	}
	return &StaticOperatorDirectory{identities: set}
}

func (d *StaticOperatorDirectory) IsOperator(identity string) bool {
	if d == nil {
		return false
	}
	_, ok := d.identities[strings.TrimSpace(identity)]
	return ok
}

func (d *StaticOperatorDirectory) Operators() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.identities))
	for identity := range d.identities {
		out = append(out, identity)
	}
	sort.Strings(out)
	return out
}

var _ OperatorDirectory = (*StaticOperatorDirectory)(nil)
