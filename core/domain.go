package core

import (
	"strings"
	"time"
)

// HandoffRecord is an exclusive assignment of one customer conversation to
// one operator. The operator field is immutable for the record's lifetime:
// changing ownership requires release and re-claim, never in-place mutation.
type HandoffRecord struct {
	Customer     string
	Operator     string
	StartedAt    time.Time
	LastActivity time.Time
}

// InboundMessage is a single message fragment received from the channel.
type InboundMessage struct {
	Sender string
	Body   string
}

func (m InboundMessage) Normalize() InboundMessage {
	return InboundMessage{
		Sender: strings.TrimSpace(m.Sender),
		Body:   strings.TrimSpace(m.Body),
	}
}

// ReplyItem is one outbound message produced by the responder. Media fields
// are optional; a video reply is delivered before any text follow-up.
type ReplyItem struct {
	Body     string
	ImageURL string
	VideoURL string
}

type DeliveryStatus string

const (
	DeliveryStatusQueued      DeliveryStatus = "queued"
	DeliveryStatusSent        DeliveryStatus = "sent"
	DeliveryStatusDelivered   DeliveryStatus = "delivered"
	DeliveryStatusRead        DeliveryStatus = "read"
	DeliveryStatusFailed      DeliveryStatus = "failed"
	DeliveryStatusUndelivered DeliveryStatus = "undelivered"
)

// Terminal reports whether the status ends the delivery lifecycle.
func (s DeliveryStatus) Terminal() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusRead, DeliveryStatusFailed, DeliveryStatusUndelivered:
		return true
	default:
		return false
	}
}

type MessageDirection string

const (
	MessageDirectionIncoming MessageDirection = "incoming"
	MessageDirectionOutgoing MessageDirection = "outgoing"
)
