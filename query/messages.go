// Package query exposes the relay's read side as typed query handlers:
// active hand-offs, archived messages and conversation history.
package query

import (
	"strings"
)

const (
	TypeListHandoffs        = "relay.query.handoffs.list"
	TypeGetHandoff          = "relay.query.handoffs.get"
	TypeRecentMessages      = "relay.query.messages.recent"
	TypeConversationHistory = "relay.query.history.load"
)

type ListHandoffsMessage struct{}

func (ListHandoffsMessage) Type() string { return TypeListHandoffs }

func (ListHandoffsMessage) Validate() error { return nil }

type GetHandoffMessage struct {
	Customer string
}

func (GetHandoffMessage) Type() string { return TypeGetHandoff }

func (m GetHandoffMessage) Validate() error {
	if strings.TrimSpace(m.Customer) == "" {
		return queryValidationError("customer", "customer is required")
	}
	return nil
}

type RecentMessagesMessage struct {
	Phone string
	Limit int
}

func (RecentMessagesMessage) Type() string { return TypeRecentMessages }

func (m RecentMessagesMessage) Validate() error {
	if strings.TrimSpace(m.Phone) == "" {
		return queryValidationError("phone", "phone is required")
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}

type ConversationHistoryMessage struct {
	Customer string
}

func (ConversationHistoryMessage) Type() string { return TypeConversationHistory }

func (m ConversationHistoryMessage) Validate() error {
	if strings.TrimSpace(m.Customer) == "" {
		return queryValidationError("customer", "customer is required")
	}
	return nil
}
