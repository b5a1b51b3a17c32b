package command

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	TypeTake    = "relay.command.take"
	TypeList    = "relay.command.list"
	TypeDone    = "relay.command.done"
	TypeForward = "relay.command.forward"
)

// takePattern matches "TAKE +15550001111" or "TAKE 15550001111",
// case-insensitive.
var takePattern = regexp.MustCompile(`^(?i)TAKE\s+\+?(\d+)$`)

type TakeMessage struct {
	Operator  string
	RawTarget string
}

func (TakeMessage) Type() string { return TypeTake }

func (m TakeMessage) Validate() error {
	if strings.TrimSpace(m.Operator) == "" {
		return fmt.Errorf("command: operator identity is required")
	}
	if strings.TrimSpace(m.RawTarget) == "" {
		return fmt.Errorf("command: take target is required")
	}
	return nil
}

// Customer returns the canonical channel identity for the TAKE target.
func (m TakeMessage) Customer() string {
	digits := strings.TrimPrefix(strings.TrimSpace(m.RawTarget), "+")
	return "whatsapp:+" + digits
}

type ListMessage struct {
	Operator string
}

func (ListMessage) Type() string { return TypeList }

func (m ListMessage) Validate() error {
	if strings.TrimSpace(m.Operator) == "" {
		return fmt.Errorf("command: operator identity is required")
	}
	return nil
}

type DoneMessage struct {
	Operator string
}

func (DoneMessage) Type() string { return TypeDone }

func (m DoneMessage) Validate() error {
	if strings.TrimSpace(m.Operator) == "" {
		return fmt.Errorf("command: operator identity is required")
	}
	return nil
}

// ForwardMessage is any operator text that is not a recognized command; it
// is relayed verbatim to the operator's claimed customer, or answered with
// command help when no claim is held.
type ForwardMessage struct {
	Operator string
	Body     string
}

func (ForwardMessage) Type() string { return TypeForward }

func (m ForwardMessage) Validate() error {
	if strings.TrimSpace(m.Operator) == "" {
		return fmt.Errorf("command: operator identity is required")
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("command: forward body is required")
	}
	return nil
}

// Parse classifies one operator message. LIST, TAKE and DONE are commands;
// everything else forwards to the operator's claimed customer.
func Parse(operator string, text string) any {
	trimmed := strings.TrimSpace(text)
	upper := strings.ToUpper(trimmed)

	switch {
	case upper == "LIST":
		return ListMessage{Operator: operator}
	case upper == "DONE":
		return DoneMessage{Operator: operator}
	}
	if match := takePattern.FindStringSubmatch(trimmed); match != nil {
		return TakeMessage{Operator: operator, RawTarget: match[1]}
	}
	return ForwardMessage{Operator: operator, Body: trimmed}
}
