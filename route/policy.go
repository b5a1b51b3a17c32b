// Package route classifies inbound messages and decides whether they are
// operator commands, immediate forwards across an active hand-off, or
// buffered work for the automated responder.
package route

import (
	"context"
	"fmt"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/macienko/GemsChatbot/buffer"
	"github.com/macienko/GemsChatbot/command"
	"github.com/macienko/GemsChatbot/core"
	"github.com/macienko/GemsChatbot/handoff"
)

// Outcome reports which path an inbound message took.
type Outcome string

const (
	OutcomeIgnored             Outcome = "ignored"
	OutcomeOperatorCommand     Outcome = "operator_command"
	OutcomeForwardedToOperator Outcome = "forwarded_to_operator"
	OutcomeBuffered            Outcome = "buffered"
)

// Policy routes each inbound message in priority order: operator traffic
// first, then customers with an active hand-off, then the debounce buffer.
//
// When the registry backing is unreachable the policy fails closed: the
// message is neither buffered nor answered automatically, so a claimed
// customer is never misrouted to the responder during an outage.
type Policy struct {
	Buffer    *buffer.Store
	Registry  handoff.Registry
	Commands  *command.Commands
	Operators core.OperatorDirectory
	Transport core.TransportSender
	History   core.HistoryRecorder
	Archive   core.MessageArchive
	Logger    core.Logger
}

func (p *Policy) HandleInbound(ctx context.Context, msg core.InboundMessage) (Outcome, error) {
	if p == nil || p.Buffer == nil || p.Registry == nil || p.Operators == nil {
		return OutcomeIgnored, core.BadInputError("route: policy is not configured", nil)
	}
	msg = msg.Normalize()
	if msg.Sender == "" {
		return OutcomeIgnored, core.BadInputError("route: sender is required", nil)
	}
	if msg.Body == "" {
		return OutcomeIgnored, nil
	}

	if p.Operators.IsOperator(msg.Sender) {
		if p.Commands == nil {
			return OutcomeIgnored, core.BadInputError("route: operator commands are not configured", nil)
		}
		if err := p.Commands.Dispatch(ctx, msg.Sender, msg.Body); err != nil {
			return OutcomeOperatorCommand, err
		}
		return OutcomeOperatorCommand, nil
	}

	record, found, err := p.Registry.GetActive(ctx, msg.Sender)
	if err != nil {
		p.logger().Error("hand-off lookup failed, holding message", "sender", msg.Sender, "error", err)
		return OutcomeIgnored, err
	}
	if found {
		return p.forwardToOperator(ctx, record, msg)
	}

	p.archive(ctx, msg.Sender, core.MessageDirectionIncoming, msg.Body)
	p.Buffer.Enqueue(msg.Sender, msg.Body)
	return OutcomeBuffered, nil
}

func (p *Policy) forwardToOperator(ctx context.Context, record core.HandoffRecord, msg core.InboundMessage) (Outcome, error) {
	if p.Transport == nil {
		return OutcomeIgnored, core.BadInputError("route: transport is required to forward", nil)
	}
	if err := p.Registry.TouchActivity(ctx, msg.Sender); err != nil {
		p.logger().Warn("touch activity failed", "customer", msg.Sender, "error", err)
	}

	body := fmt.Sprintf("[%s]\n%s", msg.Sender, msg.Body)
	if _, err := p.Transport.Send(ctx, record.Operator, body, ""); err != nil {
		return OutcomeIgnored, core.SendError(err, record.Operator)
	}
	if p.History != nil {
		if err := p.History.AppendHumanExchange(ctx, msg.Sender, msg.Body, ""); err != nil {
			p.logger().Warn("history append failed", "customer", msg.Sender, "error", err)
		}
	}
	p.archive(ctx, msg.Sender, core.MessageDirectionIncoming, msg.Body)
	p.logger().Info("forwarded customer message", "customer", msg.Sender, "operator", record.Operator)
	return OutcomeForwardedToOperator, nil
}

func (p *Policy) archive(ctx context.Context, phone string, direction core.MessageDirection, body string) {
	if p.Archive == nil {
		return
	}
	if err := p.Archive.Record(ctx, phone, direction, body); err != nil {
		p.logger().Warn("message archive failed", "phone", phone, "error", err)
	}
}

func (p *Policy) logger() core.Logger {
	if p == nil || p.Logger == nil {
		return glog.Nop()
	}
	return p.Logger
}
