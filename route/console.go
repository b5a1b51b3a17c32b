package route

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/macienko/GemsChatbot/core"
	"github.com/macienko/GemsChatbot/handoff"
)

const helpText = "Commands:\n" +
	"- TAKE +<number> — take over a conversation\n" +
	"- LIST — show active hand-offs\n" +
	"- DONE — release current conversation"

// OperatorConsole executes operator commands against the hand-off registry
// and replies to the operator over the transport.
type OperatorConsole struct {
	Registry  handoff.Registry
	Transport core.TransportSender
	History   core.HistoryRecorder
	Archive   core.MessageArchive
	Logger    core.Logger
}

// Take claims customer for operator, releasing the operator's previous
// claim first when switching conversations.
func (c *OperatorConsole) Take(ctx context.Context, operator string, customer string) error {
	if err := c.check(); err != nil {
		return err
	}

	current, found, err := c.Registry.GetOwnerHandoff(ctx, operator)
	if err != nil {
		return err
	}
	if found && current != customer {
		if err := c.Registry.Release(ctx, current); err != nil {
			return err
		}
		c.logger().Info("operator released claim before switching", "operator", operator, "customer", current)
	}

	claimed, err := c.Registry.TakeOver(ctx, operator, customer)
	if err != nil {
		return err
	}
	if !claimed {
		return c.send(ctx, operator, fmt.Sprintf("%s is already taken over by another operator.", customer))
	}
	c.logger().Info("operator took over customer", "operator", operator, "customer", customer)
	return c.send(ctx, operator, fmt.Sprintf(
		"You're now chatting with %s.\nYour messages will be forwarded to them.\nSend DONE to hand back to the assistant.",
		customer,
	))
}

// ListActive replies with the current claim table.
func (c *OperatorConsole) ListActive(ctx context.Context, operator string) error {
	if err := c.check(); err != nil {
		return err
	}
	records, err := c.Registry.ListActive(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return c.send(ctx, operator, "No active hand-offs.")
	}
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, "Active hand-offs:")
	for _, record := range records {
		lines = append(lines, fmt.Sprintf("- %s (operator: %s)", record.Customer, record.Operator))
	}
	return c.send(ctx, operator, strings.Join(lines, "\n"))
}

// Done releases the operator's current claim and notifies both parties.
// Without an active claim it falls back to the help text.
func (c *OperatorConsole) Done(ctx context.Context, operator string) error {
	if err := c.check(); err != nil {
		return err
	}
	customer, found, err := c.Registry.GetOwnerHandoff(ctx, operator)
	if err != nil {
		return err
	}
	if !found {
		return c.Help(ctx, operator)
	}
	if err := c.Registry.Release(ctx, customer); err != nil {
		return err
	}
	c.logger().Info("operator released customer", "operator", operator, "customer", customer)
	if err := c.send(ctx, operator, fmt.Sprintf("Released %s. The assistant will resume.", customer)); err != nil {
		return err
	}
	return c.send(ctx, customer, "You're back with our assistant. How can I help?")
}

// Forward relays the operator's message to their claimed customer. Without
// an active claim it falls back to the help text.
func (c *OperatorConsole) Forward(ctx context.Context, operator string, body string) error {
	if err := c.check(); err != nil {
		return err
	}
	customer, found, err := c.Registry.GetOwnerHandoff(ctx, operator)
	if err != nil {
		return err
	}
	if !found {
		return c.Help(ctx, operator)
	}

	if err := c.Registry.TouchActivity(ctx, customer); err != nil {
		c.logger().Warn("touch activity failed", "customer", customer, "error", err)
	}
	if err := c.send(ctx, customer, body); err != nil {
		return err
	}
	if c.History != nil {
		if err := c.History.AppendHumanExchange(ctx, customer, "", body); err != nil {
			c.logger().Warn("history append failed", "customer", customer, "error", err)
		}
	}
	if c.Archive != nil {
		if err := c.Archive.Record(ctx, customer, core.MessageDirectionOutgoing, body); err != nil {
			c.logger().Warn("message archive failed", "customer", customer, "error", err)
		}
	}
	c.logger().Info("forwarded operator message", "operator", operator, "customer", customer)
	return nil
}

// Help replies with the command summary.
func (c *OperatorConsole) Help(ctx context.Context, operator string) error {
	if err := c.check(); err != nil {
		return err
	}
	return c.send(ctx, operator, helpText)
}

func (c *OperatorConsole) send(ctx context.Context, recipient string, body string) error {
	if _, err := c.Transport.Send(ctx, recipient, body, ""); err != nil {
		return core.SendError(err, recipient)
	}
	return nil
}

func (c *OperatorConsole) check() error {
	if c == nil || c.Registry == nil || c.Transport == nil {
		return core.BadInputError("route: operator console is not configured", nil)
	}
	return nil
}

func (c *OperatorConsole) logger() core.Logger {
	if c == nil || c.Logger == nil {
		return glog.Nop()
	}
	return c.Logger
}
