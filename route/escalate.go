package route

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/macienko/GemsChatbot/core"
)

// excerptLimit bounds the customer-message excerpt included in escalation
// notifications.
const excerptLimit = 300

// Escalator fans an escalation out to every registered operator with a
// ready-to-use claim command.
type Escalator struct {
	Operators core.OperatorDirectory
	Transport core.TransportSender
	Logger    core.Logger
}

func (e *Escalator) NotifyEscalation(ctx context.Context, customer string, lastMessage string) error {
	if e == nil || e.Operators == nil || e.Transport == nil {
		return core.BadInputError("route: escalator is not configured", nil)
	}
	customer = strings.TrimSpace(customer)
	if customer == "" {
		return core.BadInputError("route: customer is required", nil)
	}

	body := fmt.Sprintf(
		"Customer %s needs help.\nLast message: %q\n\nReply: TAKE %s",
		customer,
		excerpt(lastMessage),
		strings.TrimPrefix(customer, "whatsapp:"),
	)

	var failed int
	for _, operator := range e.Operators.Operators() {
		if _, err := e.Transport.Send(ctx, operator, body, ""); err != nil {
			failed++
			e.log().Warn("escalation notification failed", "operator", operator, "error", err)
		}
	}
	e.log().Info("escalation fanned out", "customer", customer, "failed", failed)
	if failed > 0 {
		return core.SendError(nil, "operators")
	}
	return nil
}

func excerpt(message string) string {
	message = strings.TrimSpace(message)
	runes := []rune(message)
	if len(runes) <= excerptLimit {
		return message
	}
	return string(runes[:excerptLimit]) + "…"
}

func (e *Escalator) log() core.Logger {
	if e == nil || e.Logger == nil {
		return glog.Nop()
	}
	return e.Logger
}
