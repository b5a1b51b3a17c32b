// Package command exposes the operator console verbs (TAKE, LIST, DONE,
// verbatim forward) as typed command handlers.
package command

import (
	"context"
)

// OperatorService is the routing-side surface the operator commands drive.
// Replies to the operator (confirmations, listings, help) are the service's
// responsibility; handlers stay thin.
type OperatorService interface {
	Take(ctx context.Context, operator string, customer string) error
	ListActive(ctx context.Context, operator string) error
	Done(ctx context.Context, operator string) error
	Forward(ctx context.Context, operator string, body string) error
	Help(ctx context.Context, operator string) error
}

type TakeCommand struct {
	service OperatorService
}

func NewTakeCommand(service OperatorService) *TakeCommand {
	return &TakeCommand{service: service}
}

func (c *TakeCommand) Execute(ctx context.Context, msg TakeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: take service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.Take(ctx, msg.Operator, msg.Customer())
}

type ListCommand struct {
	service OperatorService
}

func NewListCommand(service OperatorService) *ListCommand {
	return &ListCommand{service: service}
}

func (c *ListCommand) Execute(ctx context.Context, msg ListMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: list service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.ListActive(ctx, msg.Operator)
}

type DoneCommand struct {
	service OperatorService
}

func NewDoneCommand(service OperatorService) *DoneCommand {
	return &DoneCommand{service: service}
}

func (c *DoneCommand) Execute(ctx context.Context, msg DoneMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: done service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.Done(ctx, msg.Operator)
}

type ForwardCommand struct {
	service OperatorService
}

func NewForwardCommand(service OperatorService) *ForwardCommand {
	return &ForwardCommand{service: service}
}

func (c *ForwardCommand) Execute(ctx context.Context, msg ForwardMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: forward service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.Forward(ctx, msg.Operator, msg.Body)
}

// Commands bundles the operator console handlers behind one dispatch point.
type Commands struct {
	Take    *TakeCommand
	List    *ListCommand
	Done    *DoneCommand
	Forward *ForwardCommand

	service OperatorService
}

func NewCommands(service OperatorService) *Commands {
	return &Commands{
		Take:    NewTakeCommand(service),
		List:    NewListCommand(service),
		Done:    NewDoneCommand(service),
		Forward: NewForwardCommand(service),
		service: service,
	}
}

// Dispatch parses and executes one operator message.
func (c *Commands) Dispatch(ctx context.Context, operator string, text string) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: operator service is required")
	}
	switch msg := Parse(operator, text).(type) {
	case ListMessage:
		return c.List.Execute(ctx, msg)
	case TakeMessage:
		return c.Take.Execute(ctx, msg)
	case DoneMessage:
		return c.Done.Execute(ctx, msg)
	case ForwardMessage:
		if err := msg.Validate(); err != nil {
			return c.service.Help(ctx, operator)
		}
		return c.Forward.Execute(ctx, msg)
	default:
		return c.service.Help(ctx, operator)
	}
}
