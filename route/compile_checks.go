package route

import (
	"github.com/macienko/GemsChatbot/command"
	"github.com/macienko/GemsChatbot/core"
)

var (
	_ command.OperatorService = (*OperatorConsole)(nil)
	_ core.EscalationNotifier = (*Escalator)(nil)
)
