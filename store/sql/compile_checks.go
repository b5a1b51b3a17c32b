package sqlstore

import (
	"github.com/macienko/GemsChatbot/core"
	"github.com/macienko/GemsChatbot/handoff"
	"github.com/macienko/GemsChatbot/ratelimit"
)

var (
	_ handoff.Registry       = (*HandoffStore)(nil)
	_ ratelimit.CounterStore = (*MessageCountStore)(nil)
	_ core.MessageArchive    = (*MessageStore)(nil)
)
