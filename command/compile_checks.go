package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[TakeMessage]    = (*TakeCommand)(nil)
	_ gocmd.Commander[ListMessage]    = (*ListCommand)(nil)
	_ gocmd.Commander[DoneMessage]    = (*DoneCommand)(nil)
	_ gocmd.Commander[ForwardMessage] = (*ForwardCommand)(nil)
)
