package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/macienko/GemsChatbot/core"
	"github.com/macienko/GemsChatbot/history"
	sqlstore "github.com/macienko/GemsChatbot/store/sql"
)

var (
	_ gocmd.Querier[ListHandoffsMessage, []core.HandoffRecord]         = (*ListHandoffsQuery)(nil)
	_ gocmd.Querier[GetHandoffMessage, core.HandoffRecord]             = (*GetHandoffQuery)(nil)
	_ gocmd.Querier[RecentMessagesMessage, []sqlstore.ArchivedMessage] = (*RecentMessagesQuery)(nil)
	_ gocmd.Querier[ConversationHistoryMessage, []history.Exchange]    = (*ConversationHistoryQuery)(nil)
)
