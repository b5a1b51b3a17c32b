package query

import (
	"context"

	"github.com/macienko/GemsChatbot/core"
	"github.com/macienko/GemsChatbot/history"
	sqlstore "github.com/macienko/GemsChatbot/store/sql"
)

// HandoffReader is the registry subset the hand-off queries need;
// handoff.Registry satisfies it.
type HandoffReader interface {
	ListActive(ctx context.Context) ([]core.HandoffRecord, error)
	GetActive(ctx context.Context, customer string) (core.HandoffRecord, bool, error)
}

// MessageReader reads the archived message log.
type MessageReader interface {
	ListRecent(ctx context.Context, phone string, limit int) ([]sqlstore.ArchivedMessage, error)
}

// HistoryReader reads the responder's conversation log.
type HistoryReader interface {
	History(customer string) []history.Exchange
}

type ListHandoffsQuery struct {
	reader HandoffReader
}

func NewListHandoffsQuery(reader HandoffReader) *ListHandoffsQuery {
	return &ListHandoffsQuery{reader: reader}
}

func (q *ListHandoffsQuery) Query(ctx context.Context, msg ListHandoffsMessage) ([]core.HandoffRecord, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: hand-off reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.ListActive(ctx)
}

type GetHandoffQuery struct {
	reader HandoffReader
}

func NewGetHandoffQuery(reader HandoffReader) *GetHandoffQuery {
	return &GetHandoffQuery{reader: reader}
}

func (q *GetHandoffQuery) Query(ctx context.Context, msg GetHandoffMessage) (core.HandoffRecord, error) {
	if q == nil || q.reader == nil {
		return core.HandoffRecord{}, queryDependencyError("query: hand-off reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.HandoffRecord{}, err
	}
	record, found, err := q.reader.GetActive(ctx, msg.Customer)
	if err != nil {
		return core.HandoffRecord{}, err
	}
	if !found {
		return core.HandoffRecord{}, queryNotFoundError(
			"query: no active hand-off for customer",
			map[string]any{"customer": msg.Customer},
		)
	}
	return record, nil
}

type RecentMessagesQuery struct {
	reader MessageReader
}

func NewRecentMessagesQuery(reader MessageReader) *RecentMessagesQuery {
	return &RecentMessagesQuery{reader: reader}
}

func (q *RecentMessagesQuery) Query(ctx context.Context, msg RecentMessagesMessage) ([]sqlstore.ArchivedMessage, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: message reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.ListRecent(ctx, msg.Phone, msg.Limit)
}

type ConversationHistoryQuery struct {
	reader HistoryReader
}

func NewConversationHistoryQuery(reader HistoryReader) *ConversationHistoryQuery {
	return &ConversationHistoryQuery{reader: reader}
}

func (q *ConversationHistoryQuery) Query(_ context.Context, msg ConversationHistoryMessage) ([]history.Exchange, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: history reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.History(msg.Customer), nil
}
