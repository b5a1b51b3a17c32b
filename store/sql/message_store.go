package sqlstore

import (
	"context"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/macienko/GemsChatbot/core"
)

// ArchivedMessage is one relayed message body as kept in the archive.
type ArchivedMessage struct {
	Phone     string
	Direction core.MessageDirection
	Body      string
	CreatedAt time.Time
}

// MessageStore archives every relayed message body with its direction.
type MessageStore struct {
	db   *bun.DB
	repo repository.Repository[*messageRecord]

	Now func() time.Time
}

func (s *MessageStore) Record(ctx context.Context, phone string, direction core.MessageDirection, body string) error {
	if s == nil || s.repo == nil {
		return core.PersistenceError(nil, "message store is not configured")
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return core.BadInputError("sqlstore: phone is required", nil)
	}
	_, err := s.repo.Create(ctx, &messageRecord{
		ID:        uuid.NewString(),
		Phone:     phone,
		Direction: string(direction),
		Body:      body,
		CreatedAt: s.now(),
	})
	if err != nil {
		return core.PersistenceError(err, "archive message")
	}
	return nil
}

// ListRecent returns the newest archived messages for a phone, newest first.
func (s *MessageStore) ListRecent(ctx context.Context, phone string, limit int) ([]ArchivedMessage, error) {
	if s == nil || s.repo == nil {
		return nil, core.PersistenceError(nil, "message store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("phone", "=", strings.TrimSpace(phone)),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, core.PersistenceError(err, "list archived messages")
	}
	out := make([]ArchivedMessage, 0, len(records))
	for _, record := range records {
		out = append(out, ArchivedMessage{
			Phone:     record.Phone,
			Direction: core.MessageDirection(record.Direction),
			Body:      record.Body,
			CreatedAt: record.CreatedAt,
		})
	}
	return out, nil
}

func (s *MessageStore) now() time.Time {
	if s == nil || s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
