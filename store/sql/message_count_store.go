package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/macienko/GemsChatbot/core"
)

// MessageCountStore keeps one daily responder-usage counter per sender.
// The counter carries the date it was accumulated for and rolls over to
// zero the first time it is checked on a later date.
type MessageCountStore struct {
	db   *bun.DB
	repo repository.Repository[*messageCountRecord]
}

func (s *MessageCountStore) CheckAndIncrement(ctx context.Context, senderID string, limit int, now time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, core.PersistenceError(nil, "message count store is not configured")
	}
	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return false, core.BadInputError("sqlstore: sender id is required", nil)
	}
	if limit <= 0 {
		return true, nil
	}
	day := now.UTC().Format(time.DateOnly)

	allowed := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &messageCountRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("user_id = ?", senderID).
			Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, insertErr := tx.NewInsert().
				Model(&messageCountRecord{
					ID:           uuid.NewString(),
					UserID:       senderID,
					MessageCount: 1,
					CountDate:    day,
					UpdatedAt:    now.UTC(),
				}).
				Exec(ctx)
			if insertErr != nil {
				return insertErr
			}
			allowed = true
			return nil
		case err != nil:
			return err
		}

		count := record.MessageCount
		if record.CountDate != day {
			count = 0
		}
		if count >= limit {
			return nil
		}
		_, updateErr := tx.NewUpdate().
			Model((*messageCountRecord)(nil)).
			Set("message_count = ?", count+1).
			Set("count_date = ?", day).
			Set("updated_at = ?", now.UTC()).
			Where("user_id = ?", senderID).
			Exec(ctx)
		if updateErr != nil {
			return updateErr
		}
		allowed = true
		return nil
	})
	if err != nil {
		return false, core.PersistenceError(err, "check daily message count")
	}
	return allowed, nil
}

func (s *MessageCountStore) Reset(ctx context.Context, senderID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, core.PersistenceError(nil, "message count store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*messageCountRecord)(nil)).
		Set("message_count = ?", 0).
		Where("user_id = ?", strings.TrimSpace(senderID)).
		Exec(ctx)
	if err != nil {
		return false, core.PersistenceError(err, "reset daily message count")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, core.PersistenceError(err, "reset daily message count")
	}
	return affected > 0, nil
}
