package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"

	"github.com/macienko/GemsChatbot/core"
)

// HandoffStore is the durable hand-off registry. Every storage failure
// surfaces as a persistence error so callers can fail closed instead of
// treating an outage as "no claim".
type HandoffStore struct {
	db   *bun.DB
	repo repository.Repository[*handoffRecord]

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *HandoffStore) TakeOver(ctx context.Context, operator string, customer string) (bool, error) {
	if s == nil || s.db == nil {
		return false, core.PersistenceError(nil, "handoff store is not configured")
	}
	operator = strings.TrimSpace(operator)
	customer = strings.TrimSpace(customer)
	if operator == "" || customer == "" {
		return false, core.BadInputError("sqlstore: operator and customer are required", nil)
	}
	now := s.now()

	claimed := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &handoffRecord{}
		err := tx.NewSelect().
			Model(existing).
			Where("customer = ?", customer).
			Scan(ctx)
		switch {
		case err == nil:
			if existing.Operator != operator {
				return core.ConflictError(customer, existing.Operator)
			}
			_, updateErr := tx.NewUpdate().
				Model((*handoffRecord)(nil)).
				Set("started_at = ?", now).
				Set("last_activity = ?", now).
				Where("customer = ?", customer).
				Exec(ctx)
			if updateErr != nil {
				return updateErr
			}
			claimed = true
			return nil
		case errors.Is(err, sql.ErrNoRows):
			_, insertErr := tx.NewInsert().
				Model(&handoffRecord{
					ID:           uuid.NewString(),
					Customer:     customer,
					Operator:     operator,
					StartedAt:    now,
					LastActivity: now,
				}).
				Exec(ctx)
			if insertErr != nil {
				// A racing take-over can commit between our SELECT and
				// INSERT; the unique constraint on customer makes the
				// loser's insert fail. That is a rejected claim, not an
				// outage.
				if isUniqueViolation(insertErr) {
					return core.ConflictError(customer, "")
				}
				return insertErr
			}
			claimed = true
			return nil
		default:
			return err
		}
	})
	switch {
	case err == nil:
		return claimed, nil
	case core.IsClaimConflict(err):
		return false, nil
	default:
		return false, core.PersistenceError(err, "take over hand-off")
	}
}

func (s *HandoffStore) Release(ctx context.Context, customer string) error {
	if s == nil || s.db == nil {
		return core.PersistenceError(nil, "handoff store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*handoffRecord)(nil)).
		Where("customer = ?", strings.TrimSpace(customer)).
		Exec(ctx)
	if err != nil {
		return core.PersistenceError(err, "release hand-off")
	}
	return nil
}

func (s *HandoffStore) GetActive(ctx context.Context, customer string) (core.HandoffRecord, bool, error) {
	if s == nil || s.db == nil {
		return core.HandoffRecord{}, false, core.PersistenceError(nil, "handoff store is not configured")
	}
	record := &handoffRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("customer = ?", strings.TrimSpace(customer)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.HandoffRecord{}, false, nil
	}
	if err != nil {
		return core.HandoffRecord{}, false, core.PersistenceError(err, "load hand-off")
	}
	return record.toDomain(), true, nil
}

func (s *HandoffStore) GetOwnerHandoff(ctx context.Context, operator string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, core.PersistenceError(nil, "handoff store is not configured")
	}
	record := &handoffRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("operator = ?", strings.TrimSpace(operator)).
		OrderExpr("customer ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, core.PersistenceError(err, "load operator hand-off")
	}
	return record.Customer, true, nil
}

func (s *HandoffStore) TouchActivity(ctx context.Context, customer string) error {
	if s == nil || s.db == nil {
		return core.PersistenceError(nil, "handoff store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*handoffRecord)(nil)).
		Set("last_activity = ?", s.now()).
		Where("customer = ?", strings.TrimSpace(customer)).
		Exec(ctx)
	if err != nil {
		return core.PersistenceError(err, "touch hand-off activity")
	}
	return nil
}

func (s *HandoffStore) ListActive(ctx context.Context) ([]core.HandoffRecord, error) {
	if s == nil || s.repo == nil {
		return nil, core.PersistenceError(nil, "handoff store is not configured")
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("customer ASC"))
	if err != nil {
		return nil, core.PersistenceError(err, "list hand-offs")
	}
	out := make([]core.HandoffRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *HandoffStore) CleanupExpired(ctx context.Context, timeout time.Duration) ([]core.HandoffRecord, error) {
	if s == nil || s.db == nil {
		return nil, core.PersistenceError(nil, "handoff store is not configured")
	}
	cutoff := s.now().Add(-timeout)

	var expired []core.HandoffRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var records []*handoffRecord
		if err := tx.NewSelect().
			Model(&records).
			Where("last_activity <= ?", cutoff).
			OrderExpr("customer ASC").
			Scan(ctx); err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		ids := make([]string, 0, len(records))
		for _, record := range records {
			ids = append(ids, record.ID)
			expired = append(expired, record.toDomain())
		}
		_, deleteErr := tx.NewDelete().
			Model((*handoffRecord)(nil)).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		return deleteErr
	})
	if err != nil {
		return nil, core.PersistenceError(err, "clean up expired hand-offs")
	}
	return expired, nil
}

func (s *HandoffStore) now() time.Time {
	if s == nil || s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// isUniqueViolation reports whether err is a unique-constraint rejection
// from either supported driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
