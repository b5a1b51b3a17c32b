package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/macienko/GemsChatbot/core"
)

type handoffRecord struct {
	bun.BaseModel `bun:"table:handoffs,alias:h"`

	ID           string    `bun:"id,pk"`
	Customer     string    `bun:"customer,notnull,unique"`
	Operator     string    `bun:"operator,notnull"`
	StartedAt    time.Time `bun:"started_at,notnull"`
	LastActivity time.Time `bun:"last_activity,notnull"`
}

func (r *handoffRecord) toDomain() core.HandoffRecord {
	if r == nil {
		return core.HandoffRecord{}
	}
	return core.HandoffRecord{
		Customer:     r.Customer,
		Operator:     r.Operator,
		StartedAt:    r.StartedAt,
		LastActivity: r.LastActivity,
	}
}

type messageCountRecord struct {
	bun.BaseModel `bun:"table:user_message_counts,alias:umc"`

	ID           string    `bun:"id,pk"`
	UserID       string    `bun:"user_id,notnull,unique"`
	MessageCount int       `bun:"message_count,notnull"`
	CountDate    string    `bun:"count_date,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type messageRecord struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID        string    `bun:"id,pk"`
	Phone     string    `bun:"phone,notnull"`
	Direction string    `bun:"direction,notnull"`
	Body      string    `bun:"body,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
