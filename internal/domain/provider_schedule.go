package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProviderSchedule is one weekly availability window for a provider:
// a day of week (0-6, Sunday=0) with working hours and an optional
// break, effective over a date range.
type ProviderSchedule struct {
	bun.BaseModel `bun:"table:provider_schedules"`

	ID             uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	ProviderID     string     `bun:"provider_id,notnull" json:"provider_id"`
	DayOfWeek      int        `bun:"day_of_week,notnull" json:"day_of_week"`
	StartTime      string     `bun:"start_time,notnull" json:"start_time"`
	EndTime        string     `bun:"end_time,notnull" json:"end_time"`
	IsAvailable    bool       `bun:"is_available,notnull" json:"is_available"`
	BreakStartTime string     `bun:"break_start_time" json:"break_start_time,omitempty"`
	BreakEndTime   string     `bun:"break_end_time" json:"break_end_time,omitempty"`
	EffectiveFrom  time.Time  `bun:"effective_from,notnull" json:"effective_from"`
	EffectiveUntil *time.Time `bun:"effective_until" json:"effective_until,omitempty"`
	Status         string     `bun:"status,notnull" json:"status"`
	CreatedAt      time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

func (p *ProviderSchedule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if p.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			p.ID = id
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		p.UpdatedAt = now
	}
	return nil
}
