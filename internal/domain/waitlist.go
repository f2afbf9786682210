package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// WaitlistEntry is a client's standing request for an appointment slot
// that could not be scheduled yet. Entries are served highest priority
// first, then oldest first.
type WaitlistEntry struct {
	bun.BaseModel `bun:"table:appointment_waitlist"`

	ID                 uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	ClientID           string    `bun:"client_id,notnull" json:"client_id"`
	ProviderID         string    `bun:"provider_id,notnull" json:"provider_id"`
	PreferredDate      time.Time `bun:"preferred_date,notnull" json:"preferred_date"`
	PreferredTimeStart string    `bun:"preferred_time_start" json:"preferred_time_start,omitempty"`
	PreferredTimeEnd   string    `bun:"preferred_time_end" json:"preferred_time_end,omitempty"`
	AppointmentType    string    `bun:"appointment_type,notnull" json:"appointment_type"`
	Notes              string    `bun:"notes" json:"notes,omitempty"`
	Priority           int       `bun:"priority,notnull" json:"priority"`
	IsFulfilled        bool      `bun:"is_fulfilled,notnull" json:"is_fulfilled"`
	CreatedAt          time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt          time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

func (w *WaitlistEntry) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if w.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			w.ID = id
		}
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		if w.UpdatedAt.IsZero() {
			w.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		w.UpdatedAt = now
	}
	return nil
}
