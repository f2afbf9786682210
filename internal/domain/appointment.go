package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCheckedIn AppointmentStatus = "checked_in"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed,
		AppointmentStatusCheckedIn, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// ConflictScoped reports whether an appointment in this status still
// blocks the provider's and client's calendars. Cancelled and no-show
// appointments do not.
func (s AppointmentStatus) ConflictScoped() bool {
	return s != AppointmentStatusCancelled && s != AppointmentStatusNoShow
}

// ConflictScopedStatuses lists the statuses included in overlap queries.
func ConflictScopedStatuses() []AppointmentStatus {
	return []AppointmentStatus{
		AppointmentStatusScheduled,
		AppointmentStatusConfirmed,
		AppointmentStatusCheckedIn,
		AppointmentStatusCompleted,
	}
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID              uuid.UUID         `bun:"id,pk,type:uuid" json:"id"`
	ProviderID      string            `bun:"provider_id,notnull" json:"provider_id"`
	ClientID        string            `bun:"client_id,notnull" json:"client_id"`
	AppointmentType string            `bun:"appointment_type,notnull" json:"appointment_type"`
	Title           string            `bun:"title" json:"title,omitempty"`
	Description     string            `bun:"description" json:"description,omitempty"`
	StartTime       time.Time         `bun:"start_time,notnull" json:"start_time"`
	EndTime         time.Time         `bun:"end_time,notnull" json:"end_time"`
	Status          AppointmentStatus `bun:"status,notnull" json:"status"`
	Location        string            `bun:"location" json:"location,omitempty"`
	RoomNumber      string            `bun:"room_number" json:"room_number,omitempty"`
	RecurringRuleID *uuid.UUID        `bun:"recurring_rule_id,type:uuid" json:"recurring_rule_id,omitempty"`
	CheckedInAt     *time.Time        `bun:"checked_in_at" json:"checked_in_at,omitempty"`
	CompletedAt     *time.Time        `bun:"completed_at" json:"completed_at,omitempty"`
	CancelledAt     *time.Time        `bun:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedBy       string            `bun:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time         `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time         `bun:"updated_at,notnull" json:"updated_at"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func (a *Appointment) Interval() TimeInterval {
	return TimeInterval{Start: a.StartTime, End: a.EndTime}
}
