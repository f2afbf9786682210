package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RecurrencePattern string

const (
	RecurrencePatternDaily   RecurrencePattern = "daily"
	RecurrencePatternWeekly  RecurrencePattern = "weekly"
	RecurrencePatternMonthly RecurrencePattern = "monthly"
	RecurrencePatternYearly  RecurrencePattern = "yearly"
)

func (p RecurrencePattern) Valid() bool {
	switch p {
	case RecurrencePatternDaily, RecurrencePatternWeekly,
		RecurrencePatternMonthly, RecurrencePatternYearly:
		return true
	}
	return false
}

// TimeSlot is one repetition anchor within a recurring rule. Which
// fields are required depends on the rule's pattern: weekly rules need
// DayOfWeek, monthly rules need DayOfMonth, yearly rules need both
// DayOfMonth and Month. A slot missing a required field is a validation
// error, never a silent default.
type TimeSlot struct {
	Time       string `json:"time"`
	DayOfWeek  *int   `json:"day_of_week,omitempty"`
	DayOfMonth *int   `json:"day_of_month,omitempty"`
	Month      *int   `json:"month,omitempty"`
}

// ClockTime parses the slot's "HH:MM" wall-clock time.
func (s TimeSlot) ClockTime() (hour, minute int, err error) {
	parts := strings.SplitN(s.Time, ":", 2)
	if len(parts) != 2 {
		return 0, 0, errors.New("slot time must be HH:MM")
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, errors.New("slot time must be HH:MM")
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, errors.New("slot time must be HH:MM")
	}
	return hour, minute, nil
}

func (s TimeSlot) validate(pattern RecurrencePattern, index int) error {
	if _, _, err := s.ClockTime(); err != nil {
		return fmt.Errorf("slot %d: %w", index, err)
	}
	switch pattern {
	case RecurrencePatternWeekly:
		if s.DayOfWeek == nil {
			return fmt.Errorf("slot %d: weekly slot requires day_of_week", index)
		}
	case RecurrencePatternMonthly:
		if s.DayOfMonth == nil {
			return fmt.Errorf("slot %d: monthly slot requires day_of_month", index)
		}
	case RecurrencePatternYearly:
		if s.DayOfMonth == nil {
			return fmt.Errorf("slot %d: yearly slot requires day_of_month", index)
		}
		if s.Month == nil {
			return fmt.Errorf("slot %d: yearly slot requires month", index)
		}
	}
	if s.DayOfWeek != nil && (*s.DayOfWeek < 0 || *s.DayOfWeek > 6) {
		return fmt.Errorf("slot %d: day_of_week must be 0-6", index)
	}
	if s.DayOfMonth != nil && (*s.DayOfMonth < 1 || *s.DayOfMonth > 31) {
		return fmt.Errorf("slot %d: day_of_month must be 1-31", index)
	}
	if s.Month != nil && (*s.Month < 1 || *s.Month > 12) {
		return fmt.Errorf("slot %d: month must be 1-12", index)
	}
	return nil
}

// RecurringRule describes how a recurring appointment request repeats.
// StartDate and EndDate are calendar dates, both inclusive; a nil
// EndDate means the rule is open-ended and expansion is bounded by the
// caller's horizon.
type RecurringRule struct {
	bun.BaseModel `bun:"table:recurring_rules"`

	ID                uuid.UUID         `bun:"id,pk,type:uuid"`
	ProviderID        string            `bun:"provider_id,notnull"`
	ClientID          string            `bun:"client_id,notnull"`
	Pattern           RecurrencePattern `bun:"pattern,notnull"`
	StartDate         time.Time         `bun:"start_date,notnull"`
	EndDate           *time.Time        `bun:"end_date"`
	TimeSlots         []TimeSlot        `bun:"time_slots,type:jsonb"`
	IsBusinessDayOnly bool              `bun:"is_business_day_only,notnull"`
	CreatedAt         time.Time         `bun:"created_at,notnull"`
	UpdatedAt         time.Time         `bun:"updated_at,notnull"`
}

func (r *RecurringRule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

// Validate checks the rule's shape before any expansion. A rule whose
// date range is inverted or whose slot set is empty is not an error;
// both expand to an empty sequence.
func (r *RecurringRule) Validate() error {
	if !r.Pattern.Valid() {
		return fmt.Errorf("unknown recurrence pattern %q", r.Pattern)
	}
	if r.StartDate.IsZero() {
		return errors.New("start_date is required")
	}
	for i, slot := range r.TimeSlots {
		if err := slot.validate(r.Pattern, i); err != nil {
			return err
		}
	}
	return nil
}
