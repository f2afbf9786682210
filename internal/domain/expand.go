package domain

import (
	"errors"
	"sort"
	"time"
)

// Expansion bounds for open-ended rules. A rule without an end date is
// never expanded past the horizon window, and no rule ever expands to
// more than the occurrence cap; truncation is an explicit policy here,
// not a side effect.
const (
	DefaultHorizonWindow  = 365 * 24 * time.Hour
	DefaultMaxOccurrences = 500
)

type Horizon struct {
	Window         time.Duration
	MaxOccurrences int
}

func DefaultHorizon() Horizon {
	return Horizon{Window: DefaultHorizonWindow, MaxOccurrences: DefaultMaxOccurrences}
}

func (h Horizon) normalized() Horizon {
	if h.Window <= 0 {
		h.Window = DefaultHorizonWindow
	}
	if h.MaxOccurrences <= 0 {
		h.MaxOccurrences = DefaultMaxOccurrences
	}
	return h
}

// ExpandRule produces the concrete occurrences of a recurring rule, in
// chronological order, de-duplicated by start time. The walk covers
// every calendar day from the rule's start date through its end date
// (or the horizon window for open-ended rules), matching each day
// against each slot:
//
//   - daily: every day matches every slot
//   - weekly: days whose weekday equals the slot's day_of_week
//   - monthly: days whose day-of-month equals the slot's day_of_month;
//     months too short for the slot produce nothing (no clamping)
//   - yearly: as monthly, additionally scoped to the slot's month
//
// An inverted date range or an empty slot set expands to an empty
// sequence. Ill-formed slots fail validation before any expansion.
func ExpandRule(rule RecurringRule, sessionDuration time.Duration, horizon Horizon) ([]Occurrence, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if sessionDuration <= 0 {
		return nil, errors.New("session duration must be positive")
	}
	horizon = horizon.normalized()

	loc := rule.StartDate.Location()
	first := dateOnly(rule.StartDate)
	last := dateOnly(rule.StartDate.Add(horizon.Window))
	if rule.EndDate != nil {
		last = dateOnly(rule.EndDate.In(loc))
	}

	out := make([]Occurrence, 0, 16)
	seen := make(map[int64]struct{})

	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		for _, slot := range rule.TimeSlots {
			if !slotMatchesDay(rule.Pattern, slot, day) {
				continue
			}
			hour, minute, err := slot.ClockTime()
			if err != nil {
				return nil, err
			}
			start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
			key := start.UnixNano()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, Occurrence{
				StartTime:  start,
				EndTime:    start.Add(sessionDuration),
				ProviderID: rule.ProviderID,
				ClientID:   rule.ClientID,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})

	if len(out) > horizon.MaxOccurrences {
		out = out[:horizon.MaxOccurrences]
	}
	return out, nil
}

func slotMatchesDay(pattern RecurrencePattern, slot TimeSlot, day time.Time) bool {
	switch pattern {
	case RecurrencePatternDaily:
		return true
	case RecurrencePatternWeekly:
		return slot.DayOfWeek != nil && int(day.Weekday()) == *slot.DayOfWeek
	case RecurrencePatternMonthly:
		return slot.DayOfMonth != nil && day.Day() == *slot.DayOfMonth
	case RecurrencePatternYearly:
		return slot.DayOfMonth != nil && slot.Month != nil &&
			day.Day() == *slot.DayOfMonth && int(day.Month()) == *slot.Month
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsBusinessDay reports whether t falls Monday through Friday.
func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// FilterBusinessDays drops occurrences falling on Saturday or Sunday.
// Weekend occurrences are dropped, never shifted. The filter is pure
// and idempotent.
func FilterBusinessDays(occs []Occurrence) []Occurrence {
	out := make([]Occurrence, 0, len(occs))
	for _, o := range occs {
		if IsBusinessDay(o.StartTime) {
			out = append(out, o)
		}
	}
	return out
}
