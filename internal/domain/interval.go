package domain

import "time"

type OwnerKind string

const (
	OwnerKindProvider OwnerKind = "provider"
	OwnerKindClient   OwnerKind = "client"
)

// TimeInterval is a concrete span of time. Overlap is inclusive at both
// ends to match the appointment store's range query: back-to-back
// intervals touching at a boundary count as overlapping.
type TimeInterval struct {
	Start time.Time
	End   time.Time
}

func NewTimeInterval(start time.Time, duration time.Duration) TimeInterval {
	return TimeInterval{Start: start, End: start.Add(duration)}
}

func (iv TimeInterval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

func (iv TimeInterval) Overlaps(other TimeInterval) bool {
	return !other.End.Before(iv.Start) && !other.Start.After(iv.End)
}

// Intersect returns the shared window of two intervals. For intervals
// touching at a boundary the window is empty but the second return is
// still true.
func (iv TimeInterval) Intersect(other TimeInterval) (TimeInterval, bool) {
	if !iv.Overlaps(other) {
		return TimeInterval{}, false
	}
	start := iv.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := iv.End
	if other.End.Before(end) {
		end = other.End
	}
	return TimeInterval{Start: start, End: end}, true
}

// Occurrence is one concrete, dated instance of a (possibly recurring)
// appointment request. Occurrences are never mutated once produced; a
// changed rule produces a fresh set.
type Occurrence struct {
	StartTime  time.Time
	EndTime    time.Time
	ProviderID string
	ClientID   string
}

func (o Occurrence) Interval() TimeInterval {
	return TimeInterval{Start: o.StartTime, End: o.EndTime}
}
