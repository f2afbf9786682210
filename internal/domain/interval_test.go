package domain

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, time.March, 4, hour, minute, 0, 0, time.UTC)
}

func TestTimeIntervalOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b TimeInterval
		want bool
	}{
		{
			name: "disjoint",
			a:    TimeInterval{Start: at(9, 0), End: at(10, 0)},
			b:    TimeInterval{Start: at(11, 0), End: at(12, 0)},
			want: false,
		},
		{
			name: "partial overlap",
			a:    TimeInterval{Start: at(9, 0), End: at(10, 0)},
			b:    TimeInterval{Start: at(9, 30), End: at(10, 30)},
			want: true,
		},
		{
			name: "contained",
			a:    TimeInterval{Start: at(9, 0), End: at(12, 0)},
			b:    TimeInterval{Start: at(10, 0), End: at(11, 0)},
			want: true,
		},
		{
			name: "touching at end",
			a:    TimeInterval{Start: at(9, 0), End: at(10, 0)},
			b:    TimeInterval{Start: at(10, 0), End: at(11, 0)},
			want: true,
		},
		{
			name: "touching at start",
			a:    TimeInterval{Start: at(10, 0), End: at(11, 0)},
			b:    TimeInterval{Start: at(9, 0), End: at(10, 0)},
			want: true,
		},
		{
			name: "identical",
			a:    TimeInterval{Start: at(9, 0), End: at(10, 0)},
			b:    TimeInterval{Start: at(9, 0), End: at(10, 0)},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Fatalf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Fatalf("Overlaps not symmetric: reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeIntervalIntersect(t *testing.T) {
	a := TimeInterval{Start: at(9, 0), End: at(10, 0)}
	b := TimeInterval{Start: at(9, 30), End: at(10, 30)}

	window, ok := a.Intersect(b)
	if !ok {
		t.Fatalf("expected intersection")
	}
	if !window.Start.Equal(at(9, 30)) || !window.End.Equal(at(10, 0)) {
		t.Fatalf("window = %v..%v, want 09:30..10:00", window.Start, window.End)
	}

	// Touching boundaries intersect in an empty window.
	c := TimeInterval{Start: at(10, 0), End: at(11, 0)}
	window, ok = a.Intersect(c)
	if !ok {
		t.Fatalf("expected touching intervals to intersect")
	}
	if window.Duration() != 0 {
		t.Fatalf("window duration = %v, want 0", window.Duration())
	}

	if _, ok = a.Intersect(TimeInterval{Start: at(11, 0), End: at(12, 0)}); ok {
		t.Fatalf("disjoint intervals must not intersect")
	}
}

func TestNewConflictRecord(t *testing.T) {
	occ := Occurrence{
		StartTime:  at(9, 0),
		EndTime:    at(10, 0),
		ProviderID: "prov-1",
		ClientID:   "client-1",
	}

	sameProvider := Appointment{
		ProviderID: "prov-1",
		ClientID:   "other-client",
		StartTime:  at(9, 30),
		EndTime:    at(10, 30),
	}
	rec := NewConflictRecord(sameProvider, occ)
	if rec.ConflictType != ConflictTypeProviderOverlap {
		t.Fatalf("ConflictType = %q, want provider_overlap", rec.ConflictType)
	}
	if rec.Message != "Provider already has an appointment at this time" {
		t.Fatalf("Message = %q", rec.Message)
	}
	if !rec.OverlapStart.Equal(at(9, 30)) || !rec.OverlapEnd.Equal(at(10, 0)) {
		t.Fatalf("overlap window = %v..%v", rec.OverlapStart, rec.OverlapEnd)
	}

	// When the same appointment matches both owners, provider wins.
	bothOwners := Appointment{
		ProviderID: "prov-1",
		ClientID:   "client-1",
		StartTime:  at(9, 30),
		EndTime:    at(10, 30),
	}
	if rec := NewConflictRecord(bothOwners, occ); rec.ConflictType != ConflictTypeProviderOverlap {
		t.Fatalf("ConflictType = %q, want provider precedence", rec.ConflictType)
	}

	sameClient := Appointment{
		ProviderID: "other-prov",
		ClientID:   "client-1",
		StartTime:  at(9, 30),
		EndTime:    at(10, 30),
	}
	rec = NewConflictRecord(sameClient, occ)
	if rec.ConflictType != ConflictTypeClientOverlap {
		t.Fatalf("ConflictType = %q, want client_overlap", rec.ConflictType)
	}
	if rec.Message != "Client already has an appointment at this time" {
		t.Fatalf("Message = %q", rec.Message)
	}
}
