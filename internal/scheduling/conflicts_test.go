package scheduling

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clinicore/backend/internal/domain"
)

type fakeOverlapQuerier struct {
	queryOverlapping func(ctx context.Context, ownerID string, kind domain.OwnerKind, rangeStart, rangeEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error)
}

func (f *fakeOverlapQuerier) QueryOverlapping(ctx context.Context, ownerID string, kind domain.OwnerKind, rangeStart, rangeEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error) {
	return f.queryOverlapping(ctx, ownerID, kind, rangeStart, rangeEnd, excludeID)
}

func testOccurrence() domain.Occurrence {
	start := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	return domain.Occurrence{
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
		ProviderID: "prov-1",
		ClientID:   "client-1",
	}
}

func TestFindConflicts_NoOverlaps(t *testing.T) {
	querier := &fakeOverlapQuerier{
		queryOverlapping: func(ctx context.Context, ownerID string, kind domain.OwnerKind, rangeStart, rangeEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error) {
			return nil, nil
		},
	}
	checker := NewConflictChecker(querier, ConflictCheckerConfig{}, zerolog.Nop())

	report, err := checker.FindConflicts(context.Background(), testOccurrence(), uuid.Nil)
	if err != nil {
		t.Fatalf("FindConflicts error: %v", err)
	}
	if len(report.Records) != 0 {
		t.Fatalf("Records = %v, want none", report.Records)
	}
	if report.Degraded {
		t.Fatalf("report degraded with a healthy store")
	}
}

func TestFindConflicts_ProviderPrecedence(t *testing.T) {
	occ := testOccurrence()
	both := domain.Appointment{
		ID:         uuid.New(),
		ProviderID: "prov-1",
		ClientID:   "client-1",
		Status:     domain.AppointmentStatusScheduled,
		StartTime:  occ.StartTime.Add(30 * time.Minute),
		EndTime:    occ.EndTime.Add(30 * time.Minute),
	}

	// The same appointment comes back from both probes; it must yield
	// exactly one record, typed provider_overlap.
	querier := &fakeOverlapQuerier{
		queryOverlapping: func(ctx context.Context, ownerID string, kind domain.OwnerKind, rangeStart, rangeEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error) {
			return []domain.Appointment{both}, nil
		},
	}
	checker := NewConflictChecker(querier, ConflictCheckerConfig{}, zerolog.Nop())

	report, err := checker.FindConflicts(context.Background(), occ, uuid.Nil)
	if err != nil {
		t.Fatalf("FindConflicts error: %v", err)
	}
	if len(report.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(report.Records))
	}
	rec := report.Records[0]
	if rec.ConflictType != domain.ConflictTypeProviderOverlap {
		t.Fatalf("ConflictType = %q, want provider_overlap", rec.ConflictType)
	}
	if rec.ConflictingAppointmentID != both.ID {
		t.Fatalf("ConflictingAppointmentID = %v, want %v", rec.ConflictingAppointmentID, both.ID)
	}
}

func TestFindConflicts_ClientOverlap(t *testing.T) {
	occ := testOccurrence()
	existing := domain.Appointment{
		ID:         uuid.New(),
		ProviderID: "other-prov",
		ClientID:   "client-1",
		Status:     domain.AppointmentStatusConfirmed,
		StartTime:  occ.StartTime,
		EndTime:    occ.EndTime,
	}

	querier := &fakeOverlapQuerier{
		queryOverlapping: func(ctx context.Context, ownerID string, kind domain.OwnerKind, rangeStart, rangeEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error) {
			if kind == domain.OwnerKindClient {
				return []domain.Appointment{existing}, nil
			}
			return nil, nil
		},
	}
	checker := NewConflictChecker(querier, ConflictCheckerConfig{}, zerolog.Nop())

	report, err := checker.FindConflicts(context.Background(), occ, uuid.Nil)
	if err != nil {
		t.Fatalf("FindConflicts error: %v", err)
	}
	if len(report.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(report.Records))
	}
	if report.Records[0].ConflictType != domain.ConflictTypeClientOverlap {
		t.Fatalf("ConflictType = %q, want client_overlap", report.Records[0].ConflictType)
	}
}

func TestFindConflicts_SkipsExcludedAndOutOfScope(t *testing.T) {
	occ := testOccurrence()
	excluded := domain.Appointment{
		ID:         uuid.New(),
		ProviderID: "prov-1",
		Status:     domain.AppointmentStatusScheduled,
		StartTime:  occ.StartTime,
		EndTime:    occ.EndTime,
	}
	cancelled := domain.Appointment{
		ID:         uuid.New(),
		ProviderID: "prov-1",
		Status:     domain.AppointmentStatusCancelled,
		StartTime:  occ.StartTime,
		EndTime:    occ.EndTime,
	}

	querier := &fakeOverlapQuerier{
		queryOverlapping: func(ctx context.Context, ownerID string, kind domain.OwnerKind, rangeStart, rangeEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error) {
			if kind == domain.OwnerKindProvider {
				return []domain.Appointment{excluded, cancelled}, nil
			}
			return nil, nil
		},
	}
	checker := NewConflictChecker(querier, ConflictCheckerConfig{}, zerolog.Nop())

	report, err := checker.FindConflicts(context.Background(), occ, excluded.ID)
	if err != nil {
		t.Fatalf("FindConflicts error: %v", err)
	}
	if len(report.Records) != 0 {
		t.Fatalf("Records = %v, want none", report.Records)
	}
}

func TestFindConflicts_DegradesOnQueryFailure(t *testing.T) {
	querier := &fakeOverlapQuerier{
		queryOverlapping: func(ctx context.Context, ownerID string, kind domain.OwnerKind, rangeStart, rangeEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error) {
			return nil, errors.New("connection refused")
		},
	}
	checker := NewConflictChecker(querier, ConflictCheckerConfig{}, zerolog.Nop())

	report, err := checker.FindConflicts(context.Background(), testOccurrence(), uuid.Nil)
	if err != nil {
		t.Fatalf("FindConflicts error: %v, want degraded report instead", err)
	}
	if !report.Degraded {
		t.Fatalf("report not flagged degraded after query failure")
	}
	if report.DegradedReason == "" {
		t.Fatalf("degraded report carries no reason")
	}
	if len(report.Records) != 0 {
		t.Fatalf("Records = %v, want none from a failed query", report.Records)
	}
}

func TestFindConflicts_StrictSurfacesError(t *testing.T) {
	querier := &fakeOverlapQuerier{
		queryOverlapping: func(ctx context.Context, ownerID string, kind domain.OwnerKind, rangeStart, rangeEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error) {
			return nil, errors.New("connection refused")
		},
	}
	checker := NewConflictChecker(querier, ConflictCheckerConfig{Strict: true}, zerolog.Nop())

	_, err := checker.FindConflicts(context.Background(), testOccurrence(), uuid.Nil)
	if err == nil {
		t.Fatalf("expected error in strict mode")
	}
	if !strings.Contains(err.Error(), "overlap query") {
		t.Fatalf("err = %v, want overlap query context", err)
	}
}

func TestFindConflicts_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	querier := &fakeOverlapQuerier{
		queryOverlapping: func(ctx context.Context, ownerID string, kind domain.OwnerKind, rangeStart, rangeEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error) {
			calls++
			return nil, errors.New("connection refused")
		},
	}
	checker := NewConflictChecker(querier, ConflictCheckerConfig{BreakerFailureThreshold: 2}, zerolog.Nop())

	// Each FindConflicts runs two probes. After two failures the breaker
	// is open and later probes never reach the store.
	for i := 0; i < 3; i++ {
		report, err := checker.FindConflicts(context.Background(), testOccurrence(), uuid.Nil)
		if err != nil {
			t.Fatalf("FindConflicts error: %v", err)
		}
		if !report.Degraded {
			t.Fatalf("report %d not degraded", i)
		}
	}
	if calls != 2 {
		t.Fatalf("store calls = %d, want 2 before the breaker opens", calls)
	}
}
