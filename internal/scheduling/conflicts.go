package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"clinicore/backend/internal/domain"
	"clinicore/backend/internal/store"
)

type ConflictCheckerConfig struct {
	// QueryTimeout bounds each overlap query; the store fetch is the
	// one network-bound step in conflict detection.
	QueryTimeout time.Duration

	// Strict surfaces an upstream query failure as an error instead of
	// degrading to an advisory "no conflicts found" result.
	Strict bool

	BreakerMaxRequests      uint32
	BreakerInterval         time.Duration
	BreakerTimeout          time.Duration
	BreakerFailureThreshold uint32
}

func (c ConflictCheckerConfig) normalized() ConflictCheckerConfig {
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 5 * time.Second
	}
	if c.BreakerMaxRequests == 0 {
		c.BreakerMaxRequests = 1
	}
	if c.BreakerInterval <= 0 {
		c.BreakerInterval = time.Minute
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	if c.BreakerFailureThreshold == 0 {
		c.BreakerFailureThreshold = 5
	}
	return c
}

// ConflictReport is the outcome of checking one candidate occurrence.
// Degraded means the overlap query was unavailable and the records are
// not trustworthy; a degraded report is never a genuine "no conflicts"
// answer.
type ConflictReport struct {
	Records        []domain.ConflictRecord
	Degraded       bool
	DegradedReason string
}

// ConflictChecker answers whether a candidate occurrence overlaps any
// existing, conflict-scoped appointment owned by its provider or
// client. Detection is advisory: by default an unavailable store
// degrades the report instead of blocking scheduling, and a circuit
// breaker keeps a failing store from stalling every request.
type ConflictChecker struct {
	querier store.OverlapQuerier
	breaker *gobreaker.CircuitBreaker[[]domain.Appointment]
	cfg     ConflictCheckerConfig
	log     zerolog.Logger
}

func NewConflictChecker(querier store.OverlapQuerier, cfg ConflictCheckerConfig, log zerolog.Logger) *ConflictChecker {
	cfg = cfg.normalized()

	settings := gobreaker.Settings{
		Name:        "appointment-overlap-query",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("overlap query breaker state changed")
		},
	}

	return &ConflictChecker{
		querier: querier,
		breaker: gobreaker.NewCircuitBreaker[[]domain.Appointment](settings),
		cfg:     cfg,
		log:     log,
	}
}

// FindConflicts checks the candidate against provider-owned and
// client-owned appointments independently. A single existing
// appointment yields at most one record; when it matches both owners
// the provider probe runs first, so provider_overlap wins.
func (c *ConflictChecker) FindConflicts(ctx context.Context, occ domain.Occurrence, excludeID uuid.UUID) (ConflictReport, error) {
	probes := []struct {
		ownerID string
		kind    domain.OwnerKind
	}{
		{occ.ProviderID, domain.OwnerKindProvider},
		{occ.ClientID, domain.OwnerKindClient},
	}

	var report ConflictReport
	seen := make(map[uuid.UUID]struct{})

	for _, probe := range probes {
		if probe.ownerID == "" {
			continue
		}

		appts, err := c.query(ctx, probe.ownerID, probe.kind, occ, excludeID)
		if err != nil {
			if c.cfg.Strict {
				return ConflictReport{}, fmt.Errorf("overlap query (%s): %w", probe.kind, err)
			}
			c.log.Warn().
				Err(err).
				Str("owner_kind", string(probe.kind)).
				Time("candidate_start", occ.StartTime).
				Msg("overlap query unavailable; conflict detection degraded")
			report.Degraded = true
			report.DegradedReason = fmt.Sprintf("overlap query for %s unavailable: %v", probe.kind, err)
			continue
		}

		for _, appt := range appts {
			if !appt.Status.ConflictScoped() {
				continue
			}
			if appt.ID == excludeID && excludeID != uuid.Nil {
				continue
			}
			if _, dup := seen[appt.ID]; dup {
				continue
			}
			seen[appt.ID] = struct{}{}
			report.Records = append(report.Records, domain.NewConflictRecord(appt, occ))
		}
	}

	return report, nil
}

func (c *ConflictChecker) query(ctx context.Context, ownerID string, kind domain.OwnerKind, occ domain.Occurrence, excludeID uuid.UUID) ([]domain.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	return c.breaker.Execute(func() ([]domain.Appointment, error) {
		return c.querier.QueryOverlapping(ctx, ownerID, kind, occ.StartTime, occ.EndTime, excludeID)
	})
}
