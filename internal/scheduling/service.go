package scheduling

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"clinicore/backend/internal/domain"
	"clinicore/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Repository is the full store surface the scheduling service needs.
type Repository interface {
	store.AppointmentRepository
	store.WaitlistRepository
	store.ProviderScheduleRepository
}

type Config struct {
	Horizon domain.Horizon

	// ConflictWorkers bounds the parallel per-occurrence conflict
	// lookups. Lookups are read-only and independent; results are
	// reassembled in chronological order regardless.
	ConflictWorkers int
}

type Service struct {
	repo    Repository
	checker *ConflictChecker
	horizon domain.Horizon
	workers int
	log     zerolog.Logger
}

func NewService(repo Repository, checker *ConflictChecker, cfg Config, log zerolog.Logger) *Service {
	horizon := cfg.Horizon
	if horizon.Window <= 0 && horizon.MaxOccurrences <= 0 {
		horizon = domain.DefaultHorizon()
	}
	workers := cfg.ConflictWorkers
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		repo:    repo,
		checker: checker,
		horizon: horizon,
		workers: workers,
		log:     log,
	}
}

type RecurrenceInput struct {
	Pattern           domain.RecurrencePattern
	StartDate         time.Time
	EndDate           *time.Time
	TimeSlots         []domain.TimeSlot
	IsBusinessDayOnly bool
}

// Request is a scheduling request: either a single appointment
// (StartTime set) or a recurring rule (Recurrence set).
type Request struct {
	ProviderID      string
	ClientID        string
	AppointmentType string
	Title           string
	Description     string
	Location        string
	RoomNumber      string

	StartTime       time.Time
	SessionDuration time.Duration
	Recurrence      *RecurrenceInput

	// ExcludeAppointmentID lets an update skip the appointment being
	// edited in conflict queries.
	ExcludeAppointmentID uuid.UUID

	CreatedBy      string
	IdempotencyKey string

	// Force books the occurrences even when conflicts were found.
	Force bool
}

// OccurrenceConflicts pairs one candidate occurrence with every
// conflict found for it.
type OccurrenceConflicts struct {
	Occurrence domain.Occurrence
	Records    []domain.ConflictRecord
}

// Result is the orchestrator's answer: the conflict-free occurrences,
// the full conflict picture (no short-circuiting), and whether any
// lookup ran degraded. Persistence policy belongs to the caller.
type Result struct {
	Accepted       []domain.Occurrence
	Conflicts      []OccurrenceConflicts
	Degraded       bool
	DegradedReason string
}

// Schedule validates the request, expands recurrence, filters business
// days, and checks every occurrence against the conflict index. It
// never persists anything.
func (s *Service) Schedule(ctx context.Context, req Request) (Result, error) {
	occs, _, err := s.buildOccurrences(req)
	if err != nil {
		return Result{}, err
	}
	return s.checkOccurrences(ctx, occs, req.ExcludeAppointmentID)
}

// BookResult extends Result with the appointments actually persisted.
type BookResult struct {
	Result
	Booked []domain.Appointment
}

// Book runs Schedule and, when the result is clean (or Force is set),
// persists every occurrence in one all-or-nothing batch. With
// conflicts and no Force nothing is persisted and the result carries
// the full conflict report for the caller to act on.
func (s *Service) Book(ctx context.Context, req Request) (BookResult, error) {
	occs, rule, err := s.buildOccurrences(req)
	if err != nil {
		return BookResult{}, err
	}

	res, err := s.checkOccurrences(ctx, occs, req.ExcludeAppointmentID)
	if err != nil {
		return BookResult{}, err
	}

	if len(res.Conflicts) > 0 && !req.Force {
		return BookResult{Result: res}, nil
	}

	if req.Force && len(res.Conflicts) > 0 {
		s.log.Warn().
			Int("conflicting_occurrences", len(res.Conflicts)).
			Str("provider_id", req.ProviderID).
			Str("client_id", req.ClientID).
			Msg("booking forced despite conflicts")
	}

	appts := make([]domain.Appointment, 0, len(occs))
	for _, occ := range occs {
		appts = append(appts, s.toAppointment(req, occ))
	}

	var booked []domain.Appointment
	if rule != nil {
		booked, err = s.repo.CreateBatch(ctx, *rule, appts)
		if err != nil {
			return BookResult{}, err
		}
	} else {
		appt, err := s.repo.Create(ctx, appts[0])
		if err != nil {
			return BookResult{}, err
		}
		booked = []domain.Appointment{appt}
	}

	return BookResult{Result: res, Booked: booked}, nil
}

func (s *Service) buildOccurrences(req Request) ([]domain.Occurrence, *domain.RecurringRule, error) {
	if req.ProviderID == "" {
		return nil, nil, validationError("provider_id is required")
	}
	if req.ClientID == "" {
		return nil, nil, validationError("client_id is required")
	}
	if strings.TrimSpace(req.AppointmentType) == "" {
		return nil, nil, validationError("appointment_type is required")
	}
	if req.SessionDuration <= 0 {
		return nil, nil, validationError("session duration must be positive")
	}

	if req.Recurrence == nil {
		if req.StartTime.IsZero() {
			return nil, nil, validationError("start_time is required")
		}
		occ := domain.Occurrence{
			StartTime:  req.StartTime,
			EndTime:    req.StartTime.Add(req.SessionDuration),
			ProviderID: req.ProviderID,
			ClientID:   req.ClientID,
		}
		return []domain.Occurrence{occ}, nil, nil
	}

	rule := domain.RecurringRule{
		ProviderID:        req.ProviderID,
		ClientID:          req.ClientID,
		Pattern:           req.Recurrence.Pattern,
		StartDate:         req.Recurrence.StartDate,
		EndDate:           req.Recurrence.EndDate,
		TimeSlots:         req.Recurrence.TimeSlots,
		IsBusinessDayOnly: req.Recurrence.IsBusinessDayOnly,
	}

	occs, err := domain.ExpandRule(rule, req.SessionDuration, s.horizon)
	if err != nil {
		return nil, nil, validationError(err.Error())
	}
	if rule.IsBusinessDayOnly {
		occs = domain.FilterBusinessDays(occs)
	}
	return occs, &rule, nil
}

// checkOccurrences fans conflict lookups out over a bounded worker
// pool and reassembles reports in the occurrences' original
// (chronological) order.
func (s *Service) checkOccurrences(ctx context.Context, occs []domain.Occurrence, excludeID uuid.UUID) (Result, error) {
	reports := make([]ConflictReport, len(occs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, occ := range occs {
		g.Go(func() error {
			report, err := s.checker.FindConflicts(gctx, occ, excludeID)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var res Result
	for i, occ := range occs {
		report := reports[i]
		if report.Degraded {
			res.Degraded = true
			if res.DegradedReason == "" {
				res.DegradedReason = report.DegradedReason
			}
		}
		if len(report.Records) == 0 {
			res.Accepted = append(res.Accepted, occ)
			continue
		}
		res.Conflicts = append(res.Conflicts, OccurrenceConflicts{
			Occurrence: occ,
			Records:    report.Records,
		})
	}
	return res, nil
}

func (s *Service) toAppointment(req Request, occ domain.Occurrence) domain.Appointment {
	appt := domain.Appointment{
		ProviderID:      occ.ProviderID,
		ClientID:        occ.ClientID,
		AppointmentType: req.AppointmentType,
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		StartTime:       occ.StartTime,
		EndTime:         occ.EndTime,
		Status:          domain.AppointmentStatusScheduled,
		Location:        req.Location,
		RoomNumber:      req.RoomNumber,
		CreatedBy:       req.CreatedBy,
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if req.Recurrence == nil && key != "" {
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("clinicore:create_appointment:"+req.ProviderID+":"+key))
	}
	return appt
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, q store.AppointmentQuery) ([]domain.Appointment, error) {
	if !q.RangeStart.IsZero() && !q.RangeEnd.IsZero() && !q.RangeEnd.After(q.RangeStart) {
		return nil, validationError("range_end must be after range_start")
	}
	return s.repo.List(ctx, q)
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if !status.Valid() {
		return domain.Appointment{}, validationError("unknown appointment status")
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return validationError("appointment_id is required")
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) AddWaitlistEntry(ctx context.Context, entry domain.WaitlistEntry) (domain.WaitlistEntry, error) {
	if entry.ClientID == "" {
		return domain.WaitlistEntry{}, validationError("client_id is required")
	}
	if entry.ProviderID == "" {
		return domain.WaitlistEntry{}, validationError("provider_id is required")
	}
	if strings.TrimSpace(entry.AppointmentType) == "" {
		return domain.WaitlistEntry{}, validationError("appointment_type is required")
	}
	if entry.PreferredDate.IsZero() {
		return domain.WaitlistEntry{}, validationError("preferred_date is required")
	}
	if entry.Priority == 0 {
		entry.Priority = 1
	}
	entry.IsFulfilled = false
	return s.repo.CreateWaitlistEntry(ctx, entry)
}

func (s *Service) Waitlist(ctx context.Context) ([]domain.WaitlistEntry, error) {
	return s.repo.ListUnfulfilledWaitlist(ctx)
}

func (s *Service) CreateProviderSchedule(ctx context.Context, sched domain.ProviderSchedule) (domain.ProviderSchedule, error) {
	if sched.ProviderID == "" {
		return domain.ProviderSchedule{}, validationError("provider_id is required")
	}
	if sched.DayOfWeek < 0 || sched.DayOfWeek > 6 {
		return domain.ProviderSchedule{}, validationError("day_of_week must be 0-6")
	}
	if _, _, err := (domain.TimeSlot{Time: sched.StartTime}).ClockTime(); err != nil {
		return domain.ProviderSchedule{}, validationError("start_time must be HH:MM")
	}
	if _, _, err := (domain.TimeSlot{Time: sched.EndTime}).ClockTime(); err != nil {
		return domain.ProviderSchedule{}, validationError("end_time must be HH:MM")
	}
	if sched.EndTime <= sched.StartTime {
		return domain.ProviderSchedule{}, validationError("end_time must be after start_time")
	}
	if sched.EffectiveFrom.IsZero() {
		sched.EffectiveFrom = time.Now().UTC()
	}
	if sched.Status == "" {
		sched.Status = "active"
	}
	return s.repo.CreateProviderSchedule(ctx, sched)
}

func (s *Service) ProviderSchedules(ctx context.Context, providerID string) ([]domain.ProviderSchedule, error) {
	return s.repo.ListProviderSchedules(ctx, providerID)
}
