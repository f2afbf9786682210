package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"clinicore/backend/internal/domain"
	"clinicore/backend/internal/scheduling"
	"clinicore/backend/internal/store"
)

const dateLayout = "2006-01-02"

// SchedulingService is the slice of the scheduling service the REST
// layer depends on.
type SchedulingService interface {
	Schedule(ctx context.Context, req scheduling.Request) (scheduling.Result, error)
	Book(ctx context.Context, req scheduling.Request) (scheduling.BookResult, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	List(ctx context.Context, q store.AppointmentQuery) ([]domain.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddWaitlistEntry(ctx context.Context, entry domain.WaitlistEntry) (domain.WaitlistEntry, error)
	Waitlist(ctx context.Context) ([]domain.WaitlistEntry, error)
	CreateProviderSchedule(ctx context.Context, sched domain.ProviderSchedule) (domain.ProviderSchedule, error)
	ProviderSchedules(ctx context.Context, providerID string) ([]domain.ProviderSchedule, error)
}

type Handler struct {
	svc SchedulingService
	log zerolog.Logger
}

func NewHandler(svc SchedulingService, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/appointments", h.CreateAppointment)
	g.POST("/appointments/conflicts", h.CheckConflicts)
	g.GET("/appointments", h.ListAppointments)
	g.GET("/appointments/:id", h.GetAppointment)
	g.PATCH("/appointments/:id/status", h.UpdateAppointmentStatus)
	g.DELETE("/appointments/:id", h.DeleteAppointment)
	g.POST("/waitlist", h.CreateWaitlistEntry)
	g.GET("/waitlist", h.ListWaitlist)
	g.POST("/provider-schedules", h.CreateProviderSchedule)
	g.GET("/provider-schedules", h.ListProviderSchedules)
}

type recurrencePayload struct {
	Pattern           string            `json:"pattern"`
	StartDate         string            `json:"start_date"`
	EndDate           string            `json:"end_date,omitempty"`
	TimeSlots         []domain.TimeSlot `json:"time_slots"`
	IsBusinessDayOnly bool              `json:"is_business_day_only"`
}

type appointmentPayload struct {
	ProviderID           string             `json:"provider_id"`
	ClientID             string             `json:"client_id"`
	AppointmentType      string             `json:"appointment_type"`
	Title                string             `json:"title,omitempty"`
	Description          string             `json:"description,omitempty"`
	Location             string             `json:"location,omitempty"`
	RoomNumber           string             `json:"room_number,omitempty"`
	StartTime            time.Time          `json:"start_time,omitempty"`
	DurationMinutes      int                `json:"duration_minutes"`
	Recurrence           *recurrencePayload `json:"recurrence,omitempty"`
	ExcludeAppointmentID string             `json:"exclude_appointment_id,omitempty"`
	IdempotencyKey       string             `json:"idempotency_key,omitempty"`
	CreatedBy            string             `json:"created_by,omitempty"`
	Force                bool               `json:"force,omitempty"`
}

func (p appointmentPayload) toRequest() (scheduling.Request, error) {
	req := scheduling.Request{
		ProviderID:      p.ProviderID,
		ClientID:        p.ClientID,
		AppointmentType: p.AppointmentType,
		Title:           p.Title,
		Description:     p.Description,
		Location:        p.Location,
		RoomNumber:      p.RoomNumber,
		StartTime:       p.StartTime,
		SessionDuration: time.Duration(p.DurationMinutes) * time.Minute,
		IdempotencyKey:  p.IdempotencyKey,
		CreatedBy:       p.CreatedBy,
		Force:           p.Force,
	}

	if p.ExcludeAppointmentID != "" {
		id, err := uuid.Parse(p.ExcludeAppointmentID)
		if err != nil {
			return scheduling.Request{}, echo.NewHTTPError(http.StatusBadRequest, "invalid exclude_appointment_id")
		}
		req.ExcludeAppointmentID = id
	}

	if p.Recurrence != nil {
		startDate, err := time.ParseInLocation(dateLayout, p.Recurrence.StartDate, time.UTC)
		if err != nil {
			return scheduling.Request{}, echo.NewHTTPError(http.StatusBadRequest, "recurrence start_date must be YYYY-MM-DD")
		}
		rec := scheduling.RecurrenceInput{
			Pattern:           domain.RecurrencePattern(p.Recurrence.Pattern),
			StartDate:         startDate,
			TimeSlots:         p.Recurrence.TimeSlots,
			IsBusinessDayOnly: p.Recurrence.IsBusinessDayOnly,
		}
		if p.Recurrence.EndDate != "" {
			endDate, err := time.ParseInLocation(dateLayout, p.Recurrence.EndDate, time.UTC)
			if err != nil {
				return scheduling.Request{}, echo.NewHTTPError(http.StatusBadRequest, "recurrence end_date must be YYYY-MM-DD")
			}
			rec.EndDate = &endDate
		}
		req.Recurrence = &rec
	}

	return req, nil
}

type occurrencePayload struct {
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	ProviderID string    `json:"provider_id"`
	ClientID   string    `json:"client_id"`
}

type occurrenceConflictsPayload struct {
	Occurrence occurrencePayload       `json:"occurrence"`
	Conflicts  []domain.ConflictRecord `json:"conflicts"`
}

type scheduleResultPayload struct {
	Accepted       []occurrencePayload          `json:"accepted"`
	Conflicts      []occurrenceConflictsPayload `json:"conflicts"`
	Degraded       bool                         `json:"degraded"`
	DegradedReason string                       `json:"degraded_reason,omitempty"`
	Booked         []domain.Appointment         `json:"booked,omitempty"`
}

func toResultPayload(res scheduling.Result, booked []domain.Appointment) scheduleResultPayload {
	out := scheduleResultPayload{
		Accepted:       make([]occurrencePayload, 0, len(res.Accepted)),
		Conflicts:      make([]occurrenceConflictsPayload, 0, len(res.Conflicts)),
		Degraded:       res.Degraded,
		DegradedReason: res.DegradedReason,
		Booked:         booked,
	}
	for _, occ := range res.Accepted {
		out.Accepted = append(out.Accepted, toOccurrencePayload(occ))
	}
	for _, oc := range res.Conflicts {
		out.Conflicts = append(out.Conflicts, occurrenceConflictsPayload{
			Occurrence: toOccurrencePayload(oc.Occurrence),
			Conflicts:  oc.Records,
		})
	}
	return out
}

func toOccurrencePayload(occ domain.Occurrence) occurrencePayload {
	return occurrencePayload{
		StartTime:  occ.StartTime,
		EndTime:    occ.EndTime,
		ProviderID: occ.ProviderID,
		ClientID:   occ.ClientID,
	}
}

// CreateAppointment books a single or recurring appointment. Conflicts
// without force return 409 with the full conflict report so the caller
// can decide per occurrence.
func (h *Handler) CreateAppointment(c echo.Context) error {
	var payload appointmentPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := payload.toRequest()
	if err != nil {
		return err
	}

	res, err := h.svc.Book(c.Request().Context(), req)
	if err != nil {
		return h.mapError(err)
	}
	if len(res.Conflicts) > 0 && len(res.Booked) == 0 {
		return c.JSON(http.StatusConflict, toResultPayload(res.Result, nil))
	}
	return c.JSON(http.StatusCreated, toResultPayload(res.Result, res.Booked))
}

// CheckConflicts runs the scheduling pipeline without persisting.
func (h *Handler) CheckConflicts(c echo.Context) error {
	var payload appointmentPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := payload.toRequest()
	if err != nil {
		return err
	}

	res, err := h.svc.Schedule(c.Request().Context(), req)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, toResultPayload(res, nil))
}

func (h *Handler) ListAppointments(c echo.Context) error {
	q := store.AppointmentQuery{
		ProviderID:      c.QueryParam("provider_id"),
		ClientID:        c.QueryParam("client_id"),
		Status:          domain.AppointmentStatus(c.QueryParam("status")),
		AppointmentType: c.QueryParam("appointment_type"),
	}
	if raw := c.QueryParam("range_start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "range_start must be RFC3339")
		}
		q.RangeStart = t
	}
	if raw := c.QueryParam("range_end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "range_end must be RFC3339")
		}
		q.RangeEnd = t
	}

	appts, err := h.svc.List(c.Request().Context(), q)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) UpdateAppointmentStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.svc.UpdateStatus(c.Request().Context(), id, domain.AppointmentStatus(payload.Status))
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return h.mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateWaitlistEntry(c echo.Context) error {
	var entry domain.WaitlistEntry
	if err := c.Bind(&entry); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.AddWaitlistEntry(c.Request().Context(), entry)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListWaitlist(c echo.Context) error {
	entries, err := h.svc.Waitlist(c.Request().Context())
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) CreateProviderSchedule(c echo.Context) error {
	var sched domain.ProviderSchedule
	if err := c.Bind(&sched); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.CreateProviderSchedule(c.Request().Context(), sched)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListProviderSchedules(c echo.Context) error {
	scheds, err := h.svc.ProviderSchedules(c.Request().Context(), c.QueryParam("provider_id"))
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, scheds)
}

func (h *Handler) mapError(err error) error {
	var vErr *scheduling.ValidationError
	switch {
	case errors.As(err, &vErr):
		return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrIdempotencyConflict):
		return echo.NewHTTPError(http.StatusConflict, "idempotency key conflict")
	case errors.Is(err, store.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "appointment conflicts with an existing booking")
	default:
		h.log.Error().Err(err).Msg("scheduling request failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
