package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"clinicore/backend/internal/domain"
)

// OverlapQuerier answers "which existing appointments owned by this
// provider or client overlap this range". The range test is inclusive
// at both ends and the query must exclude cancelled and no-show
// appointments. A uuid.Nil excludeID means no exclusion; a non-nil one
// lets an update skip the appointment being edited.
type OverlapQuerier interface {
	QueryOverlapping(ctx context.Context, ownerID string, kind domain.OwnerKind, rangeStart, rangeEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error)
}

type AppointmentQuery struct {
	ProviderID      string
	ClientID        string
	Status          domain.AppointmentStatus
	AppointmentType string
	RangeStart      time.Time
	RangeEnd        time.Time
}

type AppointmentRepository interface {
	OverlapQuerier

	Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	CreateBatch(ctx context.Context, rule domain.RecurringRule, appts []domain.Appointment) ([]domain.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	List(ctx context.Context, q AppointmentQuery) ([]domain.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type WaitlistRepository interface {
	CreateWaitlistEntry(ctx context.Context, entry domain.WaitlistEntry) (domain.WaitlistEntry, error)
	ListUnfulfilledWaitlist(ctx context.Context) ([]domain.WaitlistEntry, error)
}

type ProviderScheduleRepository interface {
	CreateProviderSchedule(ctx context.Context, sched domain.ProviderSchedule) (domain.ProviderSchedule, error)
	ListProviderSchedules(ctx context.Context, providerID string) ([]domain.ProviderSchedule, error)
}
