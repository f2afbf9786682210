package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"clinicore/backend/internal/domain"
	"clinicore/backend/internal/store"
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

// QueryOverlapping implements the conflict-scoped overlap query. The
// range test is inclusive at both ends (end_time >= rangeStart AND
// start_time <= rangeEnd), so back-to-back appointments touching at a
// boundary are returned. Cancelled and no-show appointments never
// block a calendar.
func (r *AppointmentRepo) QueryOverlapping(ctx context.Context, ownerID string, kind domain.OwnerKind, rangeStart, rangeEnd time.Time, excludeID uuid.UUID) ([]domain.Appointment, error) {
	ownerColumn := "provider_id"
	if kind == domain.OwnerKindClient {
		ownerColumn = "client_id"
	}

	var rows []domain.Appointment
	q := r.db.NewSelect().
		Model(&rows).
		Where("? = ?", bun.Ident(ownerColumn), ownerID).
		Where("end_time >= ?", rangeStart).
		Where("start_time <= ?", rangeEnd).
		Where("status IN (?)", bun.In(domain.ConflictScopedStatuses())).
		OrderExpr("start_time ASC")
	if excludeID != uuid.Nil {
		q = q.Where("id != ?", excludeID)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.inProviderTransaction(ctx, appt.ProviderID, func(ctx context.Context, tx bun.Tx) error {
		a, err := insertAppointment(ctx, tx, appt)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

// CreateBatch persists a recurring rule and all of its occurrences in
// one transaction: either every appointment lands or none do.
func (r *AppointmentRepo) CreateBatch(ctx context.Context, rule domain.RecurringRule, appts []domain.Appointment) ([]domain.Appointment, error) {
	if len(appts) == 0 {
		return nil, nil
	}

	out := make([]domain.Appointment, 0, len(appts))
	err := r.inProviderTransaction(ctx, rule.ProviderID, func(ctx context.Context, tx bun.Tx) error {
		ruleModel := rule
		if _, err := tx.NewInsert().Model(&ruleModel).Exec(ctx); err != nil {
			return err
		}

		for _, appt := range appts {
			ruleID := ruleModel.ID
			appt.RecurringRuleID = &ruleID
			a, err := insertAppointment(ctx, tx, appt)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AppointmentRepo) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var m domain.Appointment
	err := r.db.NewSelect().
		Model(&m).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return m, nil
}

func (r *AppointmentRepo) List(ctx context.Context, q store.AppointmentQuery) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	sel := r.db.NewSelect().Model(&rows).OrderExpr("start_time ASC")
	if q.ProviderID != "" {
		sel = sel.Where("provider_id = ?", q.ProviderID)
	}
	if q.ClientID != "" {
		sel = sel.Where("client_id = ?", q.ClientID)
	}
	if q.Status != "" {
		sel = sel.Where("status = ?", q.Status)
	}
	if q.AppointmentType != "" {
		sel = sel.Where("appointment_type = ?", q.AppointmentType)
	}
	if !q.RangeStart.IsZero() && !q.RangeEnd.IsZero() {
		sel = sel.Where("start_time >= ?", q.RangeStart).
			Where("start_time <= ?", q.RangeEnd)
	}

	if err := sel.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus moves an appointment through its lifecycle and stamps
// the matching timestamp column.
func (r *AppointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var m domain.Appointment
		err := tx.NewSelect().
			Model(&m).
			Where("id = ?", id).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}

		now := time.Now().UTC()
		m.Status = status
		switch status {
		case domain.AppointmentStatusCheckedIn:
			m.CheckedInAt = &now
		case domain.AppointmentStatusCompleted:
			m.CompletedAt = &now
		case domain.AppointmentStatusCancelled, domain.AppointmentStatusNoShow:
			m.CancelledAt = &now
		}

		_, err = tx.NewUpdate().
			Model(&m).
			Column("status", "checked_in_at", "completed_at", "cancelled_at", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *AppointmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *AppointmentRepo) CreateWaitlistEntry(ctx context.Context, entry domain.WaitlistEntry) (domain.WaitlistEntry, error) {
	m := entry
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.WaitlistEntry{}, err
	}
	return m, nil
}

func (r *AppointmentRepo) ListUnfulfilledWaitlist(ctx context.Context) ([]domain.WaitlistEntry, error) {
	var rows []domain.WaitlistEntry
	err := r.db.NewSelect().
		Model(&rows).
		Where("is_fulfilled = ?", false).
		OrderExpr("priority DESC").
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) CreateProviderSchedule(ctx context.Context, sched domain.ProviderSchedule) (domain.ProviderSchedule, error) {
	m := sched
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.ProviderSchedule{}, err
	}
	return m, nil
}

func (r *AppointmentRepo) ListProviderSchedules(ctx context.Context, providerID string) ([]domain.ProviderSchedule, error) {
	var rows []domain.ProviderSchedule
	q := r.db.NewSelect().
		Model(&rows).
		OrderExpr("day_of_week ASC").
		OrderExpr("start_time ASC")
	if providerID != "" {
		q = q.Where("provider_id = ?", providerID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

// inProviderTransaction serializes writes against one provider's
// calendar with a transaction-scoped advisory lock. True double-booking
// prevention still needs the appointments_no_overlap constraint; the
// lock keeps concurrent batch creates from interleaving.
func (r *AppointmentRepo) inProviderTransaction(ctx context.Context, providerID string, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", providerID).Exec(ctx); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
}

func insertAppointment(ctx context.Context, tx bun.Tx, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	_, err := tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_overlap" {
				return domain.Appointment{}, store.ErrConflict
			}
			if pgErr.Code == "23505" {
				var existing domain.Appointment
				selectErr := tx.NewSelect().
					Model(&existing).
					Where("id = ?", m.ID).
					Limit(1).
					Scan(ctx)
				if selectErr != nil {
					return domain.Appointment{}, err
				}

				if existing.ProviderID != appt.ProviderID ||
					existing.ClientID != appt.ClientID ||
					existing.AppointmentType != appt.AppointmentType ||
					!existing.StartTime.Equal(appt.StartTime) ||
					!existing.EndTime.Equal(appt.EndTime) {
					return domain.Appointment{}, store.ErrIdempotencyConflict
				}

				return existing, nil
			}
		}
		return domain.Appointment{}, err
	}
	return m, nil
}
