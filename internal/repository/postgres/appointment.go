package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/schedule"
)

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

const selectAppointmentDetail = `
	SELECT a.*,
		p.first_name || ' ' || p.last_name AS patient_name,
		s.first_name || ' ' || s.last_name AS staff_name,
		sv.name AS service_name
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN staff s ON s.id = a.staff_id
	JOIN services sv ON sv.id = a.service_id
`

// Two intervals [s1,e1) and [s2,e2) overlap iff s1 < e2 AND e1 > s2.
const conflictPredicate = `
	staff_id = $1
	AND appointment_date = $2
	AND status NOT IN ('cancelled', 'no_show')
	AND start_minute < $4
	AND end_minute > $3
`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment, event *model.OutboxEvent) error {
	appointment.Touch()
	query := `
		INSERT INTO appointments (
			id, patient_id, staff_id, service_id, appointment_date,
			start_minute, end_minute, status, notes, cancel_reason,
			created_at, updated_at
		) VALUES (
			:id, :patient_id, :staff_id, :service_id, :appointment_date,
			:start_minute, :end_minute, :status, :notes, :cancel_reason,
			:created_at, :updated_at
		)
	`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.guardSlot(ctx, tx, appointment, nil); err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, query, appointment); err != nil {
			return fmt.Errorf("failed to create appointment: %w", mapError(err))
		}
		return insertOutboxEvent(ctx, tx, event)
	})
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, `SELECT * FROM appointments WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) GetDetail(ctx context.Context, id uuid.UUID) (*model.AppointmentDetail, error) {
	var detail model.AppointmentDetail
	if err := r.db.GetContext(ctx, &detail, selectAppointmentDetail+" WHERE a.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &detail, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment, event *model.OutboxEvent) error {
	appointment.Touch()
	query := `
		UPDATE appointments
		SET staff_id = :staff_id, service_id = :service_id, appointment_date = :appointment_date,
			start_minute = :start_minute, end_minute = :end_minute, status = :status,
			notes = :notes, cancel_reason = :cancel_reason, updated_at = :updated_at
		WHERE id = :id
	`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if appointment.Status.Occupies() {
			if err := r.guardSlot(ctx, tx, appointment, &appointment.ID); err != nil {
				return err
			}
		}
		result, err := tx.NamedExecContext(ctx, query, appointment)
		if err != nil {
			return fmt.Errorf("failed to update appointment: %w", mapError(err))
		}
		if err := expectOne(result); err != nil {
			return err
		}
		return insertOutboxEvent(ctx, tx, event)
	})
}

// guardSlot locks the staff row and re-runs the overlap query inside tx so
// concurrent bookings for one staff member are serialised.
func (r *appointmentRepository) guardSlot(ctx context.Context, tx *sqlx.Tx, a *model.Appointment, excludeID *uuid.UUID) error {
	if err := lockStaff(ctx, tx, a.StaffID); err != nil {
		return err
	}
	conflict, err := hasConflict(ctx, tx, model.ConflictQuery{
		StaffID:   a.StaffID,
		Date:      a.Date,
		Interval:  a.Interval(),
		ExcludeID: excludeID,
	})
	if err != nil {
		return err
	}
	if conflict {
		return repository.ErrSlotTaken
	}
	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", mapError(err))
	}
	return expectOne(result)
}

func appointmentWhere(filters *model.AppointmentFilters) where {
	var w where
	if filters.PatientID != uuid.Nil {
		w.add("a.patient_id = $%d", filters.PatientID)
	}
	if filters.StaffID != uuid.Nil {
		w.add("a.staff_id = $%d", filters.StaffID)
	}
	if filters.Status != "" {
		w.add("a.status = $%d", filters.Status)
	}
	if filters.From != nil {
		w.add("a.appointment_date >= $%d", *filters.From)
	}
	if filters.To != nil {
		w.add("a.appointment_date <= $%d", *filters.To)
	}
	return w
}

const appointmentOrder = " ORDER BY a.appointment_date, a.start_minute"

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, int, error) {
	w := appointmentWhere(filters)

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM appointments a"+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count appointments: %w", err)
	}

	query, args := w.page(selectAppointmentDetail+w.String()+appointmentOrder, filters.PageSize, filters.Offset())
	appointments := []*model.AppointmentDetail{}
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, total, nil
}

func (r *appointmentRepository) ListDay(ctx context.Context, date model.Date, staffID uuid.UUID) ([]*model.AppointmentDetail, error) {
	w := appointmentWhere(&model.AppointmentFilters{StaffID: staffID, From: &date, To: &date})

	appointments := []*model.AppointmentDetail{}
	if err := r.db.SelectContext(ctx, &appointments, selectAppointmentDetail+w.String()+appointmentOrder, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments for %s: %w", date, err)
	}
	return appointments, nil
}

func (r *appointmentRepository) HasConflict(ctx context.Context, q model.ConflictQuery) (bool, error) {
	return hasConflict(ctx, r.db, q)
}

func hasConflict(ctx context.Context, db sqlx.QueryerContext, q model.ConflictQuery) (bool, error) {
	query := "SELECT EXISTS (SELECT 1 FROM appointments WHERE" + conflictPredicate
	args := []interface{}{q.StaffID, q.Date, q.Interval.Start, q.Interval.End}
	if q.ExcludeID != nil {
		query += " AND id <> $5"
		args = append(args, *q.ExcludeID)
	}
	query += ")"

	var conflict bool
	if err := sqlx.GetContext(ctx, db, &conflict, query, args...); err != nil {
		return false, fmt.Errorf("failed to check conflicts: %w", err)
	}
	return conflict, nil
}

func (r *appointmentRepository) ListBooked(ctx context.Context, staffID uuid.UUID, date model.Date, excludeID *uuid.UUID) ([]schedule.Interval, error) {
	query := `
		SELECT start_minute, end_minute
		FROM appointments
		WHERE staff_id = $1
		AND appointment_date = $2
		AND status NOT IN ('cancelled', 'no_show')
	`
	args := []interface{}{staffID, date}
	if excludeID != nil {
		query += " AND id <> $3"
		args = append(args, *excludeID)
	}
	query += " ORDER BY start_minute"

	var rows []struct {
		Start schedule.Clock `db:"start_minute"`
		End   schedule.Clock `db:"end_minute"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list booked intervals: %w", err)
	}

	booked := make([]schedule.Interval, 0, len(rows))
	for _, row := range rows {
		booked = append(booked, schedule.Interval{Start: row.Start, End: row.End})
	}
	return booked, nil
}

func (r *appointmentRepository) CountByStatus(ctx context.Context, from, to model.Date) (map[model.AppointmentStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM appointments
		WHERE appointment_date BETWEEN $1 AND $2
		GROUP BY status
	`
	var rows []struct {
		Status model.AppointmentStatus `db:"status"`
		Count  int                     `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to count appointments by status: %w", err)
	}

	counts := make(map[model.AppointmentStatus]int, len(model.AllAppointmentStatuses))
	for _, s := range model.AllAppointmentStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *appointmentRepository) CountUpcoming(ctx context.Context, from model.Date) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM appointments
		WHERE appointment_date >= $1
		AND status IN ('scheduled', 'confirmed')
	`
	var n int
	if err := r.db.GetContext(ctx, &n, query, from); err != nil {
		return 0, fmt.Errorf("failed to count upcoming appointments: %w", err)
	}
	return n, nil
}
