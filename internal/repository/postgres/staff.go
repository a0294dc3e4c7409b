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
)

type staffRepository struct {
	BaseRepository
}

func NewStaffRepository(base BaseRepository) repository.StaffRepository {
	return &staffRepository{base}
}

func (r *staffRepository) Create(ctx context.Context, staff *model.Staff) error {
	staff.Touch()
	query := `
		INSERT INTO staff (
			id, first_name, last_name, email, phone,
			specialization, status, created_at, updated_at
		) VALUES (
			:id, :first_name, :last_name, :email, :phone,
			:specialization, :status, :created_at, :updated_at
		)
	`
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, staff); err != nil {
			return fmt.Errorf("failed to create staff: %w", mapError(err))
		}
		for i := range staff.Availability {
			staff.Availability[i].StaffID = staff.ID
		}
		return insertAvailability(ctx, tx, staff.Availability)
	})
}

func (r *staffRepository) Get(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	var staff model.Staff
	if err := r.db.GetContext(ctx, &staff, `SELECT * FROM staff WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}

	windows, err := r.GetAvailability(ctx, id)
	if err != nil {
		return nil, err
	}
	staff.Availability = windows
	return &staff, nil
}

func (r *staffRepository) Update(ctx context.Context, staff *model.Staff) error {
	staff.Touch()
	query := `
		UPDATE staff
		SET first_name = :first_name, last_name = :last_name, email = :email, phone = :phone,
			specialization = :specialization, status = :status, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, staff)
	if err != nil {
		return fmt.Errorf("failed to update staff: %w", mapError(err))
	}
	return expectOne(result)
}

func (r *staffRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM staff WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete staff: %w", err)
	}
	return expectOne(result)
}

func (r *staffRepository) List(ctx context.Context, filters *model.StaffFilters) ([]*model.Staff, int, error) {
	var w where
	if filters.Status != "" {
		w.add("status = $%d", filters.Status)
	}
	if filters.Specialization != "" {
		w.add("specialization ILIKE $%d", filters.Specialization)
	}
	if filters.SearchTerm != "" {
		w.add("(first_name || ' ' || last_name ILIKE $%d OR email ILIKE $%[1]d)", "%"+filters.SearchTerm+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM staff"+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count staff: %w", err)
	}

	query, args := w.page("SELECT * FROM staff"+w.String()+" ORDER BY last_name, first_name", filters.PageSize, filters.Offset())
	staff := []*model.Staff{}
	if err := r.db.SelectContext(ctx, &staff, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list staff: %w", err)
	}
	return staff, total, nil
}

func (r *staffRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, "staff")
}

func (r *staffRepository) GetAvailability(ctx context.Context, staffID uuid.UUID) ([]model.AvailabilityWindow, error) {
	query := `
		SELECT id, staff_id, day_of_week, start_minute, end_minute
		FROM staff_availability
		WHERE staff_id = $1
		ORDER BY day_of_week, start_minute
	`
	windows := []model.AvailabilityWindow{}
	if err := r.db.SelectContext(ctx, &windows, query, staffID); err != nil {
		return nil, fmt.Errorf("failed to get availability: %w", err)
	}
	return windows, nil
}

func (r *staffRepository) ReplaceAvailability(ctx context.Context, staffID uuid.UUID, windows []model.AvailabilityWindow) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockStaff(ctx, tx, staffID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM staff_availability WHERE staff_id = $1`, staffID); err != nil {
			return fmt.Errorf("failed to clear availability: %w", err)
		}
		for i := range windows {
			windows[i].StaffID = staffID
		}
		return insertAvailability(ctx, tx, windows)
	})
}

func insertAvailability(ctx context.Context, tx *sqlx.Tx, windows []model.AvailabilityWindow) error {
	query := `
		INSERT INTO staff_availability (id, staff_id, day_of_week, start_minute, end_minute)
		VALUES (:id, :staff_id, :day_of_week, :start_minute, :end_minute)
	`
	for i := range windows {
		if windows[i].ID == uuid.Nil {
			windows[i].ID = uuid.New()
		}
		if _, err := tx.NamedExecContext(ctx, query, windows[i]); err != nil {
			return fmt.Errorf("failed to insert availability: %w", mapError(err))
		}
	}
	return nil
}

// lockStaff serialises writes that depend on a staff member's schedule.
func lockStaff(ctx context.Context, tx *sqlx.Tx, staffID uuid.UUID) error {
	var id uuid.UUID
	if err := tx.GetContext(ctx, &id, `SELECT id FROM staff WHERE id = $1 FOR UPDATE`, staffID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("failed to lock staff: %w", err)
	}
	return nil
}
