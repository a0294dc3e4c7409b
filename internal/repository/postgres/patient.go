package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

const insertPatient = `
	INSERT INTO patients (
		id, first_name, last_name, email, phone, date_of_birth,
		gender, address, status, created_at, updated_at
	) VALUES (
		:id, :first_name, :last_name, :email, :phone, :date_of_birth,
		:gender, :address, :status, :created_at, :updated_at
	)
`

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	patient.Touch()
	if _, err := r.db.NamedExecContext(ctx, insertPatient, patient); err != nil {
		return fmt.Errorf("failed to create patient: %w", mapError(err))
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, `SELECT * FROM patients WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	patient.Touch()
	query := `
		UPDATE patients
		SET first_name = :first_name, last_name = :last_name, email = :email,
			phone = :phone, date_of_birth = :date_of_birth, gender = :gender,
			address = :address, status = :status, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, patient)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", mapError(err))
	}
	return expectOne(result)
}

func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return expectOne(result)
}

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error) {
	var w where
	if filters.Status != "" {
		w.add("status = $%d", filters.Status)
	}
	if filters.SearchTerm != "" {
		w.add("(first_name || ' ' || last_name ILIKE $%d OR email ILIKE $%[1]d OR phone ILIKE $%[1]d)",
			"%"+filters.SearchTerm+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM patients"+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}

	query, args := w.page("SELECT * FROM patients"+w.String()+" ORDER BY last_name, first_name", filters.PageSize, filters.Offset())
	patients := []*model.Patient{}
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, total, nil
}

func (r *patientRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, "patients")
}

func expectOne(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}
