package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type treatmentRepository struct {
	BaseRepository
}

func NewTreatmentRepository(base BaseRepository) repository.TreatmentRepository {
	return &treatmentRepository{base}
}

func (r *treatmentRepository) Create(ctx context.Context, treatment *model.Treatment) error {
	treatment.Touch()
	query := `
		INSERT INTO treatments (
			id, patient_id, staff_id, appointment_id, description,
			diagnosis, notes, cost, treated_on, created_at, updated_at
		) VALUES (
			:id, :patient_id, :staff_id, :appointment_id, :description,
			:diagnosis, :notes, :cost, :treated_on, :created_at, :updated_at
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, treatment); err != nil {
		return fmt.Errorf("failed to create treatment: %w", mapError(err))
	}
	return nil
}

func (r *treatmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Treatment, error) {
	query := `
		SELECT * FROM treatments
		WHERE patient_id = $1
		ORDER BY treated_on DESC, created_at DESC
	`
	treatments := []*model.Treatment{}
	if err := r.db.SelectContext(ctx, &treatments, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list treatments: %w", err)
	}
	return treatments, nil
}
