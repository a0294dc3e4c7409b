package patient

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type PatientService interface {
	CreatePatient(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error)
	GetPatient(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Patient, error)
	UpdatePatient(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error
	ListPatients(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error)
	ListTreatments(ctx context.Context, actor model.Actor, patientID uuid.UUID) ([]*model.Treatment, error)
	AddTreatment(ctx context.Context, patientID uuid.UUID, req *model.CreateTreatmentRequest) (*model.Treatment, error)
}

type Service struct {
	repo          repository.PatientRepository
	treatmentRepo repository.TreatmentRepository
	staffRepo     repository.StaffRepository
	maxPageSize   int
}

func NewService(repo repository.PatientRepository, treatmentRepo repository.TreatmentRepository, staffRepo repository.StaffRepository, maxPageSize int) *Service {
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &Service{
		repo:          repo,
		treatmentRepo: treatmentRepo,
		staffRepo:     staffRepo,
		maxPageSize:   maxPageSize,
	}
}

func (s *Service) CreatePatient(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	patient := &model.Patient{
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       strings.ToLower(req.Email),
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
		Address:     req.Address,
		Status:      model.PatientStatusActive,
	}
	if err := validateBirthDate(patient.DateOfBirth); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, service.FromRepository("patient", err)
	}

	log.Ctx(ctx).Info().Str("patient_id", patient.ID.String()).Msg("patient created")
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Patient, error) {
	if !actor.CanAccessPatient(id) {
		return nil, apperrors.Forbidden("access to this patient is not allowed")
	}
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepository("patient", err)
	}
	return patient, nil
}

func (s *Service) UpdatePatient(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.GetPatient(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.IsPatient() && req.Status != nil {
		return nil, apperrors.Forbidden("patients cannot change their status")
	}

	req.Apply(patient)
	patient.Email = strings.ToLower(patient.Email)
	if err := validateBirthDate(patient.DateOfBirth); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, service.FromRepository("patient", err)
	}
	return patient, nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return service.FromRepository("patient", err)
	}
	log.Ctx(ctx).Info().Str("patient_id", id.String()).Msg("patient deleted")
	return nil
}

func (s *Service) ListPatients(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error) {
	filters.Normalize(s.maxPageSize)
	patients, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, service.FromRepository("patient", err)
	}
	return patients, total, nil
}

func (s *Service) ListTreatments(ctx context.Context, actor model.Actor, patientID uuid.UUID) ([]*model.Treatment, error) {
	if _, err := s.GetPatient(ctx, actor, patientID); err != nil {
		return nil, err
	}
	treatments, err := s.treatmentRepo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, service.FromRepository("treatment", err)
	}
	return treatments, nil
}

func (s *Service) AddTreatment(ctx context.Context, patientID uuid.UUID, req *model.CreateTreatmentRequest) (*model.Treatment, error) {
	if _, err := s.repo.Get(ctx, patientID); err != nil {
		return nil, service.FromRepository("patient", err)
	}

	staffID, err := uuid.Parse(req.StaffID)
	if err != nil {
		return nil, apperrors.BadRequest("invalid staff_id", err)
	}
	if _, err := s.staffRepo.Get(ctx, staffID); err != nil {
		return nil, service.FromRepository("staff", err)
	}

	treatment := &model.Treatment{
		PatientID:   patientID,
		StaffID:     staffID,
		Description: req.Description,
		Diagnosis:   req.Diagnosis,
		Notes:       req.Notes,
		Cost:        req.Cost,
		TreatedOn:   model.DateOf(time.Now()),
	}
	if req.AppointmentID != "" {
		id, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			return nil, apperrors.BadRequest("invalid appointment_id", err)
		}
		treatment.AppointmentID = &id
	}
	if req.TreatedOn != "" {
		day, err := model.ParseDate(req.TreatedOn)
		if err != nil {
			return nil, apperrors.BadRequest(err.Error(), err)
		}
		treatment.TreatedOn = day
	}

	if err := s.treatmentRepo.Create(ctx, treatment); err != nil {
		return nil, service.FromRepository("treatment", err)
	}
	return treatment, nil
}

func validateBirthDate(dob *time.Time) error {
	if dob != nil && dob.After(time.Now()) {
		return apperrors.BadRequest("date_of_birth cannot be in the future", nil)
	}
	return nil
}
