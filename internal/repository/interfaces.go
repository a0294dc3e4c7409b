package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/schedule"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrDuplicate  = errors.New("record already exists")
	// ErrReferenced is returned when a write breaks a foreign key, either a
	// missing parent on insert or a dependent row on delete.
	ErrReferenced = errors.New("record is referenced")
	// ErrSlotTaken is returned when a booking overlaps an occupying appointment
	// of the same staff member, whether detected by query or by the unique index.
	ErrSlotTaken  = errors.New("slot already booked")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		// CreateWithPatient stores a patient record and its login atomically.
		CreateWithPatient(ctx context.Context, user *model.User, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error)
		Count(ctx context.Context) (int, error)
	}

	StaffRepository interface {
		Create(ctx context.Context, staff *model.Staff) error
		Get(ctx context.Context, id uuid.UUID) (*model.Staff, error)
		Update(ctx context.Context, staff *model.Staff) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.StaffFilters) ([]*model.Staff, int, error)
		Count(ctx context.Context) (int, error)
		GetAvailability(ctx context.Context, staffID uuid.UUID) ([]model.AvailabilityWindow, error)
		ReplaceAvailability(ctx context.Context, staffID uuid.UUID, windows []model.AvailabilityWindow) error
	}

	ServiceRepository interface {
		Create(ctx context.Context, service *model.Service) error
		Get(ctx context.Context, id uuid.UUID) (*model.Service, error)
		Update(ctx context.Context, service *model.Service) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.ServiceFilters) ([]*model.Service, error)
		Count(ctx context.Context) (int, error)
	}

	AppointmentRepository interface {
		// Create inserts the appointment and its outbox event in one transaction,
		// returning ErrSlotTaken if the staff member is already booked.
		Create(ctx context.Context, appointment *model.Appointment, event *model.OutboxEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		GetDetail(ctx context.Context, id uuid.UUID) (*model.AppointmentDetail, error)
		// Update rewrites the appointment and records event, re-checking
		// conflicts when the appointment still occupies staff time.
		Update(ctx context.Context, appointment *model.Appointment, event *model.OutboxEvent) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, int, error)
		// ListDay returns every appointment on date, unpaged. A nil staffID
		// means all staff.
		ListDay(ctx context.Context, date model.Date, staffID uuid.UUID) ([]*model.AppointmentDetail, error)
		HasConflict(ctx context.Context, q model.ConflictQuery) (bool, error)
		// ListBooked returns the occupied intervals of a staff member on a day.
		ListBooked(ctx context.Context, staffID uuid.UUID, date model.Date, excludeID *uuid.UUID) ([]schedule.Interval, error)
		CountByStatus(ctx context.Context, from, to model.Date) (map[model.AppointmentStatus]int, error)
		CountUpcoming(ctx context.Context, from model.Date) (int, error)
	}

	TreatmentRepository interface {
		Create(ctx context.Context, treatment *model.Treatment) error
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Treatment, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error
		DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
)
