package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Repositories bundles every postgres-backed repository over one pool.
type Repositories struct {
	Users        repository.UserRepository
	Patients     repository.PatientRepository
	Staff        repository.StaffRepository
	Services     repository.ServiceRepository
	Appointments repository.AppointmentRepository
	Treatments   repository.TreatmentRepository
	Outbox       repository.OutboxRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	base := NewBaseRepository(db)
	return &Repositories{
		Users:        NewUserRepository(base),
		Patients:     NewPatientRepository(base),
		Staff:        NewStaffRepository(base),
		Services:     NewServiceRepository(base),
		Appointments: NewAppointmentRepository(base),
		Treatments:   NewTreatmentRepository(base),
		Outbox:       NewOutboxRepository(base),
	}
}
