// Package memory implements the repository interfaces over in-process maps.
// It backs service and handler tests and mirrors the postgres semantics,
// including slot conflict detection.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/schedule"
)

// Store holds every table. Repositories built from one Store share state.
type Store struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]model.User
	patients     map[uuid.UUID]model.Patient
	staff        map[uuid.UUID]model.Staff
	availability map[uuid.UUID][]model.AvailabilityWindow
	services     map[uuid.UUID]model.Service
	appointments map[uuid.UUID]model.Appointment
	treatments   map[uuid.UUID]model.Treatment
	outbox       []model.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		users:        map[uuid.UUID]model.User{},
		patients:     map[uuid.UUID]model.Patient{},
		staff:        map[uuid.UUID]model.Staff{},
		availability: map[uuid.UUID][]model.AvailabilityWindow{},
		services:     map[uuid.UUID]model.Service{},
		appointments: map[uuid.UUID]model.Appointment{},
		treatments:   map[uuid.UUID]model.Treatment{},
	}
}

func (s *Store) Users() repository.UserRepository               { return userRepo{s} }
func (s *Store) Patients() repository.PatientRepository         { return patientRepo{s} }
func (s *Store) Staff() repository.StaffRepository              { return staffRepo{s} }
func (s *Store) Services() repository.ServiceRepository         { return serviceRepo{s} }
func (s *Store) Appointments() repository.AppointmentRepository { return appointmentRepo{s} }
func (s *Store) Treatments() repository.TreatmentRepository     { return treatmentRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository            { return outboxRepo{s} }

// Events returns a copy of every outbox event written so far.
func (s *Store) Events() []model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.OutboxEvent(nil), s.outbox...)
}

// page mirrors LIMIT/OFFSET: an unset page size selects nothing.
func page[T any](items []T, p model.Pagination) []T {
	if p.PageSize <= 0 {
		return []T{}
	}
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.insert(user)
}

func (r userRepo) insert(user *model.User) error {
	user.Email = strings.ToLower(user.Email)
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.Touch()
	r.s.users[user.ID] = *user
	return nil
}

func (r userRepo) CreateWithPatient(_ context.Context, user *model.User, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.patients {
		if strings.EqualFold(p.Email, patient.Email) {
			return repository.ErrDuplicate
		}
	}
	patient.Touch()
	user.PatientID = &patient.ID
	if err := r.insert(user); err != nil {
		return err
	}
	r.s.patients[patient.ID] = *patient
	return nil
}

func (r userRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == strings.ToLower(email) {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.Touch()
	r.s.users[id] = u
	return nil
}

type patientRepo struct{ s *Store }

func (r patientRepo) Create(_ context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.patients {
		if strings.EqualFold(p.Email, patient.Email) {
			return repository.ErrDuplicate
		}
	}
	patient.Touch()
	r.s.patients[patient.ID] = *patient
	return nil
}

func (r patientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r patientRepo) Update(_ context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[patient.ID]; !ok {
		return repository.ErrNotFound
	}
	patient.Touch()
	r.s.patients[patient.ID] = *patient
	return nil
}

func (r patientRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.patients, id)
	for aid, a := range r.s.appointments {
		if a.PatientID == id {
			delete(r.s.appointments, aid)
		}
	}
	return nil
}

func (r patientRepo) List(_ context.Context, f *model.PatientFilters) ([]*model.Patient, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Patient
	for _, p := range r.s.patients {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.SearchTerm != "" && !containsFold(p.FullName()+" "+p.Email, f.SearchTerm) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName+out[i].FirstName < out[j].LastName+out[j].FirstName })
	return page(out, f.Pagination), len(out), nil
}

func (r patientRepo) Count(context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.patients), nil
}

type staffRepo struct{ s *Store }

func (r staffRepo) Create(_ context.Context, staff *model.Staff) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, st := range r.s.staff {
		if strings.EqualFold(st.Email, staff.Email) {
			return repository.ErrDuplicate
		}
	}
	staff.Touch()
	r.s.availability[staff.ID] = r.windows(staff.ID, staff.Availability)
	stored := *staff
	stored.Availability = nil
	r.s.staff[staff.ID] = stored
	return nil
}

func (r staffRepo) windows(staffID uuid.UUID, in []model.AvailabilityWindow) []model.AvailabilityWindow {
	out := make([]model.AvailabilityWindow, len(in))
	for i, w := range in {
		if w.ID == uuid.Nil {
			w.ID = uuid.New()
		}
		w.StaffID = staffID
		out[i] = w
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (r staffRepo) Get(_ context.Context, id uuid.UUID) (*model.Staff, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.staff[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	st.Availability = append([]model.AvailabilityWindow{}, r.s.availability[id]...)
	return &st, nil
}

func (r staffRepo) Update(_ context.Context, staff *model.Staff) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.staff[staff.ID]; !ok {
		return repository.ErrNotFound
	}
	staff.Touch()
	stored := *staff
	stored.Availability = nil
	r.s.staff[staff.ID] = stored
	return nil
}

func (r staffRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.staff[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.staff, id)
	delete(r.s.availability, id)
	return nil
}

func (r staffRepo) List(_ context.Context, f *model.StaffFilters) ([]*model.Staff, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Staff
	for _, st := range r.s.staff {
		if f.Status != "" && st.Status != f.Status {
			continue
		}
		if f.Specialization != "" && !strings.EqualFold(st.Specialization, f.Specialization) {
			continue
		}
		if f.SearchTerm != "" && !containsFold(st.FullName()+" "+st.Email, f.SearchTerm) {
			continue
		}
		st := st
		out = append(out, &st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName+out[i].FirstName < out[j].LastName+out[j].FirstName })
	return page(out, f.Pagination), len(out), nil
}

func (r staffRepo) Count(context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.staff), nil
}

func (r staffRepo) GetAvailability(_ context.Context, staffID uuid.UUID) ([]model.AvailabilityWindow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]model.AvailabilityWindow{}, r.s.availability[staffID]...), nil
}

func (r staffRepo) ReplaceAvailability(_ context.Context, staffID uuid.UUID, windows []model.AvailabilityWindow) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.staff[staffID]; !ok {
		return repository.ErrNotFound
	}
	r.s.availability[staffID] = r.windows(staffID, windows)
	return nil
}

type serviceRepo struct{ s *Store }

func (r serviceRepo) Create(_ context.Context, service *model.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	service.Touch()
	r.s.services[service.ID] = *service
	return nil
}

func (r serviceRepo) Get(_ context.Context, id uuid.UUID) (*model.Service, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sv, ok := r.s.services[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sv, nil
}

func (r serviceRepo) Update(_ context.Context, service *model.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.services[service.ID]; !ok {
		return repository.ErrNotFound
	}
	service.Touch()
	r.s.services[service.ID] = *service
	return nil
}

func (r serviceRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.services[id]; !ok {
		return repository.ErrNotFound
	}
	for _, a := range r.s.appointments {
		if a.ServiceID == id {
			return repository.ErrReferenced
		}
	}
	delete(r.s.services, id)
	return nil
}

func (r serviceRepo) List(_ context.Context, f *model.ServiceFilters) ([]*model.Service, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Service{}
	for _, sv := range r.s.services {
		if f.ActiveOnly && !sv.Active {
			continue
		}
		if f.SearchTerm != "" && !containsFold(sv.Name, f.SearchTerm) {
			continue
		}
		sv := sv
		out = append(out, &sv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r serviceRepo) Count(context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.services), nil
}

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) booked(staffID uuid.UUID, date model.Date, excludeID *uuid.UUID) []schedule.Interval {
	var out []schedule.Interval
	for _, a := range r.s.appointments {
		if a.StaffID != staffID || !a.Date.Equal(date.Time) || !a.Status.Occupies() {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		out = append(out, a.Interval())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func (r appointmentRepo) writeEvent(event *model.OutboxEvent) {
	if event == nil {
		return
	}
	now := time.Now().UTC()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.CreatedAt = now
	event.UpdatedAt = now
	r.s.outbox = append(r.s.outbox, *event)
}

func (r appointmentRepo) Create(_ context.Context, a *model.Appointment, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.staff[a.StaffID]; !ok {
		return repository.ErrNotFound
	}
	if schedule.ConflictsWith(a.Interval(), r.booked(a.StaffID, a.Date, nil)) {
		return repository.ErrSlotTaken
	}
	a.Touch()
	r.s.appointments[a.ID] = *a
	r.writeEvent(event)
	return nil
}

func (r appointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r appointmentRepo) detail(a model.Appointment) *model.AppointmentDetail {
	d := &model.AppointmentDetail{Appointment: a}
	if p, ok := r.s.patients[a.PatientID]; ok {
		d.PatientName = p.FullName()
	}
	if st, ok := r.s.staff[a.StaffID]; ok {
		d.StaffName = st.FullName()
	}
	if sv, ok := r.s.services[a.ServiceID]; ok {
		d.ServiceName = sv.Name
	}
	return d
}

func (r appointmentRepo) GetDetail(_ context.Context, id uuid.UUID) (*model.AppointmentDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.detail(a), nil
}

func (r appointmentRepo) Update(_ context.Context, a *model.Appointment, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.appointments[a.ID]; !ok {
		return repository.ErrNotFound
	}
	if a.Status.Occupies() && schedule.ConflictsWith(a.Interval(), r.booked(a.StaffID, a.Date, &a.ID)) {
		return repository.ErrSlotTaken
	}
	a.Touch()
	r.s.appointments[a.ID] = *a
	r.writeEvent(event)
	return nil
}

func (r appointmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.appointments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.appointments, id)
	return nil
}

func (r appointmentRepo) List(_ context.Context, f *model.AppointmentFilters) ([]*model.AppointmentDetail, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.filter(f)
	return page(out, f.Pagination), len(out), nil
}

func (r appointmentRepo) ListDay(_ context.Context, date model.Date, staffID uuid.UUID) ([]*model.AppointmentDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.filter(&model.AppointmentFilters{StaffID: staffID, From: &date, To: &date}), nil
}

func (r appointmentRepo) filter(f *model.AppointmentFilters) []*model.AppointmentDetail {
	out := []*model.AppointmentDetail{}
	for _, a := range r.s.appointments {
		switch {
		case f.PatientID != uuid.Nil && a.PatientID != f.PatientID,
			f.StaffID != uuid.Nil && a.StaffID != f.StaffID,
			f.Status != "" && a.Status != f.Status,
			f.From != nil && a.Date.Before(f.From.Time),
			f.To != nil && a.Date.After(f.To.Time):
			continue
		}
		out = append(out, r.detail(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (r appointmentRepo) HasConflict(_ context.Context, q model.ConflictQuery) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return schedule.ConflictsWith(q.Interval, r.booked(q.StaffID, q.Date, q.ExcludeID)), nil
}

func (r appointmentRepo) ListBooked(_ context.Context, staffID uuid.UUID, date model.Date, excludeID *uuid.UUID) ([]schedule.Interval, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]schedule.Interval{}, r.booked(staffID, date, excludeID)...), nil
}

func (r appointmentRepo) CountByStatus(_ context.Context, from, to model.Date) (map[model.AppointmentStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[model.AppointmentStatus]int, len(model.AllAppointmentStatuses))
	for _, st := range model.AllAppointmentStatuses {
		counts[st] = 0
	}
	for _, a := range r.s.appointments {
		if a.Date.Before(from.Time) || a.Date.After(to.Time) {
			continue
		}
		counts[a.Status]++
	}
	return counts, nil
}

func (r appointmentRepo) CountUpcoming(_ context.Context, from model.Date) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, a := range r.s.appointments {
		if a.Date.Before(from.Time) {
			continue
		}
		if a.Status == model.AppointmentStatusScheduled || a.Status == model.AppointmentStatusConfirmed {
			n++
		}
	}
	return n, nil
}

type treatmentRepo struct{ s *Store }

func (r treatmentRepo) Create(_ context.Context, t *model.Treatment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[t.PatientID]; !ok {
		return repository.ErrReferenced
	}
	t.Touch()
	r.s.treatments[t.ID] = *t
	return nil
}

func (r treatmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.Treatment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Treatment{}
	for _, t := range r.s.treatments {
		if t.PatientID == patientID {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TreatedOn.After(out[j].TreatedOn.Time) })
	return out, nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	appointmentRepo(r).writeEvent(event)
	return nil
}

func (r outboxRepo) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.OutboxEvent{}
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusPending && len(out) < limit {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r outboxRepo) update(id uuid.UUID, fn func(*model.OutboxEvent)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.outbox {
		if r.s.outbox[i].ID == id {
			fn(&r.s.outbox[i])
			r.s.outbox[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r outboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(e *model.OutboxEvent) {
		now := time.Now().UTC()
		e.Status = model.OutboxStatusProcessed
		e.ErrorMessage = nil
		e.ProcessedAt = &now
	})
}

func (r outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string, final bool) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.RetryCount++
		e.ErrorMessage = &errMsg
		if final {
			e.Status = model.OutboxStatusFailed
		}
	})
}

func (r outboxRepo) DeleteProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.outbox[:0]
	var n int64
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.s.outbox = kept
	return n, nil
}
