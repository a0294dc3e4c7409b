// Package appointment books, reschedules and cancels appointments and answers
// availability questions for staff members.
package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/schedule"
	"github.com/jwalitptl/clinic-api/internal/service"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type AppointmentService interface {
	CreateAppointment(ctx context.Context, actor model.Actor, req *model.CreateAppointmentRequest) (*model.AppointmentDetail, error)
	GetAppointment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.AppointmentDetail, error)
	ListAppointments(ctx context.Context, actor model.Actor, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, int, error)
	UpdateAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.AppointmentDetail, error)
	CancelAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.AppointmentDetail, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, req *model.UpdateStatusRequest) (*model.AppointmentDetail, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	TodayAppointments(ctx context.Context, staffID uuid.UUID) ([]*model.AppointmentDetail, error)
	AvailableSlots(ctx context.Context, q model.SlotQuery) ([]schedule.Interval, error)
	CheckConflict(ctx context.Context, req *model.CheckConflictRequest) (bool, error)
	Stats(ctx context.Context, from, to *model.Date) (*model.AppointmentStats, error)
}

// AvailabilitySource provides a staff member's recurring working windows.
type AvailabilitySource interface {
	GetAvailability(ctx context.Context, staffID uuid.UUID) ([]model.AvailabilityWindow, error)
}

// Repositories groups the stores the service reads from.
type Repositories struct {
	Appointments repository.AppointmentRepository
	Patients     repository.PatientRepository
	Staff        repository.StaffRepository
	Services     repository.ServiceRepository
}

type Service struct {
	repos        Repositories
	availability AvailabilitySource
	metrics      *metrics.Metrics
	maxPageSize  int
	now          func() time.Time
}

func NewService(repos Repositories, availability AvailabilitySource, m *metrics.Metrics, maxPageSize int) *Service {
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &Service{
		repos:        repos,
		availability: availability,
		metrics:      m,
		maxPageSize:  maxPageSize,
		now:          time.Now,
	}
}

func (s *Service) today() model.Date {
	return model.DateOf(s.now())
}

// booking is a fully resolved appointment request.
type booking struct {
	patient  *model.Patient
	staff    *model.Staff
	service  *model.Service
	date     model.Date
	interval schedule.Interval
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.BadRequest(fmt.Sprintf("invalid %s", field), err)
	}
	return id, nil
}

func parseClock(field, raw string) (schedule.Clock, error) {
	c, err := schedule.ParseClock(raw)
	if err != nil {
		return 0, apperrors.BadRequest(fmt.Sprintf("invalid %s: %v", field, err), err)
	}
	return c, nil
}

func parseDate(raw string) (model.Date, error) {
	d, err := model.ParseDate(raw)
	if err != nil {
		return model.Date{}, apperrors.BadRequest(err.Error(), err)
	}
	return d, nil
}

func (s *Service) CreateAppointment(ctx context.Context, actor model.Actor, req *model.CreateAppointmentRequest) (*model.AppointmentDetail, error) {
	patientID, err := s.bookingPatient(actor, req.PatientID)
	if err != nil {
		return nil, err
	}
	staffID, err := parseID("staff_id", req.StaffID)
	if err != nil {
		return nil, err
	}
	serviceID, err := parseID("service_id", req.ServiceID)
	if err != nil {
		return nil, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	start, err := parseClock("start_time", req.StartTime)
	if err != nil {
		return nil, err
	}

	b := &booking{date: date}
	if b.patient, err = s.repos.Patients.Get(ctx, patientID); err != nil {
		return nil, service.FromRepository("patient", err)
	}
	if err := s.resolveStaff(ctx, b, staffID); err != nil {
		return nil, err
	}
	if err := s.resolveService(ctx, b, serviceID); err != nil {
		return nil, err
	}

	end := start.Add(b.service.Duration)
	if req.EndTime != "" {
		if end, err = parseClock("end_time", req.EndTime); err != nil {
			return nil, err
		}
	}
	if b.interval, err = s.validateTimes(b, start, end); err != nil {
		return nil, err
	}
	if err := s.checkBookable(ctx, b, nil); err != nil {
		return nil, err
	}

	a := &model.Appointment{
		PatientID: b.patient.ID,
		StaffID:   b.staff.ID,
		ServiceID: b.service.ID,
		Date:      b.date,
		StartTime: b.interval.Start,
		EndTime:   b.interval.End,
		Status:    model.AppointmentStatusScheduled,
		Notes:     req.Notes,
	}
	a.ID = uuid.New()

	evt, err := event.NewOutboxEvent(model.EventAppointmentCreated, event.AppointmentPayload(a, b.patient, b.staff, b.service))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.repos.Appointments.Create(ctx, a, evt); err != nil {
		return nil, s.bookingError("failed to create appointment", err)
	}

	if s.metrics != nil {
		s.metrics.AppointmentsBooked.WithLabelValues(string(actor.Role)).Inc()
	}
	log.Ctx(ctx).Info().
		Str("appointment_id", a.ID.String()).
		Str("staff_id", a.StaffID.String()).
		Str("date", a.Date.String()).
		Str("slot", a.Interval().String()).
		Msg("appointment booked")

	return s.detail(ctx, a.ID)
}

// bookingPatient resolves whose appointment is being booked. Patients can only
// book for themselves.
func (s *Service) bookingPatient(actor model.Actor, raw string) (uuid.UUID, error) {
	if actor.IsPatient() {
		if actor.PatientID == nil {
			return uuid.Nil, apperrors.Forbidden("account is not linked to a patient record")
		}
		if raw != "" && raw != actor.PatientID.String() {
			return uuid.Nil, apperrors.Forbidden("patients can only book their own appointments")
		}
		return *actor.PatientID, nil
	}
	if raw == "" {
		return uuid.Nil, apperrors.BadRequest("patient_id is required", nil)
	}
	return parseID("patient_id", raw)
}

func (s *Service) resolveStaff(ctx context.Context, b *booking, id uuid.UUID) error {
	st, err := s.repos.Staff.Get(ctx, id)
	if err != nil {
		return service.FromRepository("staff", err)
	}
	if st.Status != model.StaffStatusActive {
		return apperrors.BadRequest("staff member is not accepting appointments", nil)
	}
	b.staff = st
	return nil
}

func (s *Service) resolveService(ctx context.Context, b *booking, id uuid.UUID) error {
	svc, err := s.repos.Services.Get(ctx, id)
	if err != nil {
		return service.FromRepository("service", err)
	}
	if !svc.Active {
		return apperrors.BadRequest("service is no longer offered", nil)
	}
	b.service = svc
	return nil
}

// validateTimes checks the requested range against the service duration and
// rejects bookings on past days.
func (s *Service) validateTimes(b *booking, start, end schedule.Clock) (schedule.Interval, error) {
	interval, err := schedule.NewInterval(start, end)
	if err != nil {
		return schedule.Interval{}, apperrors.BadRequest(err.Error(), err)
	}
	if !schedule.WithinTolerance(interval.Minutes(), b.service.Duration) {
		return schedule.Interval{}, apperrors.BadRequest(fmt.Sprintf(
			"appointment length %d minutes does not match %s (%d minutes, ±%d)",
			interval.Minutes(), b.service.Name, b.service.Duration, schedule.DurationTolerance), nil)
	}
	if b.date.Before(s.today().Time) {
		return schedule.Interval{}, apperrors.BadRequest("appointments cannot be booked in the past", nil)
	}
	return interval, nil
}

// checkBookable requires the interval to fall inside the staff member's
// working hours and to overlap no occupying appointment.
func (s *Service) checkBookable(ctx context.Context, b *booking, excludeID *uuid.UUID) error {
	windows, err := s.availability.GetAvailability(ctx, b.staff.ID)
	if err != nil {
		return err
	}
	if !schedule.Covered(model.Windows(windows), schedule.WeekdayOf(b.date.Time), b.interval) {
		return apperrors.BadRequest(fmt.Sprintf("%s is outside %s's working hours on %s",
			b.interval, b.staff.FullName(), schedule.WeekdayOf(b.date.Time)), nil)
	}

	booked, err := s.repos.Appointments.ListBooked(ctx, b.staff.ID, b.date, excludeID)
	if err != nil {
		return service.FromRepository("appointment", err)
	}
	if schedule.ConflictsWith(b.interval, booked) {
		s.recordConflict()
		return apperrors.ErrSlotUnavailable
	}
	return nil
}

func (s *Service) recordConflict() {
	if s.metrics != nil {
		s.metrics.BookingConflicts.Inc()
	}
}

// bookingError maps a failed write. A slot taken between the check and the
// write surfaces the same way as a detected conflict.
func (s *Service) bookingError(msg string, err error) error {
	if errors.Is(err, repository.ErrSlotTaken) {
		s.recordConflict()
		return apperrors.ErrSlotUnavailable
	}
	return fmt.Errorf("%s: %w", msg, service.FromRepository("appointment", err))
}

func (s *Service) detail(ctx context.Context, id uuid.UUID) (*model.AppointmentDetail, error) {
	d, err := s.repos.Appointments.GetDetail(ctx, id)
	if err != nil {
		return nil, service.FromRepository("appointment", err)
	}
	return d, nil
}

func (s *Service) GetAppointment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.AppointmentDetail, error) {
	d, err := s.detail(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessPatient(d.PatientID) {
		return nil, apperrors.Forbidden("access to this appointment is not allowed")
	}
	return d, nil
}

func (s *Service) owned(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	a, err := s.repos.Appointments.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepository("appointment", err)
	}
	if !actor.CanAccessPatient(a.PatientID) {
		return nil, apperrors.Forbidden("access to this appointment is not allowed")
	}
	return a, nil
}

// ListAppointments pages through appointments. Patients only ever see their own.
func (s *Service) ListAppointments(ctx context.Context, actor model.Actor, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, int, error) {
	if actor.IsPatient() {
		if actor.PatientID == nil {
			return []*model.AppointmentDetail{}, 0, nil
		}
		filters.PatientID = *actor.PatientID
	}
	filters.Normalize(s.maxPageSize)

	items, total, err := s.repos.Appointments.List(ctx, filters)
	if err != nil {
		return nil, 0, service.FromRepository("appointment", err)
	}
	if items == nil {
		items = []*model.AppointmentDetail{}
	}
	return items, total, nil
}

// UpdateAppointment reschedules or edits an open appointment. Any change to
// staff, service, date or time is re-validated against availability and
// existing bookings, ignoring the appointment itself.
func (s *Service) UpdateAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.AppointmentDetail, error) {
	a, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if a.Status.Final() {
		return nil, apperrors.BadRequest(fmt.Sprintf("a %s appointment cannot be changed", a.Status), nil)
	}

	staffID, serviceID, date := a.StaffID, a.ServiceID, a.Date
	start, end := a.StartTime, a.EndTime
	if req.StaffID != nil {
		if staffID, err = parseID("staff_id", *req.StaffID); err != nil {
			return nil, err
		}
	}
	if req.ServiceID != nil {
		if serviceID, err = parseID("service_id", *req.ServiceID); err != nil {
			return nil, err
		}
	}
	if req.Date != nil {
		if date, err = parseDate(*req.Date); err != nil {
			return nil, err
		}
	}
	if req.StartTime != nil {
		if start, err = parseClock("start_time", *req.StartTime); err != nil {
			return nil, err
		}
	}

	b := &booking{date: date}
	if b.patient, err = s.repos.Patients.Get(ctx, a.PatientID); err != nil {
		return nil, service.FromRepository("patient", err)
	}
	if err := s.resolveStaff(ctx, b, staffID); err != nil {
		return nil, err
	}
	if err := s.resolveService(ctx, b, serviceID); err != nil {
		return nil, err
	}

	switch {
	case req.EndTime != nil:
		if end, err = parseClock("end_time", *req.EndTime); err != nil {
			return nil, err
		}
	case req.StartTime != nil || req.ServiceID != nil:
		end = start.Add(b.service.Duration)
	}

	// Edits that leave the slot alone skip the booking rules so notes stay
	// editable on appointments whose date has passed.
	b.interval = a.Interval()
	if req.Reschedules() {
		if b.interval, err = s.validateTimes(b, start, end); err != nil {
			return nil, err
		}
		if err := s.checkBookable(ctx, b, &a.ID); err != nil {
			return nil, err
		}
	}

	a.StaffID, a.ServiceID, a.Date = staffID, serviceID, date
	a.StartTime, a.EndTime = b.interval.Start, b.interval.End
	if req.Notes != nil {
		a.Notes = *req.Notes
	}

	evt, err := event.NewOutboxEvent(model.EventAppointmentUpdated, event.AppointmentPayload(a, b.patient, b.staff, b.service))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.repos.Appointments.Update(ctx, a, evt); err != nil {
		return nil, s.bookingError("failed to update appointment", err)
	}

	log.Ctx(ctx).Info().Str("appointment_id", a.ID.String()).Str("slot", a.Interval().String()).Msg("appointment rescheduled")
	return s.detail(ctx, a.ID)
}

func (s *Service) CancelAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.AppointmentDetail, error) {
	a, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, a, model.AppointmentStatusCancelled, reason)
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, req *model.UpdateStatusRequest) (*model.AppointmentDetail, error) {
	a, err := s.repos.Appointments.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepository("appointment", err)
	}
	return s.transition(ctx, a, req.Status, req.Reason)
}

// transition moves a to next if the status machine allows it and records the
// matching outbox event.
func (s *Service) transition(ctx context.Context, a *model.Appointment, next model.AppointmentStatus, reason string) (*model.AppointmentDetail, error) {
	if !a.Status.CanTransitionTo(next) {
		return nil, apperrors.BadRequest(fmt.Sprintf("cannot change appointment from %s to %s", a.Status, next), nil)
	}

	a.Status = next
	if next == model.AppointmentStatusCancelled && reason != "" {
		a.CancelReason = &reason
	}

	patient, err := s.repos.Patients.Get(ctx, a.PatientID)
	if err != nil {
		return nil, service.FromRepository("patient", err)
	}
	staff, err := s.repos.Staff.Get(ctx, a.StaffID)
	if err != nil {
		return nil, service.FromRepository("staff", err)
	}
	svc, err := s.repos.Services.Get(ctx, a.ServiceID)
	if err != nil {
		return nil, service.FromRepository("service", err)
	}
	evt, err := event.NewOutboxEvent(event.TypeFor(false, next), event.AppointmentPayload(a, patient, staff, svc))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.repos.Appointments.Update(ctx, a, evt); err != nil {
		return nil, s.bookingError("failed to update appointment status", err)
	}

	if s.metrics != nil {
		s.metrics.AppointmentTransition.WithLabelValues(string(next)).Inc()
	}
	log.Ctx(ctx).Info().Str("appointment_id", a.ID.String()).Str("status", string(next)).Msg("appointment status changed")
	return s.detail(ctx, a.ID)
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	if err := s.repos.Appointments.Delete(ctx, id); err != nil {
		return service.FromRepository("appointment", err)
	}
	return nil
}

// TodayAppointments lists the day's appointments, optionally for one staff member.
func (s *Service) TodayAppointments(ctx context.Context, staffID uuid.UUID) ([]*model.AppointmentDetail, error) {
	items, err := s.repos.Appointments.ListDay(ctx, s.today(), staffID)
	if err != nil {
		return nil, service.FromRepository("appointment", err)
	}
	if items == nil {
		items = []*model.AppointmentDetail{}
	}
	return items, nil
}

// AvailableSlots returns the free slots of a staff member on a day. The slot
// length is the service duration when a service is given, otherwise the
// explicit duration. A day without working hours yields an empty list.
func (s *Service) AvailableSlots(ctx context.Context, q model.SlotQuery) ([]schedule.Interval, error) {
	duration := q.Duration
	if q.ServiceID != nil {
		svc, err := s.repos.Services.Get(ctx, *q.ServiceID)
		if err != nil {
			return nil, service.FromRepository("service", err)
		}
		duration = svc.Duration
	}
	if duration <= 0 {
		return nil, apperrors.BadRequest("service_id or a positive duration is required", nil)
	}

	if _, err := s.repos.Staff.Get(ctx, q.StaffID); err != nil {
		return nil, service.FromRepository("staff", err)
	}
	windows, err := s.availability.GetAvailability(ctx, q.StaffID)
	if err != nil {
		return nil, err
	}
	booked, err := s.repos.Appointments.ListBooked(ctx, q.StaffID, q.Date, nil)
	if err != nil {
		return nil, service.FromRepository("appointment", err)
	}

	slots := schedule.FreeSlots(model.Windows(windows), schedule.WeekdayOf(q.Date.Time), duration, booked)
	if s.metrics != nil {
		s.metrics.SlotQueries.Inc()
		s.metrics.SlotsReturned.Observe(float64(len(slots)))
	}
	return slots, nil
}

// CheckConflict reports whether the range overlaps an occupying appointment
// of the staff member on that day.
func (s *Service) CheckConflict(ctx context.Context, req *model.CheckConflictRequest) (bool, error) {
	staffID, err := parseID("staff_id", req.StaffID)
	if err != nil {
		return false, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return false, err
	}
	start, err := parseClock("start_time", req.StartTime)
	if err != nil {
		return false, err
	}
	end, err := parseClock("end_time", req.EndTime)
	if err != nil {
		return false, err
	}
	interval, err := schedule.NewInterval(start, end)
	if err != nil {
		return false, apperrors.BadRequest(err.Error(), err)
	}

	q := model.ConflictQuery{StaffID: staffID, Date: date, Interval: interval}
	if req.ExcludeAppointmentID != "" {
		excludeID, err := parseID("exclude_appointment_id", req.ExcludeAppointmentID)
		if err != nil {
			return false, err
		}
		q.ExcludeID = &excludeID
	}

	conflict, err := s.repos.Appointments.HasConflict(ctx, q)
	if err != nil {
		return false, service.FromRepository("appointment", err)
	}
	return conflict, nil
}

// Stats summarises appointments between from and to, defaulting to the
// current calendar month.
func (s *Service) Stats(ctx context.Context, from, to *model.Date) (*model.AppointmentStats, error) {
	today := s.today()
	start := model.NewDate(today.Year(), today.Month(), 1)
	end := model.Date{Time: start.AddDate(0, 1, -1)}
	if from != nil {
		start = *from
	}
	if to != nil {
		end = *to
	}
	if end.Before(start.Time) {
		return nil, apperrors.BadRequest("from must not be after to", nil)
	}

	byStatus, err := s.repos.Appointments.CountByStatus(ctx, start, end)
	if err != nil {
		return nil, service.FromRepository("appointment", err)
	}
	todayCounts, err := s.repos.Appointments.CountByStatus(ctx, today, today)
	if err != nil {
		return nil, service.FromRepository("appointment", err)
	}
	upcoming, err := s.repos.Appointments.CountUpcoming(ctx, today)
	if err != nil {
		return nil, service.FromRepository("appointment", err)
	}

	stats := &model.AppointmentStats{From: start, To: end, ByStatus: byStatus, Upcoming: upcoming}
	for _, n := range byStatus {
		stats.Total += n
	}
	for _, n := range todayCounts {
		stats.Today += n
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(byStatus[model.AppointmentStatusCompleted]) / float64(stats.Total)
	}

	if stats.Patients, err = s.repos.Patients.Count(ctx); err != nil {
		return nil, service.FromRepository("patient", err)
	}
	if stats.Staff, err = s.repos.Staff.Count(ctx); err != nil {
		return nil, service.FromRepository("staff", err)
	}
	if stats.Services, err = s.repos.Services.Count(ctx); err != nil {
		return nil, service.FromRepository("service", err)
	}
	return stats, nil
}
