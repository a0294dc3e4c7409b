package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/schedule"
	"github.com/jwalitptl/clinic-api/internal/service/staff"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Sunday; bookings in these tests are made for the following Monday.
var fixedNow = time.Date(2026, time.October, 18, 8, 0, 0, 0, time.UTC)

const monday = "2026-10-19"

type fixture struct {
	store   *memory.Store
	svc     *Service
	metrics *metrics.Metrics
	patient *model.Patient
	staff   *model.Staff
	consult *model.Service
	admin   model.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	patient := &model.Patient{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Status: model.PatientStatusActive}
	require.NoError(t, store.Patients().Create(ctx, patient))

	st := &model.Staff{
		FirstName: "Gregory", LastName: "House", Email: "house@example.com", Status: model.StaffStatusActive,
		Availability: []model.AvailabilityWindow{{
			DayOfWeek: schedule.Weekday(time.Monday),
			StartTime: schedule.MustClock("09:00"),
			EndTime:   schedule.MustClock("17:00"),
		}},
	}
	require.NoError(t, store.Staff().Create(ctx, st))

	consult := &model.Service{Name: "Consultation", Duration: 45, Active: true}
	require.NoError(t, store.Services().Create(ctx, consult))

	m := metrics.New("test", prometheus.NewRegistry())
	svc := newService(store.Appointments(), store, m)

	return &fixture{
		store:   store,
		svc:     svc,
		metrics: m,
		patient: patient,
		staff:   st,
		consult: consult,
		admin:   model.Actor{UserID: uuid.New(), Role: model.RoleAdmin},
	}
}

func newService(appointments repository.AppointmentRepository, store *memory.Store, m *metrics.Metrics) *Service {
	svc := NewService(Repositories{
		Appointments: appointments,
		Patients:     store.Patients(),
		Staff:        store.Staff(),
		Services:     store.Services(),
	}, staff.NewService(store.Staff(), time.Minute, 0), m, 0)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func (f *fixture) request(start, end string) *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		PatientID: f.patient.ID.String(),
		StaffID:   f.staff.ID.String(),
		ServiceID: f.consult.ID.String(),
		Date:      monday,
		StartTime: start,
		EndTime:   end,
	}
}

func (f *fixture) book(t *testing.T, start, end string) *model.AppointmentDetail {
	t.Helper()
	d, err := f.svc.CreateAppointment(context.Background(), f.admin, f.request(start, end))
	require.NoError(t, err)
	return d
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, code), "unexpected error %v", err)
}

func TestCreateAppointmentDefaultsEndToServiceDuration(t *testing.T) {
	f := newFixture(t)

	d := f.book(t, "10:00", "")
	assert.Equal(t, schedule.MustClock("10:45"), d.EndTime)
	assert.Equal(t, model.AppointmentStatusScheduled, d.Status)
	assert.Equal(t, "Jane Doe", d.PatientName)
	assert.Equal(t, "Gregory House", d.StaffName)
	assert.Equal(t, "Consultation", d.ServiceName)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAppointmentCreated, events[0].EventType)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AppointmentsBooked.WithLabelValues("admin")))
}

func TestCreateAppointmentRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	f.book(t, "10:00", "10:45")

	_, err := f.svc.CreateAppointment(context.Background(), f.admin, f.request("10:30", "11:00"))
	assertCode(t, err, apperrors.ErrConflict)
	appErr, _ := apperrors.As(err)
	assert.Equal(t, apperrors.SlotUnavailableMessage, appErr.Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BookingConflicts))

	// back-to-back bookings do not conflict
	f.book(t, "10:45", "11:30")
	f.book(t, "09:15", "10:00")
}

func TestCreateAppointmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  func() *model.CreateAppointmentRequest
		code apperrors.ErrorCode
	}{
		{"too long for service", func() *model.CreateAppointmentRequest { return f.request("10:00", "11:30") }, apperrors.ErrBadRequest},
		{"too short for service", func() *model.CreateAppointmentRequest { return f.request("10:00", "10:15") }, apperrors.ErrBadRequest},
		{"end before start", func() *model.CreateAppointmentRequest { return f.request("11:00", "10:15") }, apperrors.ErrBadRequest},
		{"bad clock", func() *model.CreateAppointmentRequest { return f.request("25:00", "") }, apperrors.ErrBadRequest},
		{"past end of day window", func() *model.CreateAppointmentRequest { return f.request("16:30", "") }, apperrors.ErrBadRequest},
		{"no window on tuesday", func() *model.CreateAppointmentRequest {
			r := f.request("10:00", "")
			r.Date = "2026-10-20"
			return r
		}, apperrors.ErrBadRequest},
		{"in the past", func() *model.CreateAppointmentRequest {
			r := f.request("10:00", "")
			r.Date = "2026-10-12"
			return r
		}, apperrors.ErrBadRequest},
		{"unknown staff", func() *model.CreateAppointmentRequest {
			r := f.request("10:00", "")
			r.StaffID = uuid.NewString()
			return r
		}, apperrors.ErrNotFound},
		{"missing patient", func() *model.CreateAppointmentRequest {
			r := f.request("10:00", "")
			r.PatientID = ""
			return r
		}, apperrors.ErrBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAppointment(ctx, f.admin, tt.req())
			assertCode(t, err, tt.code)
		})
	}
	assert.Empty(t, f.store.Events())
}

func TestCreateAppointmentWithinTolerance(t *testing.T) {
	f := newFixture(t)
	d := f.book(t, "10:00", "11:00")
	assert.Equal(t, 60, d.Interval().Minutes())
}

func TestPatientBooksOnlyForSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	self := model.Actor{UserID: uuid.New(), Role: model.RolePatient, PatientID: &f.patient.ID}

	req := f.request("10:00", "")
	req.PatientID = ""
	d, err := f.svc.CreateAppointment(ctx, self, req)
	require.NoError(t, err)
	assert.Equal(t, f.patient.ID, d.PatientID)

	req = f.request("11:00", "")
	req.PatientID = uuid.NewString()
	_, err = f.svc.CreateAppointment(ctx, self, req)
	assertCode(t, err, apperrors.ErrForbidden)

	otherID := uuid.New()
	other := model.Actor{UserID: uuid.New(), Role: model.RolePatient, PatientID: &otherID}
	_, err = f.svc.GetAppointment(ctx, other, d.ID)
	assertCode(t, err, apperrors.ErrForbidden)
	_, err = f.svc.CancelAppointment(ctx, other, d.ID, "")
	assertCode(t, err, apperrors.ErrForbidden)

	list, total, err := f.svc.ListAppointments(ctx, other, &model.AppointmentFilters{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	list, total, err = f.svc.ListAppointments(ctx, self, &model.AppointmentFilters{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)
}

func TestCancelledAppointmentFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.book(t, "10:00", "")

	cancelled, err := f.svc.CancelAppointment(ctx, f.admin, d.ID, "feeling better")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "feeling better", *cancelled.CancelReason)

	f.book(t, "10:00", "")

	events := f.store.Events()
	require.Len(t, events, 3)
	assert.Equal(t, model.EventAppointmentCancelled, events[1].EventType)

	_, err = f.svc.CancelAppointment(ctx, f.admin, d.ID, "")
	assertCode(t, err, apperrors.ErrBadRequest)
}

func TestNoShowFreesSlot(t *testing.T) {
	f := newFixture(t)
	d := f.book(t, "10:00", "")

	_, err := f.svc.UpdateStatus(context.Background(), d.ID, &model.UpdateStatusRequest{Status: model.AppointmentStatusNoShow})
	require.NoError(t, err)

	slots, err := f.svc.AvailableSlots(context.Background(), model.SlotQuery{
		StaffID: f.staff.ID, Date: model.NewDate(2026, time.October, 19), Duration: 30,
	})
	require.NoError(t, err)
	assert.Len(t, slots, 16)
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.book(t, "10:00", "")

	_, err := f.svc.UpdateStatus(ctx, d.ID, &model.UpdateStatusRequest{Status: model.AppointmentStatusConfirmed})
	require.NoError(t, err)
	done, err := f.svc.UpdateStatus(ctx, d.ID, &model.UpdateStatusRequest{Status: model.AppointmentStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, done.Status)

	_, err = f.svc.UpdateStatus(ctx, d.ID, &model.UpdateStatusRequest{Status: model.AppointmentStatusScheduled})
	assertCode(t, err, apperrors.ErrBadRequest)

	start := "11:00"
	_, err = f.svc.UpdateAppointment(ctx, f.admin, d.ID, &model.UpdateAppointmentRequest{StartTime: &start})
	assertCode(t, err, apperrors.ErrBadRequest)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AppointmentTransition.WithLabelValues("completed")))
}

func TestRescheduleIgnoresOwnSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.book(t, "10:00", "")
	f.book(t, "11:00", "")

	start := "10:15"
	moved, err := f.svc.UpdateAppointment(ctx, f.admin, d.ID, &model.UpdateAppointmentRequest{StartTime: &start})
	require.NoError(t, err)
	assert.Equal(t, schedule.MustClock("10:15"), moved.StartTime)
	assert.Equal(t, schedule.MustClock("11:00"), moved.EndTime)

	start = "10:30"
	_, err = f.svc.UpdateAppointment(ctx, f.admin, d.ID, &model.UpdateAppointmentRequest{StartTime: &start})
	assertCode(t, err, apperrors.ErrConflict)

	events := f.store.Events()
	assert.Equal(t, model.EventAppointmentUpdated, events[len(events)-1].EventType)
}

func TestAvailableSlotsScenario(t *testing.T) {
	f := newFixture(t)
	f.book(t, "10:00", "10:45")

	slots, err := f.svc.AvailableSlots(context.Background(), model.SlotQuery{
		StaffID: f.staff.ID, Date: model.NewDate(2026, time.October, 19), Duration: 30,
	})
	require.NoError(t, err)

	var starts []string
	for _, s := range slots {
		starts = append(starts, s.Start.String())
		assert.LessOrEqual(t, s.End, schedule.MustClock("17:00"))
	}
	assert.Equal(t, []string{
		"09:00", "09:30", "11:00", "11:30", "12:00", "12:30", "13:00",
		"13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
	}, starts)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SlotQueries))
}

func TestAvailableSlotsUsesServiceDuration(t *testing.T) {
	f := newFixture(t)
	slots, err := f.svc.AvailableSlots(context.Background(), model.SlotQuery{
		StaffID: f.staff.ID, Date: model.NewDate(2026, time.October, 19), ServiceID: &f.consult.ID,
	})
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, 45, slots[0].Minutes())
	assert.Equal(t, "16:00", slots[len(slots)-1].Start.String())
}

func TestAvailableSlotsEdgeCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slots, err := f.svc.AvailableSlots(ctx, model.SlotQuery{
		StaffID: f.staff.ID, Date: model.NewDate(2026, time.October, 20), Duration: 30,
	})
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)

	_, err = f.svc.AvailableSlots(ctx, model.SlotQuery{StaffID: f.staff.ID, Date: model.NewDate(2026, time.October, 19)})
	assertCode(t, err, apperrors.ErrBadRequest)

	_, err = f.svc.AvailableSlots(ctx, model.SlotQuery{StaffID: uuid.New(), Date: model.NewDate(2026, time.October, 19), Duration: 30})
	assertCode(t, err, apperrors.ErrNotFound)
}

func TestCheckConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.book(t, "10:00", "10:45")

	check := func(start, end, exclude string) bool {
		conflict, err := f.svc.CheckConflict(ctx, &model.CheckConflictRequest{
			StaffID: f.staff.ID.String(), Date: monday, StartTime: start, EndTime: end, ExcludeAppointmentID: exclude,
		})
		require.NoError(t, err)
		return conflict
	}
	assert.True(t, check("10:30", "11:00", ""))
	assert.False(t, check("10:45", "11:15", ""))
	assert.False(t, check("09:00", "10:00", ""))
	assert.False(t, check("10:30", "11:00", d.ID.String()))

	_, err := f.svc.CheckConflict(ctx, &model.CheckConflictRequest{
		StaffID: f.staff.ID.String(), Date: monday, StartTime: "11:00", EndTime: "10:00",
	})
	assertCode(t, err, apperrors.ErrBadRequest)
}

// staleAppointments hides existing bookings from the pre-check so the write
// path has to detect the overlap, as when two requests race.
type staleAppointments struct {
	repository.AppointmentRepository
}

func (staleAppointments) ListBooked(context.Context, uuid.UUID, model.Date, *uuid.UUID) ([]schedule.Interval, error) {
	return nil, nil
}

func TestSlotTakenOnWriteMapsToSlotUnavailable(t *testing.T) {
	f := newFixture(t)
	f.book(t, "10:00", "")

	racing := newService(staleAppointments{f.store.Appointments()}, f.store, f.metrics)
	_, err := racing.CreateAppointment(context.Background(), f.admin, f.request("10:15", ""))
	assertCode(t, err, apperrors.ErrConflict)
	appErr, _ := apperrors.As(err)
	assert.Equal(t, apperrors.SlotUnavailableMessage, appErr.Message)
}

func TestTodayAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.now = func() time.Time { return time.Date(2026, time.October, 19, 7, 0, 0, 0, time.UTC) }

	a := f.book(t, "10:00", "")
	f.book(t, "11:00", "")
	_, err := f.svc.UpdateStatus(ctx, a.ID, &model.UpdateStatusRequest{Status: model.AppointmentStatusCompleted})
	require.NoError(t, err)

	today, err := f.svc.TodayAppointments(ctx, uuid.Nil)
	require.NoError(t, err)
	assert.Len(t, today, 2)

	mine, err := f.svc.TodayAppointments(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, mine)

	stats, err := f.svc.Stats(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, model.NewDate(2026, time.October, 1), stats.From)
	assert.Equal(t, model.NewDate(2026, time.October, 31), stats.To)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Today)
	assert.Equal(t, 1, stats.Upcoming)
	assert.Equal(t, 1, stats.ByStatus[model.AppointmentStatusCompleted])
	assert.Equal(t, 0.5, stats.CompletionRate)
	assert.Equal(t, 1, stats.Patients)
	assert.Equal(t, 1, stats.Staff)
	assert.Equal(t, 1, stats.Services)

	from := model.NewDate(2026, time.November, 1)
	to := model.NewDate(2026, time.October, 1)
	_, err = f.svc.Stats(ctx, &from, &to)
	assertCode(t, err, apperrors.ErrBadRequest)
}

func TestTodayAppointmentsIsNotPaged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.now = func() time.Time { return time.Date(2026, time.October, 19, 7, 0, 0, 0, time.UTC) }
	for _, start := range []string{"09:00", "10:00", "11:00", "12:00"} {
		f.book(t, start, "")
	}

	// An unset page size selects nothing, as LIMIT 0 does in SQL.
	items, total, err := f.store.Appointments().List(ctx, &model.AppointmentFilters{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 4, total)

	today, err := f.svc.TodayAppointments(ctx, f.staff.ID)
	require.NoError(t, err)
	require.Len(t, today, 4)
	assert.Equal(t, schedule.MustClock("09:00"), today[0].StartTime)
	assert.Equal(t, schedule.MustClock("12:00"), today[3].StartTime)
}

type failingPatients struct {
	repository.PatientRepository
}

func (failingPatients) Get(context.Context, uuid.UUID) (*model.Patient, error) {
	return nil, errors.New("connection reset by peer")
}

func TestStatusChangeFailsWhenLookupFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.book(t, "10:00", "")

	broken := NewService(Repositories{
		Appointments: f.store.Appointments(),
		Patients:     failingPatients{f.store.Patients()},
		Staff:        f.store.Staff(),
		Services:     f.store.Services(),
	}, staff.NewService(f.store.Staff(), time.Minute, 0), f.metrics, 0)
	broken.now = func() time.Time { return fixedNow }

	_, err := broken.UpdateStatus(ctx, d.ID, &model.UpdateStatusRequest{Status: model.AppointmentStatusConfirmed})
	assertCode(t, err, apperrors.ErrInternal)

	stored, err := f.store.Appointments().Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusScheduled, stored.Status)
	require.Len(t, f.store.Events(), 1)
	assert.Equal(t, model.EventAppointmentCreated, f.store.Events()[0].EventType)
}

func TestNotesEditOnPastAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.book(t, "10:00", "")

	// The appointment date has passed but it was never closed out.
	f.svc.now = func() time.Time { return time.Date(2026, time.October, 21, 9, 0, 0, 0, time.UTC) }

	notes := "patient called ahead"
	updated, err := f.svc.UpdateAppointment(ctx, f.admin, d.ID, &model.UpdateAppointmentRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, d.StartTime, updated.StartTime)
	assert.Equal(t, d.EndTime, updated.EndTime)

	start := "11:00"
	_, err = f.svc.UpdateAppointment(ctx, f.admin, d.ID, &model.UpdateAppointmentRequest{StartTime: &start})
	assertCode(t, err, apperrors.ErrBadRequest)
}
