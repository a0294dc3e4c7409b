package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/schedule"
)

// These tests run against a disposable database named by
// CLINIC_TEST_DATABASE_DSN and are skipped otherwise.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("CLINIC_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("CLINIC_TEST_DATABASE_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, Migrate(context.Background(), db))
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	repos   *Repositories
	patient *model.Patient
	staff   *model.Staff
	service *model.Service
	date    model.Date
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repos := NewRepositories(testDB(t))

	suffix := uuid.NewString()[:8]
	patient := &model.Patient{FirstName: "Ada", LastName: "Lovelace", Email: "ada+" + suffix + "@example.com", Status: model.PatientStatusActive}
	require.NoError(t, repos.Patients.Create(ctx, patient))

	staff := &model.Staff{
		FirstName: "Gregory", LastName: "House", Email: "house+" + suffix + "@example.com",
		Status: model.StaffStatusActive,
		Availability: []model.AvailabilityWindow{
			{DayOfWeek: schedule.Weekday(1), StartTime: schedule.MustClock("09:00"), EndTime: schedule.MustClock("17:00")},
		},
	}
	require.NoError(t, repos.Staff.Create(ctx, staff))

	service := &model.Service{Name: "Consultation " + suffix, Duration: 30, Price: 50, Active: true}
	require.NoError(t, repos.Services.Create(ctx, service))

	return &fixture{repos: repos, patient: patient, staff: staff, service: service, date: model.NewDate(2031, 3, 17)}
}

func (f *fixture) book(t *testing.T, start, end string) (*model.Appointment, error) {
	t.Helper()
	a := &model.Appointment{
		PatientID: f.patient.ID,
		StaffID:   f.staff.ID,
		ServiceID: f.service.ID,
		Date:      f.date,
		StartTime: schedule.MustClock(start),
		EndTime:   schedule.MustClock(end),
		Status:    model.AppointmentStatusScheduled,
	}
	payload, _ := json.Marshal(map[string]string{"id": "x"})
	err := f.repos.Appointments.Create(context.Background(), a, &model.OutboxEvent{EventType: model.EventAppointmentCreated, Payload: payload})
	return a, err
}

func TestAppointmentRepositoryConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.book(t, "10:00", "10:45")
	require.NoError(t, err)

	_, err = f.book(t, "10:30", "11:00")
	assert.ErrorIs(t, err, repository.ErrSlotTaken)

	_, err = f.book(t, "10:45", "11:15")
	assert.NoError(t, err, "adjacent bookings do not conflict")

	conflict, err := f.repos.Appointments.HasConflict(ctx, model.ConflictQuery{
		StaffID:   f.staff.ID,
		Date:      f.date,
		Interval:  schedule.Interval{Start: schedule.MustClock("10:00"), End: schedule.MustClock("10:45")},
		ExcludeID: &first.ID,
	})
	require.NoError(t, err)
	assert.False(t, conflict)

	first.Status = model.AppointmentStatusCancelled
	require.NoError(t, f.repos.Appointments.Update(ctx, first, nil))

	_, err = f.book(t, "10:00", "10:45")
	assert.NoError(t, err, "cancelled bookings free the slot")

	booked, err := f.repos.Appointments.ListBooked(ctx, f.staff.ID, f.date, nil)
	require.NoError(t, err)
	assert.Equal(t, []schedule.Interval{
		{Start: schedule.MustClock("10:00"), End: schedule.MustClock("10:45")},
		{Start: schedule.MustClock("10:45"), End: schedule.MustClock("11:15")},
	}, booked)
}

func TestStaffAvailabilityRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.repos.Staff.Get(ctx, f.staff.ID)
	require.NoError(t, err)
	require.Len(t, got.Availability, 1)
	assert.Equal(t, schedule.MustClock("09:00"), got.Availability[0].StartTime)

	require.NoError(t, f.repos.Staff.ReplaceAvailability(ctx, f.staff.ID, []model.AvailabilityWindow{
		{DayOfWeek: schedule.Weekday(2), StartTime: schedule.MustClock("08:00"), EndTime: schedule.MustClock("12:00")},
		{DayOfWeek: schedule.Weekday(2), StartTime: schedule.MustClock("13:00"), EndTime: schedule.MustClock("18:00")},
	}))

	windows, err := f.repos.Staff.GetAvailability(ctx, f.staff.ID)
	require.NoError(t, err)
	assert.Len(t, windows, 2)

	err = f.repos.Staff.ReplaceAvailability(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	repos := NewRepositories(testDB(t))
	_, err := repos.Appointments.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repos.Users.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
