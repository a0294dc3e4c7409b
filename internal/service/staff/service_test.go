package staff

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/schedule"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func monday(start, end string) model.AvailabilityWindowRequest {
	day := schedule.Weekday(time.Monday)
	return model.AvailabilityWindowRequest{DayOfWeek: &day, StartTime: start, EndTime: end}
}

func TestCreateStaffWithAvailability(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Staff(), time.Minute, 0)
	ctx := context.Background()

	st, err := svc.CreateStaff(ctx, &model.CreateStaffRequest{
		FirstName:    "Gregory",
		LastName:     "House",
		Email:        "House@Example.com",
		Availability: []model.AvailabilityWindowRequest{monday("09:00", "12:00"), monday("13:00", "17:00")},
	})
	require.NoError(t, err)
	assert.Equal(t, "house@example.com", st.Email)

	windows, err := svc.GetAvailability(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, schedule.MustClock("09:00"), windows[0].StartTime)
	assert.Equal(t, schedule.MustClock("17:00"), windows[1].EndTime)
}

func TestAvailabilityValidation(t *testing.T) {
	tests := []struct {
		name    string
		windows []model.AvailabilityWindowRequest
	}{
		{"start after end", []model.AvailabilityWindowRequest{monday("17:00", "09:00")}},
		{"empty window", []model.AvailabilityWindowRequest{monday("09:00", "09:00")}},
		{"bad format", []model.AvailabilityWindowRequest{monday("9am", "10:00")}},
		{"overlapping same day", []model.AvailabilityWindowRequest{monday("09:00", "12:00"), monday("11:30", "14:00")}},
		{"missing day", []model.AvailabilityWindowRequest{{StartTime: "09:00", EndTime: "10:00"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseWindows(tt.windows)
			assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest), "got %v", err)
		})
	}

	other := monday("10:00", "11:00")
	tuesday := schedule.Weekday(time.Tuesday)
	other.DayOfWeek = &tuesday
	windows, err := parseWindows([]model.AvailabilityWindowRequest{monday("09:00", "12:00"), other, monday("12:00", "13:00")})
	require.NoError(t, err)
	assert.Len(t, windows, 3)
}

func TestSetAvailabilityInvalidatesCache(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Staff(), time.Hour, 0)
	ctx := context.Background()

	st, err := svc.CreateStaff(ctx, &model.CreateStaffRequest{FirstName: "A", LastName: "B", Email: "ab@example.com",
		Availability: []model.AvailabilityWindowRequest{monday("09:00", "17:00")}})
	require.NoError(t, err)

	_, err = svc.GetAvailability(ctx, st.ID)
	require.NoError(t, err)

	windows, err := svc.SetAvailability(ctx, st.ID, &model.SetAvailabilityRequest{
		Windows: []model.AvailabilityWindowRequest{monday("08:00", "10:00")},
	})
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, schedule.MustClock("08:00"), windows[0].StartTime)

	_, err = svc.SetAvailability(ctx, uuid.New(), &model.SetAvailabilityRequest{})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = svc.GetAvailability(ctx, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestUpdateAndDeleteStaff(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Staff(), time.Minute, 0)
	ctx := context.Background()

	st, err := svc.CreateStaff(ctx, &model.CreateStaffRequest{FirstName: "A", LastName: "B", Email: "ab@example.com"})
	require.NoError(t, err)

	spec := "Cardiology"
	updated, err := svc.UpdateStaff(ctx, st.ID, &model.UpdateStaffRequest{Specialization: &spec})
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", updated.Specialization)

	list, total, err := svc.ListStaff(ctx, &model.StaffFilters{Specialization: "cardiology"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	require.NoError(t, svc.DeleteStaff(ctx, st.ID))
	_, err = svc.GetStaff(ctx, st.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
