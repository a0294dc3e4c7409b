package staff

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/schedule"
	"github.com/jwalitptl/clinic-api/internal/service"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type StaffService interface {
	CreateStaff(ctx context.Context, req *model.CreateStaffRequest) (*model.Staff, error)
	GetStaff(ctx context.Context, id uuid.UUID) (*model.Staff, error)
	UpdateStaff(ctx context.Context, id uuid.UUID, req *model.UpdateStaffRequest) (*model.Staff, error)
	DeleteStaff(ctx context.Context, id uuid.UUID) error
	ListStaff(ctx context.Context, filters *model.StaffFilters) ([]*model.Staff, int, error)
	GetAvailability(ctx context.Context, staffID uuid.UUID) ([]model.AvailabilityWindow, error)
	SetAvailability(ctx context.Context, staffID uuid.UUID, req *model.SetAvailabilityRequest) ([]model.AvailabilityWindow, error)
}

type Service struct {
	repo        repository.StaffRepository
	cache       *cache.Cache
	maxPageSize int
}

// NewService caches availability windows for ttl; writes through this
// service invalidate the cached entry.
func NewService(repo repository.StaffRepository, ttl time.Duration, maxPageSize int) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &Service{
		repo:        repo,
		cache:       cache.New(ttl, 2*ttl),
		maxPageSize: maxPageSize,
	}
}

func availabilityKey(id uuid.UUID) string {
	return "availability:" + id.String()
}

func (s *Service) CreateStaff(ctx context.Context, req *model.CreateStaffRequest) (*model.Staff, error) {
	windows, err := parseWindows(req.Availability)
	if err != nil {
		return nil, err
	}

	staff := &model.Staff{
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Email:          strings.ToLower(req.Email),
		Phone:          req.Phone,
		Specialization: req.Specialization,
		Status:         model.StaffStatusActive,
		Availability:   windows,
	}
	if err := s.repo.Create(ctx, staff); err != nil {
		return nil, service.FromRepository("staff", err)
	}

	log.Ctx(ctx).Info().Str("staff_id", staff.ID.String()).Int("windows", len(windows)).Msg("staff created")
	return staff, nil
}

func (s *Service) GetStaff(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	staff, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepository("staff", err)
	}
	return staff, nil
}

func (s *Service) UpdateStaff(ctx context.Context, id uuid.UUID, req *model.UpdateStaffRequest) (*model.Staff, error) {
	staff, err := s.GetStaff(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(staff)
	staff.Email = strings.ToLower(staff.Email)

	if err := s.repo.Update(ctx, staff); err != nil {
		return nil, service.FromRepository("staff", err)
	}
	return staff, nil
}

func (s *Service) DeleteStaff(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return service.FromRepository("staff", err)
	}
	s.cache.Delete(availabilityKey(id))
	return nil
}

func (s *Service) ListStaff(ctx context.Context, filters *model.StaffFilters) ([]*model.Staff, int, error) {
	filters.Normalize(s.maxPageSize)
	staff, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, service.FromRepository("staff", err)
	}
	return staff, total, nil
}

// GetAvailability returns the staff member's windows, served from cache when warm.
func (s *Service) GetAvailability(ctx context.Context, staffID uuid.UUID) ([]model.AvailabilityWindow, error) {
	key := availabilityKey(staffID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]model.AvailabilityWindow), nil
	}

	if _, err := s.repo.Get(ctx, staffID); err != nil {
		return nil, service.FromRepository("staff", err)
	}
	windows, err := s.repo.GetAvailability(ctx, staffID)
	if err != nil {
		return nil, service.FromRepository("availability", err)
	}

	s.cache.SetDefault(key, windows)
	return windows, nil
}

func (s *Service) SetAvailability(ctx context.Context, staffID uuid.UUID, req *model.SetAvailabilityRequest) ([]model.AvailabilityWindow, error) {
	windows, err := parseWindows(req.Windows)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ReplaceAvailability(ctx, staffID, windows); err != nil {
		return nil, service.FromRepository("staff", err)
	}
	s.cache.Delete(availabilityKey(staffID))

	log.Ctx(ctx).Info().Str("staff_id", staffID.String()).Int("windows", len(windows)).Msg("availability replaced")
	return s.GetAvailability(ctx, staffID)
}

// parseWindows validates window requests: well-formed times, start before end,
// and no overlap between windows of the same day.
func parseWindows(reqs []model.AvailabilityWindowRequest) ([]model.AvailabilityWindow, error) {
	windows := make([]model.AvailabilityWindow, 0, len(reqs))
	for i, r := range reqs {
		if r.DayOfWeek == nil {
			return nil, apperrors.BadRequest(fmt.Sprintf("windows[%d]: day_of_week is required", i), nil)
		}
		day := *r.DayOfWeek
		start, err := schedule.ParseClock(r.StartTime)
		if err != nil {
			return nil, apperrors.BadRequest(fmt.Sprintf("windows[%d]: %v", i, err), err)
		}
		end, err := schedule.ParseClock(r.EndTime)
		if err != nil {
			return nil, apperrors.BadRequest(fmt.Sprintf("windows[%d]: %v", i, err), err)
		}
		interval, err := schedule.NewInterval(start, end)
		if err != nil {
			return nil, apperrors.BadRequest(fmt.Sprintf("windows[%d]: %v", i, err), err)
		}

		for _, prev := range windows {
			if prev.DayOfWeek == day && schedule.Overlaps(prev.Window().Interval, interval) {
				return nil, apperrors.BadRequest(fmt.Sprintf("windows[%d] overlaps another %s window", i, day), nil)
			}
		}

		windows = append(windows, model.AvailabilityWindow{
			DayOfWeek: day,
			StartTime: interval.Start,
			EndTime:   interval.End,
		})
	}
	return windows, nil
}
