package model

import (
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/schedule"
)

type StaffStatus string

const (
	StaffStatusActive   StaffStatus = "active"
	StaffStatusInactive StaffStatus = "inactive"
)

type Staff struct {
	Base
	FirstName      string      `db:"first_name" json:"first_name"`
	LastName       string      `db:"last_name" json:"last_name"`
	Email          string      `db:"email" json:"email"`
	Phone          *string     `db:"phone" json:"phone,omitempty"`
	Specialization string      `db:"specialization" json:"specialization"`
	Status         StaffStatus `db:"status" json:"status"`

	Availability []AvailabilityWindow `db:"-" json:"availability,omitempty"`
}

func (s *Staff) FullName() string {
	return s.FirstName + " " + s.LastName
}

// AvailabilityWindow is a stored recurring working window of a staff member.
type AvailabilityWindow struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	StaffID   uuid.UUID        `db:"staff_id" json:"staff_id"`
	DayOfWeek schedule.Weekday `db:"day_of_week" json:"day_of_week"`
	StartTime schedule.Clock   `db:"start_minute" json:"start_time"`
	EndTime   schedule.Clock   `db:"end_minute" json:"end_time"`
}

// Window converts the stored row into the calculator's representation.
func (w AvailabilityWindow) Window() schedule.Window {
	return schedule.Window{
		Day:      w.DayOfWeek,
		Interval: schedule.Interval{Start: w.StartTime, End: w.EndTime},
	}
}

// Windows converts a staff member's stored windows for the calculator.
func Windows(rows []AvailabilityWindow) []schedule.Window {
	out := make([]schedule.Window, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Window())
	}
	return out
}

// AvailabilityWindowRequest takes DayOfWeek by pointer so an omitted day is
// rejected rather than read as Sunday.
type AvailabilityWindowRequest struct {
	DayOfWeek *schedule.Weekday `json:"day_of_week" binding:"required"`
	StartTime string            `json:"start_time" binding:"required,clock"`
	EndTime   string            `json:"end_time" binding:"required,clock"`
}

type SetAvailabilityRequest struct {
	Windows []AvailabilityWindowRequest `json:"windows" binding:"dive"`
}

type CreateStaffRequest struct {
	FirstName      string                      `json:"first_name" binding:"required,max=100"`
	LastName       string                      `json:"last_name" binding:"required,max=100"`
	Email          string                      `json:"email" binding:"required,email"`
	Phone          *string                     `json:"phone" binding:"omitempty,max=32"`
	Specialization string                      `json:"specialization" binding:"max=100"`
	Availability   []AvailabilityWindowRequest `json:"availability" binding:"dive"`
}

type UpdateStaffRequest struct {
	FirstName      *string      `json:"first_name" binding:"omitempty,max=100"`
	LastName       *string      `json:"last_name" binding:"omitempty,max=100"`
	Email          *string      `json:"email" binding:"omitempty,email"`
	Phone          *string      `json:"phone" binding:"omitempty,max=32"`
	Specialization *string      `json:"specialization" binding:"omitempty,max=100"`
	Status         *StaffStatus `json:"status" binding:"omitempty,oneof=active inactive"`
}

func (req *UpdateStaffRequest) Apply(s *Staff) {
	if req.FirstName != nil {
		s.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		s.LastName = *req.LastName
	}
	if req.Email != nil {
		s.Email = *req.Email
	}
	if req.Phone != nil {
		s.Phone = req.Phone
	}
	if req.Specialization != nil {
		s.Specialization = *req.Specialization
	}
	if req.Status != nil {
		s.Status = *req.Status
	}
}

type StaffFilters struct {
	Pagination
	SearchTerm     string      `form:"search"`
	Specialization string      `form:"specialization"`
	Status         StaffStatus `form:"status"`
}
