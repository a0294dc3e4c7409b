package model

import (
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/schedule"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// AllAppointmentStatuses lists every status in display order.
var AllAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusScheduled,
	AppointmentStatusConfirmed,
	AppointmentStatusCompleted,
	AppointmentStatusCancelled,
	AppointmentStatusNoShow,
}

// Occupies reports whether an appointment in this status blocks staff time.
func (s AppointmentStatus) Occupies() bool {
	return s != AppointmentStatusCancelled && s != AppointmentStatusNoShow
}

// Final reports whether no further transitions are allowed.
func (s AppointmentStatus) Final() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled || s == AppointmentStatusNoShow
}

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled: {AppointmentStatusConfirmed, AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow},
	AppointmentStatusConfirmed: {AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow},
}

// CanTransitionTo reports whether s may move to next.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Appointment struct {
	Base
	PatientID    uuid.UUID         `db:"patient_id" json:"patient_id"`
	StaffID      uuid.UUID         `db:"staff_id" json:"staff_id"`
	ServiceID    uuid.UUID         `db:"service_id" json:"service_id"`
	Date         Date              `db:"appointment_date" json:"date"`
	StartTime    schedule.Clock    `db:"start_minute" json:"start_time"`
	EndTime      schedule.Clock    `db:"end_minute" json:"end_time"`
	Status       AppointmentStatus `db:"status" json:"status"`
	Notes        string            `db:"notes" json:"notes,omitempty"`
	CancelReason *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

// Interval returns the staff time the appointment occupies.
func (a *Appointment) Interval() schedule.Interval {
	return schedule.Interval{Start: a.StartTime, End: a.EndTime}
}

// AppointmentDetail is an appointment joined with display names.
type AppointmentDetail struct {
	Appointment
	PatientName string `db:"patient_name" json:"patient_name"`
	StaffName   string `db:"staff_name" json:"staff_name"`
	ServiceName string `db:"service_name" json:"service_name"`
}

type CreateAppointmentRequest struct {
	PatientID string `json:"patient_id" binding:"omitempty,uuid"`
	StaffID   string `json:"staff_id" binding:"required,uuid"`
	ServiceID string `json:"service_id" binding:"required,uuid"`
	Date      string `json:"date" binding:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" binding:"required,clock"`
	EndTime   string `json:"end_time" binding:"omitempty,clock"`
	Notes     string `json:"notes" binding:"max=1000"`
}

type UpdateAppointmentRequest struct {
	StaffID   *string `json:"staff_id" binding:"omitempty,uuid"`
	ServiceID *string `json:"service_id" binding:"omitempty,uuid"`
	Date      *string `json:"date" binding:"omitempty,datetime=2006-01-02"`
	StartTime *string `json:"start_time" binding:"omitempty,clock"`
	EndTime   *string `json:"end_time" binding:"omitempty,clock"`
	Notes     *string `json:"notes" binding:"omitempty,max=1000"`
}

// Reschedules reports whether the request touches the booked slot.
func (r *UpdateAppointmentRequest) Reschedules() bool {
	return r.StaffID != nil || r.ServiceID != nil || r.Date != nil || r.StartTime != nil || r.EndTime != nil
}

type UpdateStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required,oneof=scheduled confirmed completed cancelled no_show"`
	Reason string            `json:"reason" binding:"max=500"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type CheckConflictRequest struct {
	StaffID              string `json:"staff_id" binding:"required,uuid"`
	Date                 string `json:"date" binding:"required,datetime=2006-01-02"`
	StartTime            string `json:"start_time" binding:"required,clock"`
	EndTime              string `json:"end_time" binding:"required,clock"`
	ExcludeAppointmentID string `json:"exclude_appointment_id" binding:"omitempty,uuid"`
}

// ConflictQuery is the parsed form of a conflict check.
type ConflictQuery struct {
	StaffID   uuid.UUID
	Date      Date
	Interval  schedule.Interval
	ExcludeID *uuid.UUID
}

// SlotQuery asks for free slots of a staff member on a day.
type SlotQuery struct {
	StaffID   uuid.UUID
	Date      Date
	ServiceID *uuid.UUID
	Duration  int
}

type AppointmentFilters struct {
	Pagination
	PatientID uuid.UUID         `form:"-"`
	StaffID   uuid.UUID         `form:"-"`
	Status    AppointmentStatus `form:"status"`
	From      *Date             `form:"-"`
	To        *Date             `form:"-"`
}

type AppointmentStats struct {
	From           Date                      `json:"from"`
	To             Date                      `json:"to"`
	ByStatus       map[AppointmentStatus]int `json:"by_status"`
	Total          int                       `json:"total"`
	Today          int                       `json:"today"`
	Upcoming       int                       `json:"upcoming"`
	Patients       int                       `json:"patients"`
	Staff          int                       `json:"staff"`
	Services       int                       `json:"services"`
	CompletionRate float64                   `json:"completion_rate"`
}
