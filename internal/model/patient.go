package model

import (
	"time"
)

type PatientStatus string

const (
	PatientStatusActive   PatientStatus = "active"
	PatientStatusInactive PatientStatus = "inactive"
)

type Patient struct {
	Base
	FirstName   string        `db:"first_name" json:"first_name"`
	LastName    string        `db:"last_name" json:"last_name"`
	Email       string        `db:"email" json:"email"`
	Phone       *string       `db:"phone" json:"phone,omitempty"`
	DateOfBirth *time.Time    `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender      *string       `db:"gender" json:"gender,omitempty"`
	Address     *string       `db:"address" json:"address,omitempty"`
	Status      PatientStatus `db:"status" json:"status"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

type CreatePatientRequest struct {
	FirstName   string     `json:"first_name" binding:"required,max=100"`
	LastName    string     `json:"last_name" binding:"required,max=100"`
	Email       string     `json:"email" binding:"required,email"`
	Phone       *string    `json:"phone" binding:"omitempty,max=32"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      *string    `json:"gender" binding:"omitempty,oneof=male female other"`
	Address     *string    `json:"address" binding:"omitempty,max=255"`
}

type UpdatePatientRequest struct {
	FirstName   *string        `json:"first_name" binding:"omitempty,max=100"`
	LastName    *string        `json:"last_name" binding:"omitempty,max=100"`
	Email       *string        `json:"email" binding:"omitempty,email"`
	Phone       *string        `json:"phone" binding:"omitempty,max=32"`
	DateOfBirth *time.Time     `json:"date_of_birth"`
	Gender      *string        `json:"gender" binding:"omitempty,oneof=male female other"`
	Address     *string        `json:"address" binding:"omitempty,max=255"`
	Status      *PatientStatus `json:"status" binding:"omitempty,oneof=active inactive"`
}

// Apply copies the set fields of req onto p.
func (req *UpdatePatientRequest) Apply(p *Patient) {
	if req.FirstName != nil {
		p.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		p.LastName = *req.LastName
	}
	if req.Email != nil {
		p.Email = *req.Email
	}
	if req.Phone != nil {
		p.Phone = req.Phone
	}
	if req.DateOfBirth != nil {
		p.DateOfBirth = req.DateOfBirth
	}
	if req.Gender != nil {
		p.Gender = req.Gender
	}
	if req.Address != nil {
		p.Address = req.Address
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
}

type PatientFilters struct {
	Pagination
	SearchTerm string        `form:"search"`
	Status     PatientStatus `form:"status"`
}
