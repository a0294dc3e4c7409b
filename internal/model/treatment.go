package model

import (
	"github.com/google/uuid"
)

// Treatment records care given to a patient, optionally tied to an appointment.
type Treatment struct {
	Base
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	StaffID       uuid.UUID  `db:"staff_id" json:"staff_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Description   string     `db:"description" json:"description"`
	Diagnosis     string     `db:"diagnosis" json:"diagnosis,omitempty"`
	Notes         string     `db:"notes" json:"notes,omitempty"`
	Cost          float64    `db:"cost" json:"cost"`
	TreatedOn     Date       `db:"treated_on" json:"treated_on"`
}

type CreateTreatmentRequest struct {
	StaffID       string  `json:"staff_id" binding:"required,uuid"`
	AppointmentID string  `json:"appointment_id" binding:"omitempty,uuid"`
	Description   string  `json:"description" binding:"required,max=2000"`
	Diagnosis     string  `json:"diagnosis" binding:"max=2000"`
	Notes         string  `json:"notes" binding:"max=2000"`
	Cost          float64 `json:"cost" binding:"min=0"`
	TreatedOn     string  `json:"treated_on" binding:"omitempty,datetime=2006-01-02"`
}
