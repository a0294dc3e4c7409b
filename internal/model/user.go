package model

import (
	"github.com/google/uuid"
)

type Role string

// User roles
const (
	RolePatient Role = "patient"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// User represents a system user
type User struct {
	Base
	Email        string     `json:"email" db:"email"`
	Name         string     `json:"name" db:"name"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         Role       `json:"role" db:"role"`
	PatientID    *uuid.UUID `json:"patient_id,omitempty" db:"patient_id"`
	StaffID      *uuid.UUID `json:"staff_id,omitempty" db:"staff_id"`
	Active       bool       `json:"active" db:"active"`
}

// Actor is the authenticated caller a request acts on behalf of.
type Actor struct {
	UserID    uuid.UUID
	Role      Role
	PatientID *uuid.UUID
	StaffID   *uuid.UUID
}

func ActorFromClaims(c *TokenClaims) Actor {
	return Actor{UserID: c.UserID, Role: c.Role, PatientID: c.PatientID, StaffID: c.StaffID}
}

func (a Actor) IsPatient() bool { return a.Role == RolePatient }

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// IsClinical reports whether the actor is staff or admin.
func (a Actor) IsClinical() bool { return a.Role == RoleStaff || a.Role == RoleAdmin }

// CanAccessPatient reports whether the actor may see the given patient's records.
func (a Actor) CanAccessPatient(patientID uuid.UUID) bool {
	if a.IsClinical() {
		return true
	}
	return a.PatientID != nil && *a.PatientID == patientID
}
