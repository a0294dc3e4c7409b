package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Event types written to the outbox and published on the broker.
const (
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentUpdated   = "appointment.updated"
	EventAppointmentCancelled = "appointment.cancelled"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// AppointmentEvent is the payload of appointment.* events.
type AppointmentEvent struct {
	AppointmentID uuid.UUID         `json:"appointment_id"`
	PatientID     uuid.UUID         `json:"patient_id"`
	PatientEmail  string            `json:"patient_email"`
	PatientName   string            `json:"patient_name"`
	StaffName     string            `json:"staff_name"`
	ServiceName   string            `json:"service_name"`
	Date          Date              `json:"date"`
	StartTime     string            `json:"start_time"`
	EndTime       string            `json:"end_time"`
	Status        AppointmentStatus `json:"status"`
	Reason        string            `json:"reason,omitempty"`
}
