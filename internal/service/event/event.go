// Package event builds the outbox events appointments emit and turns the
// published events back into patient notifications.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// EventTypes lists every appointment event the API writes to the outbox.
var EventTypes = []string{
	model.EventAppointmentCreated,
	model.EventAppointmentUpdated,
	model.EventAppointmentCancelled,
}

// AppointmentPayload flattens an appointment and its participants into the
// event payload.
func AppointmentPayload(a *model.Appointment, patient *model.Patient, staff *model.Staff, svc *model.Service) model.AppointmentEvent {
	payload := model.AppointmentEvent{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		Date:          a.Date,
		StartTime:     a.StartTime.String(),
		EndTime:       a.EndTime.String(),
		Status:        a.Status,
	}
	if patient != nil {
		payload.PatientEmail = patient.Email
		payload.PatientName = patient.FullName()
	}
	if staff != nil {
		payload.StaffName = staff.FullName()
	}
	if svc != nil {
		payload.ServiceName = svc.Name
	}
	if a.CancelReason != nil {
		payload.Reason = *a.CancelReason
	}
	return payload
}

// NewOutboxEvent wraps payload into a pending outbox event of eventType.
func NewOutboxEvent(eventType string, payload interface{}) (*model.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   data,
		Status:    model.OutboxStatusPending,
	}, nil
}

// TypeFor picks the event type describing a change to status.
func TypeFor(created bool, status model.AppointmentStatus) string {
	switch {
	case created:
		return model.EventAppointmentCreated
	case status == model.AppointmentStatusCancelled:
		return model.EventAppointmentCancelled
	default:
		return model.EventAppointmentUpdated
	}
}
