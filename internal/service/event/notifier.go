package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Notifier mails patients when their appointments change.
type Notifier struct {
	sender  email.Sender
	metrics *metrics.Metrics
}

func NewNotifier(sender email.Sender, m *metrics.Metrics) *Notifier {
	return &Notifier{sender: sender, metrics: m}
}

// Handler returns the broker handler for eventType.
func (n *Notifier) Handler(eventType string) messaging.Handler {
	return func(ctx context.Context, payload []byte) error {
		return n.Handle(ctx, eventType, payload)
	}
}

// Handle decodes an appointment event and sends the matching email. Events
// without a patient address are skipped.
func (n *Notifier) Handle(ctx context.Context, eventType string, payload []byte) error {
	var evt model.AppointmentEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", eventType, err)
	}
	if evt.PatientEmail == "" {
		log.Ctx(ctx).Debug().Str("event_type", eventType).Str("appointment_id", evt.AppointmentID.String()).Msg("no patient email, skipping notification")
		return nil
	}

	msg := compose(eventType, evt)
	err := n.sender.Send(ctx, msg)
	n.record(eventType, err)
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().
		Str("event_type", eventType).
		Str("appointment_id", evt.AppointmentID.String()).
		Msg("appointment notification sent")
	return nil
}

func (n *Notifier) record(eventType string, err error) {
	if n.metrics == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	n.metrics.EmailsSent.WithLabelValues(eventType, status).Inc()
}

// Subscribe registers the notifier for every appointment event and blocks
// until ctx is cancelled or a subscription fails.
func (n *Notifier) Subscribe(ctx context.Context, broker messaging.Broker, prefix string) error {
	errs := make(chan error, len(EventTypes))
	for _, eventType := range EventTypes {
		go func(eventType string) {
			errs <- broker.Subscribe(ctx, messaging.Channel(prefix, eventType), n.Handler(eventType))
		}(eventType)
	}

	for range EventTypes {
		if err := <-errs; err != nil && ctx.Err() == nil {
			return err
		}
	}
	return nil
}

func compose(eventType string, evt model.AppointmentEvent) email.Message {
	when := fmt.Sprintf("%s from %s to %s", evt.Date, evt.StartTime, evt.EndTime)
	with := evt.ServiceName
	if evt.StaffName != "" {
		with = strings.TrimSpace(with + " with " + evt.StaffName)
	}

	var subject, lead string
	switch eventType {
	case model.EventAppointmentCreated:
		subject = "Your appointment is booked"
		lead = "Your appointment has been booked."
	case model.EventAppointmentCancelled:
		subject = "Your appointment was cancelled"
		lead = "Your appointment has been cancelled."
	default:
		subject = "Your appointment was updated"
		lead = fmt.Sprintf("Your appointment has been updated and is now %s.", strings.ReplaceAll(string(evt.Status), "_", " "))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n%s\n\n%s\n%s\n", evt.PatientName, lead, with, when)
	if evt.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", evt.Reason)
	}
	return email.Message{To: evt.PatientEmail, Subject: subject, Body: b.String()}
}
