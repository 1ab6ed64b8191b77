package outbox

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/model"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AppointmentRequested     = "calendar.appointment.requested.v1"
	AppointmentRescheduled   = "calendar.appointment.rescheduled.v1"
	AppointmentStatusChanged = "calendar.appointment.status_changed.v1"
)

type appointmentPayload struct {
	AppointmentID   string `json:"appointment_id"`
	Status          string `json:"status"`
	PreviousStatus  string `json:"previous_status,omitempty"`
	StartsAt        string `json:"starts_at"`
	EndsAt          string `json:"ends_at"`
	PreviousStartAt string `json:"previous_starts_at,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	ClientEmail     string `json:"client_email,omitempty"`
	ClientPhone     string `json:"client_phone,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}

// AppointmentEvent builds an event of eventType for a. prev carries the state
// before the change, when there was one.
func AppointmentEvent(eventType string, a model.Appointment, prev *model.Appointment, now time.Time) (Event, error) {
	p := appointmentPayload{
		AppointmentID:   a.ID,
		Status:          string(a.Status),
		StartsAt:        a.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:          a.EndsAt().UTC().Format(time.RFC3339),
		DurationMinutes: model.EffectiveDuration(a.DurationMinutes),
		ClientEmail:     a.ClientEmail,
		ClientPhone:     a.ClientPhone,
		OccurredAt:      now.UTC().Format(time.RFC3339),
	}
	if prev != nil {
		if prev.Status != a.Status {
			p.PreviousStatus = string(prev.Status)
		}
		if !prev.StartsAt.Equal(a.StartsAt) {
			p.PreviousStartAt = prev.StartsAt.UTC().Format(time.RFC3339)
		}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
