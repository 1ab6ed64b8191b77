package model

import "time"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusDeclined  Status = "DECLINED"
	StatusCancelled Status = "CANCELLED"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusDeclined, StatusCancelled:
		return st, true
	}
	return "", false
}

// DefaultDurationMinutes applies when a stored or requested duration is missing
// or not positive.
const DefaultDurationMinutes = 120

// Reminders holds the armed send times and the markers set once sent.
type Reminders struct {
	Send24hAt *time.Time
	Sent24hAt *time.Time
	Send1hAt  *time.Time
	Sent1hAt  *time.Time
}

type Appointment struct {
	ID              string
	StartsAt        time.Time
	DurationMinutes int
	Status          Status
	ClientName      string
	ClientEmail     string
	ClientPhone     string
	Notes           string
	Reminders       Reminders
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func EffectiveDuration(minutes int) int {
	if minutes <= 0 {
		return DefaultDurationMinutes
	}
	return minutes
}

func (a Appointment) Duration() time.Duration {
	return time.Duration(EffectiveDuration(a.DurationMinutes)) * time.Minute
}

func (a Appointment) EndsAt() time.Time {
	return a.StartsAt.Add(a.Duration())
}

// Blocking reports whether the appointment occupies calendar time.
func (a Appointment) Blocking() bool {
	return a.Status != StatusCancelled
}

// CanTransition lists the status changes an operator may apply.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusCancelled:
		return from != StatusCancelled
	case StatusConfirmed, StatusDeclined:
		return from == StatusPending
	}
	return false
}
