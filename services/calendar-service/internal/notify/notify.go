// Package notify delivers reminder notifications over the configured channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Reminder is everything a channel needs to render one reminder.
type Reminder struct {
	AppointmentID   string
	Kind            string
	StartsAt        time.Time
	DurationMinutes int
	Location        *time.Location
	ClientName      string
	ClientEmail     string
	ClientPhone     string
	Notes           string
}

type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// ErrNoRecipient is returned by a channel that has no address for the client.
var ErrNoRecipient = errors.New("no recipient for channel")

func (r Reminder) localStart() time.Time {
	if r.Location == nil {
		return r.StartsAt.UTC()
	}
	return r.StartsAt.In(r.Location)
}

func (r Reminder) lead() string {
	if r.Kind == "1h" {
		return "in one hour"
	}
	return "tomorrow"
}

// Subject and Body are shared by the text channels.
func (r Reminder) Subject() string {
	return fmt.Sprintf("Reminder: appointment %s", r.lead())
}

func (r Reminder) Body() string {
	var b strings.Builder
	name := strings.TrimSpace(r.ClientName)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "This is a reminder that your appointment is %s, on %s", r.lead(), r.localStart().Format("Mon 2 Jan 2006 at 15:04 MST"))
	if r.DurationMinutes > 0 {
		fmt.Fprintf(&b, " (%d minutes)", r.DurationMinutes)
	}
	b.WriteString(".\n")
	if notes := strings.TrimSpace(r.Notes); notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", notes)
	}
	return b.String()
}

// Short is the SMS text.
func (r Reminder) Short() string {
	return fmt.Sprintf("Reminder: your appointment is %s, %s.", r.lead(), r.localStart().Format("Mon 2 Jan 15:04"))
}
