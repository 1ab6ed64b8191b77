// Package reminders arms per-appointment reminder times and dispatches the
// due ones.
package reminders

import (
	"time"

	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/civil"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/model"
)

type Kind string

const (
	Kind24h Kind = "24h"
	Kind1h  Kind = "1h"
)

// Kinds is the processing order of a full run.
var Kinds = []Kind{Kind24h, Kind1h}

func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case Kind24h, Kind1h:
		return k, true
	}
	return "", false
}

// SendAt is the reminder time of kind for an appointment starting at startsAt,
// counted back on the wall clock of loc.
func SendAt(kind Kind, startsAt time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if kind == Kind1h {
		return civil.WallClockMinus(startsAt, loc, 0, 1)
	}
	return civil.WallClockMinus(startsAt, loc, 1, 0)
}

// Arm recomputes both send times from StartsAt and clears both sent markers.
// It runs on create and whenever StartsAt changes, even if the new send times
// are already in the past.
func Arm(a *model.Appointment, loc *time.Location) {
	send24 := SendAt(Kind24h, a.StartsAt, loc)
	send1 := SendAt(Kind1h, a.StartsAt, loc)
	a.Reminders = model.Reminders{
		Send24hAt: &send24,
		Send1hAt:  &send1,
	}
}
