package availability

import (
	"iter"
	"slices"
	"time"

	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/model"
)

// Interval is an occupied range, [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Busy converts appointments into occupied intervals, skipping cancelled ones.
func Busy(appts []model.Appointment) []Interval {
	out := make([]Interval, 0, len(appts))
	for _, a := range appts {
		if !a.Blocking() {
			continue
		}
		out = append(out, Interval{Start: a.StartsAt.UTC(), End: a.EndsAt().UTC()})
	}
	return out
}

// Resolver rejects candidates that overlap an existing booking or start
// closer than Spacing to an existing booking's start.
type Resolver struct {
	Spacing time.Duration
	// NotBefore drops candidates starting earlier than it. Zero disables.
	NotBefore time.Time
}

func (r Resolver) Accept(start time.Time, duration time.Duration, busy []Interval) bool {
	if !r.NotBefore.IsZero() && start.Before(r.NotBefore) {
		return false
	}
	end := start.Add(duration)
	if overlapsAny(start, end, busy) {
		return false
	}
	return !tooClose(start, r.Spacing, busy)
}

// Filter returns the surviving candidates ascending and without duplicates.
func (r Resolver) Filter(candidates iter.Seq[time.Time], duration time.Duration, busy []Interval) []time.Time {
	var out []time.Time
	for c := range candidates {
		if r.Accept(c, duration, busy) {
			out = append(out, c.UTC())
		}
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(out, func(a, b time.Time) bool { return a.Equal(b) })
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

// tooClose applies the spacing rule. Exactly Spacing apart is allowed.
func tooClose(start time.Time, spacing time.Duration, busy []Interval) bool {
	if spacing <= 0 {
		return false
	}
	for _, b := range busy {
		d := start.Sub(b.Start)
		if d < 0 {
			d = -d
		}
		if d < spacing {
			return true
		}
	}
	return false
}

// FetchWindow widens a day's [dayStart, dayEnd) so that every booking able to
// conflict with a candidate of that day is loaded: bookings that began on the
// previous civil day and run into this one, and bookings starting just after
// the day within the spacing distance.
func FetchWindow(dayStart, dayEnd time.Time, spacing, maxDuration time.Duration) (time.Time, time.Time) {
	lead := max(4*time.Hour, maxDuration, spacing)
	return dayStart.Add(-lead), dayEnd.Add(spacing)
}
