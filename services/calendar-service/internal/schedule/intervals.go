package schedule

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/civil"
)

// Interval is a resolved working range as instants, [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Snapshot is the read-only input to interval resolution. It is built once per
// request and never mutated afterwards.
type Snapshot struct {
	Location *time.Location
	Schedule *WorkingSchedule
	TimeOff  []TimeOffBlock
}

// NewSnapshot resolves the zone from the schedule, falling back to fallbackZone.
func NewSnapshot(ws *WorkingSchedule, off []TimeOffBlock, fallbackZone string) Snapshot {
	zone := ""
	if ws != nil {
		zone = ws.Timezone
	}
	return Snapshot{
		Location: civil.LoadLocation(zone, fallbackZone),
		Schedule: ws,
		TimeOff:  off,
	}
}

func (s Snapshot) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s Snapshot) Closed(d civil.Date) bool {
	return Closed(d, s.TimeOff)
}

// Intervals returns the working intervals of d, ordered by start. Closed days,
// weekends under the default template and days whose rule has no intervals all
// yield nil.
func (s Snapshot) Intervals(d civil.Date) []Interval {
	if s.Closed(d) {
		return nil
	}
	loc := s.location()
	wd := d.Weekday()

	hours := defaultHours(wd)
	if rule, ok := s.Schedule.Rule(wd); ok {
		hours = rule.Intervals
	}

	out := make([]Interval, 0, len(hours))
	for _, h := range hours {
		start := d.At(loc, int(h.From)).UTC()
		end := d.At(loc, int(h.To)).UTC()
		if !end.After(start) {
			continue
		}
		out = append(out, Interval{Start: start, End: end})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
