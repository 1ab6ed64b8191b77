package civil

import (
	"strings"
	"time"
)

// LoadLocation resolves an IANA name, falling back to fallback and then UTC.
func LoadLocation(name, fallback string) *time.Location {
	for _, candidate := range []string{name, fallback} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if loc, err := time.LoadLocation(candidate); err == nil {
			return loc
		}
	}
	return time.UTC
}

// WallClockMinus moves t back by days and hours on the wall clock of loc and
// returns the resulting instant. Across a DST change the elapsed duration
// differs from days*24h+hours while the local clock reading stays aligned.
func WallClockMinus(t time.Time, loc *time.Location, days, hours int) time.Time {
	local := t.In(loc)
	y, m, d := local.Date()
	hh, mm, ss := local.Clock()
	return time.Date(y, m, d-days, hh-hours, mm, ss, local.Nanosecond(), loc).UTC()
}
