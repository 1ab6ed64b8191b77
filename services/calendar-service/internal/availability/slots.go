package availability

import (
	"iter"
	"time"

	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/schedule"
)

// Candidates walks every working interval independently from its start in
// step increments, yielding each start whose [t, t+duration) still fits
// inside that interval. Intervals are never joined, so a candidate cannot
// bridge a break. The sequence is lazy and may be ranged over repeatedly.
func Candidates(intervals []schedule.Interval, duration, step time.Duration) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if duration <= 0 || step <= 0 {
			return
		}
		for _, in := range intervals {
			for t := in.Start; !t.Add(duration).After(in.End); t = t.Add(step) {
				if !yield(t) {
					return
				}
			}
		}
	}
}
