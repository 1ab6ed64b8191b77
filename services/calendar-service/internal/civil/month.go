package civil

import (
	"fmt"
	"strings"
	"time"
)

type Month struct {
	Year  int
	Month time.Month
}

func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) First() Date {
	return Date{Year: m.Year, Month: m.Month, Day: 1}
}

func (m Month) Last() Date {
	return m.First().AddDays(m.Len() - 1)
}

// Len is the number of days in the month.
func (m Month) Len() int {
	return time.Date(m.Year, m.Month+1, 0, 12, 0, 0, 0, time.UTC).Day()
}

// Days lists every date of the month in order.
func (m Month) Days() []Date {
	n := m.Len()
	out := make([]Date, 0, n)
	for day := 1; day <= n; day++ {
		out = append(out, Date{Year: m.Year, Month: m.Month, Day: day})
	}
	return out
}
