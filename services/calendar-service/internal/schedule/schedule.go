// Package schedule holds the weekly working-hours template, whole-day closures
// and the calculation that turns them into concrete working intervals.
package schedule

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/civil"
)

// Hours is a local working range on a weekday, [From, To).
type Hours struct {
	From ClockTime `json:"from" yaml:"from"`
	To   ClockTime `json:"to" yaml:"to"`
}

// DayRule lists the working ranges of one weekday (0 = Sunday). A rule with no
// intervals closes that weekday.
type DayRule struct {
	Weekday   int     `json:"weekday" yaml:"weekday"`
	Intervals []Hours `json:"intervals" yaml:"intervals"`
}

type WorkingSchedule struct {
	Timezone string    `json:"timezone" yaml:"timezone"`
	Days     []DayRule `json:"days" yaml:"days"`
}

// Default is Monday to Friday 09:00-17:00, weekends closed.
func Default(timezone string) *WorkingSchedule {
	ws := &WorkingSchedule{Timezone: timezone}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		ws.Days = append(ws.Days, DayRule{Weekday: int(wd), Intervals: defaultHours(wd)})
	}
	return ws
}

func defaultHours(wd time.Weekday) []Hours {
	if wd == time.Saturday || wd == time.Sunday {
		return nil
	}
	return []Hours{{From: 9 * 60, To: 17 * 60}}
}

func (ws *WorkingSchedule) Validate() error {
	if ws == nil {
		return errors.New("schedule is required")
	}
	if ws.Timezone != "" {
		if _, err := time.LoadLocation(ws.Timezone); err != nil {
			return fmt.Errorf("unknown timezone %q", ws.Timezone)
		}
	}
	seen := make(map[int]bool, len(ws.Days))
	for _, d := range ws.Days {
		if d.Weekday < 0 || d.Weekday > 6 {
			return fmt.Errorf("weekday %d out of range 0-6", d.Weekday)
		}
		if seen[d.Weekday] {
			return fmt.Errorf("duplicate rule for weekday %d", d.Weekday)
		}
		seen[d.Weekday] = true
		for _, h := range d.Intervals {
			if h.From < 0 || h.To > endOfDay || h.From >= h.To {
				return fmt.Errorf("weekday %d: interval %s-%s must satisfy from < to", d.Weekday, h.From, h.To)
			}
		}
	}
	return nil
}

// Rule returns the rule for wd, if the schedule has one.
func (ws *WorkingSchedule) Rule(wd time.Weekday) (DayRule, bool) {
	if ws == nil {
		return DayRule{}, false
	}
	for _, d := range ws.Days {
		if d.Weekday == int(wd) {
			return d, true
		}
	}
	return DayRule{}, false
}

// LoadFile reads a YAML schedule snapshot.
func LoadFile(path string) (*WorkingSchedule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ws WorkingSchedule
	if err := yaml.Unmarshal(raw, &ws); err != nil {
		return nil, fmt.Errorf("parse schedule %s: %w", path, err)
	}
	if err := ws.Validate(); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", path, err)
	}
	return &ws, nil
}

// TimeOffBlock closes every day from DateFrom to DateTo inclusive.
type TimeOffBlock struct {
	ID       string     `json:"id,omitempty"`
	DateFrom civil.Date `json:"date_from"`
	DateTo   civil.Date `json:"date_to"`
	Reason   string     `json:"reason,omitempty"`
}

func (b TimeOffBlock) Validate() error {
	if b.DateFrom.IsZero() || b.DateTo.IsZero() {
		return errors.New("date_from and date_to are required")
	}
	if b.DateTo.Before(b.DateFrom) {
		return errors.New("date_from must not be after date_to")
	}
	return nil
}

func (b TimeOffBlock) Covers(d civil.Date) bool {
	return !d.Before(b.DateFrom) && !d.After(b.DateTo)
}

// Closed reports whether any block covers d.
func Closed(d civil.Date, blocks []TimeOffBlock) bool {
	for _, b := range blocks {
		if b.Covers(d) {
			return true
		}
	}
	return false
}
