// Package availability turns a working schedule, closures and existing
// bookings into offerable start times.
package availability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	otelx "github.com/md-rashed-zaman/slotcal/libs/otel"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/civil"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/model"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/schedule"
)

// ScheduleSource provides the working template and closures. A nil schedule
// means none has been configured.
type ScheduleSource interface {
	WorkingSchedule(ctx context.Context) (*schedule.WorkingSchedule, error)
	TimeOffBetween(ctx context.Context, from, to civil.Date) ([]schedule.TimeOffBlock, error)
}

// AppointmentSource lists non-cancelled appointments overlapping [from, to).
type AppointmentSource interface {
	ListBlocking(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
}

type Config struct {
	Timezone        string
	Step            time.Duration
	Spacing         time.Duration
	DefaultDuration time.Duration
	MaxDuration     time.Duration
	// HidePastSlots drops candidates starting before Now. With it set, Now is
	// an input: output is repeatable only for a fixed Now.
	HidePastSlots   bool
	Now             func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Timezone == "" {
		c.Timezone = "Europe/Sofia"
	}
	if c.Step <= 0 {
		c.Step = 30 * time.Minute
	}
	if c.Spacing < 0 {
		c.Spacing = 0
	}
	if c.DefaultDuration <= 0 {
		c.DefaultDuration = model.DefaultDurationMinutes * time.Minute
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 8 * time.Hour
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type Engine struct {
	schedules ScheduleSource
	appts     AppointmentSource
	cfg       Config
	tracer    trace.Tracer
}

func NewEngine(schedules ScheduleSource, appts AppointmentSource, cfg Config) *Engine {
	return &Engine{
		schedules: schedules,
		appts:     appts,
		cfg:       cfg.withDefaults(),
		tracer:    otelx.Tracer("calendar-service/availability"),
	}
}

// DaySummary is one cell of a month grid.
type DaySummary struct {
	Date     civil.Date `json:"date"`
	HasSlots bool       `json:"has_slots"`
	Count    int        `json:"count"`
}

// Snapshot loads the schedule and the closures touching [from, to).
func (e *Engine) Snapshot(ctx context.Context, from, to civil.Date) (schedule.Snapshot, error) {
	ws, err := e.schedules.WorkingSchedule(ctx)
	if err != nil {
		return schedule.Snapshot{}, fmt.Errorf("load schedule: %w", err)
	}
	off, err := e.schedules.TimeOffBetween(ctx, from, to)
	if err != nil {
		return schedule.Snapshot{}, fmt.Errorf("load time off: %w", err)
	}
	return schedule.NewSnapshot(ws, off, e.cfg.Timezone), nil
}

func (e *Engine) duration(minutes int) time.Duration {
	if minutes <= 0 {
		return e.cfg.DefaultDuration
	}
	return time.Duration(minutes) * time.Minute
}

func (e *Engine) resolver() Resolver {
	r := Resolver{Spacing: e.cfg.Spacing}
	if e.cfg.HidePastSlots {
		r.NotBefore = e.cfg.Now()
	}
	return r
}

// BookableSlotsForDate lists the offerable start instants of date, ascending.
// A closed or fully booked day yields an empty list, not an error.
func (e *Engine) BookableSlotsForDate(ctx context.Context, date civil.Date, durationMinutes int) ([]time.Time, error) {
	ctx, span := e.tracer.Start(ctx, "availability.slots_for_date",
		trace.WithAttributes(attribute.String("date", date.String()), attribute.Int("duration_minutes", durationMinutes)))
	defer span.End()

	snap, err := e.Snapshot(ctx, date, date)
	if err != nil {
		return nil, err
	}
	return e.slotsFor(ctx, snap, date, e.duration(durationMinutes), e.resolver(), "")
}

// Location is the zone of the current schedule, or the configured fallback.
func (e *Engine) Location(ctx context.Context) (*time.Location, error) {
	ws, err := e.schedules.WorkingSchedule(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	return schedule.NewSnapshot(ws, nil, e.cfg.Timezone).Location, nil
}

// Offers reports whether start is currently offered for a booking of the given
// length. excludeID ignores one existing appointment, used when moving it.
func (e *Engine) Offers(ctx context.Context, start time.Time, durationMinutes int, excludeID string) (bool, error) {
	loc, err := e.Location(ctx)
	if err != nil {
		return false, err
	}
	date := civil.DateOf(start, loc)

	snap, err := e.Snapshot(ctx, date, date)
	if err != nil {
		return false, err
	}
	slots, err := e.slotsFor(ctx, snap, date, e.duration(durationMinutes), e.resolver(), excludeID)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) slotsFor(ctx context.Context, snap schedule.Snapshot, date civil.Date, duration time.Duration, r Resolver, excludeID string) ([]time.Time, error) {
	intervals := snap.Intervals(date)
	if len(intervals) == 0 {
		return []time.Time{}, nil
	}
	dayStart, dayEnd := date.Bounds(snap.Location)
	from, to := FetchWindow(dayStart, dayEnd, e.cfg.Spacing, e.cfg.MaxDuration)
	appts, err := e.appts.ListBlocking(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	if excludeID != "" {
		appts = without(appts, excludeID)
	}
	slots := r.Filter(Candidates(intervals, duration, e.cfg.Step), duration, Busy(appts))
	if slots == nil {
		slots = []time.Time{}
	}
	return slots, nil
}

// CalendarForMonth reports availability for every day of month, in order.
// The schedule, closures and bookings are loaded once for the whole month.
func (e *Engine) CalendarForMonth(ctx context.Context, month civil.Month, durationMinutes int) ([]DaySummary, error) {
	ctx, span := e.tracer.Start(ctx, "availability.calendar_for_month",
		trace.WithAttributes(attribute.String("month", month.String()), attribute.Int("duration_minutes", durationMinutes)))
	defer span.End()

	snap, err := e.Snapshot(ctx, month.First(), month.Last())
	if err != nil {
		return nil, err
	}
	duration := e.duration(durationMinutes)
	r := e.resolver()

	first, _ := month.First().Bounds(snap.Location)
	_, last := month.Last().Bounds(snap.Location)
	from, to := FetchWindow(first, last, e.cfg.Spacing, e.cfg.MaxDuration)
	appts, err := e.appts.ListBlocking(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	busy := Busy(appts)

	days := month.Days()
	out := make([]DaySummary, 0, len(days))
	for _, d := range days {
		summary := DaySummary{Date: d}
		if snap.Closed(d) {
			out = append(out, summary)
			continue
		}
		intervals := snap.Intervals(d)
		if len(intervals) == 0 {
			out = append(out, summary)
			continue
		}
		dayStart, dayEnd := d.Bounds(snap.Location)
		winFrom, winTo := FetchWindow(dayStart, dayEnd, e.cfg.Spacing, e.cfg.MaxDuration)
		summary.Count = len(r.Filter(Candidates(intervals, duration, e.cfg.Step), duration, within(busy, winFrom, winTo)))
		summary.HasSlots = summary.Count > 0
		out = append(out, summary)
	}
	return out, nil
}

func within(busy []Interval, from, to time.Time) []Interval {
	var out []Interval
	for _, b := range busy {
		if b.Start.Before(to) && b.End.After(from) {
			out = append(out, b)
		}
	}
	return out
}

func without(appts []model.Appointment, id string) []model.Appointment {
	out := appts[:0:0]
	for _, a := range appts {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}
