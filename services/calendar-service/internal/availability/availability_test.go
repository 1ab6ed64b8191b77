package availability

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/civil"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/model"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/schedule"
)

type fakeSchedules struct {
	ws  *schedule.WorkingSchedule
	off []schedule.TimeOffBlock
}

func (f *fakeSchedules) WorkingSchedule(context.Context) (*schedule.WorkingSchedule, error) {
	return f.ws, nil
}

func (f *fakeSchedules) TimeOffBetween(_ context.Context, from, to civil.Date) ([]schedule.TimeOffBlock, error) {
	var out []schedule.TimeOffBlock
	for _, b := range f.off {
		if !b.DateTo.Before(from) && !b.DateFrom.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeAppointments struct {
	appts []model.Appointment
	calls int
	from  time.Time
}

func (f *fakeAppointments) ListBlocking(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	f.calls++
	f.from = from
	var out []model.Appointment
	for _, a := range f.appts {
		if a.Blocking() && a.StartsAt.Before(to) && a.EndsAt().After(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

func sofia(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Sofia")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func mustDate(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	return d
}

func splitMonday() *schedule.WorkingSchedule {
	return &schedule.WorkingSchedule{
		Timezone: "Europe/Sofia",
		Days: []schedule.DayRule{{
			Weekday: 1,
			Intervals: []schedule.Hours{
				{From: schedule.MustClock("09:00"), To: schedule.MustClock("12:00")},
				{From: schedule.MustClock("13:00"), To: schedule.MustClock("17:00")},
			},
		}},
	}
}

func newEngine(ws *schedule.WorkingSchedule, off []schedule.TimeOffBlock, appts []model.Appointment) (*Engine, *fakeAppointments) {
	fa := &fakeAppointments{appts: appts}
	e := NewEngine(&fakeSchedules{ws: ws, off: off}, fa, Config{
		Timezone: "Europe/Sofia",
		Step:     30 * time.Minute,
		Spacing:  120 * time.Minute,
	})
	return e, fa
}

func localTimes(slots []time.Time, loc *time.Location) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.In(loc).Format("15:04"))
	}
	return out
}

func TestWorkedExample(t *testing.T) {
	loc := sofia(t)
	monday := mustDate(t, "2025-11-03")
	existing := model.Appointment{
		ID:              "a1",
		StartsAt:        monday.At(loc, 10*60).UTC(),
		DurationMinutes: 60,
		Status:          model.StatusConfirmed,
	}
	e, _ := newEngine(splitMonday(), nil, []model.Appointment{existing})

	slots, err := e.BookableSlotsForDate(context.Background(), monday, 60)
	if err != nil {
		t.Fatalf("BookableSlotsForDate: %v", err)
	}
	got := localTimes(slots, loc)
	want := []string{"13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	r := Resolver{Spacing: 120 * time.Minute}
	busy := Busy([]model.Appointment{existing})
	hour := time.Hour
	if r.Accept(monday.At(loc, 9*60+30), hour, busy) {
		t.Fatalf("09:30 must be rejected by overlap")
	}
	if !overlapsAny(monday.At(loc, 9*60+30), monday.At(loc, 10*60+30), busy) {
		t.Fatalf("09:30 rejection must come from overlap")
	}
	if r.Accept(monday.At(loc, 11*60), hour, busy) || overlapsAny(monday.At(loc, 11*60), monday.At(loc, 12*60), busy) {
		t.Fatalf("11:00 must be rejected by spacing only")
	}
	if !r.Accept(monday.At(loc, 13*60), hour, busy) {
		t.Fatalf("13:00 must be accepted")
	}
}

func TestSpacingBoundaryIsAllowed(t *testing.T) {
	start := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)
	busy := []Interval{{Start: start, End: start.Add(time.Hour)}}
	r := Resolver{Spacing: 2 * time.Hour}
	if !r.Accept(start.Add(2*time.Hour), time.Hour, busy) {
		t.Fatalf("exactly the spacing apart should be accepted")
	}
	if r.Accept(start.Add(-119*time.Minute), time.Hour, busy) {
		t.Fatalf("119 minutes before should be rejected")
	}
}

func TestCandidatesNeverBridgeBreaks(t *testing.T) {
	loc := sofia(t)
	monday := mustDate(t, "2025-11-03")
	snap := schedule.NewSnapshot(splitMonday(), nil, "UTC")
	got := localTimes(slices.Collect(Candidates(snap.Intervals(monday), 2*time.Hour, 30*time.Minute)), loc)
	want := []string{"09:00", "09:30", "10:00", "13:00", "13:30", "14:00", "14:30", "15:00"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if n := len(slices.Collect(Candidates(snap.Intervals(monday), 5*time.Hour, 30*time.Minute))); n != 0 {
		t.Fatalf("expected no candidate longer than every interval, got %d", n)
	}
}

func TestCandidatesEarlyStop(t *testing.T) {
	day := time.Date(2025, 11, 3, 7, 0, 0, 0, time.UTC)
	seq := Candidates([]schedule.Interval{{Start: day, End: day.Add(8 * time.Hour)}}, time.Hour, 30*time.Minute)
	n := 0
	for range seq {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Fatalf("expected early stop after 3, got %d", n)
	}
	if total := len(slices.Collect(seq)); total != 15 {
		t.Fatalf("expected restartable sequence of 15, got %d", total)
	}
}

func TestFilterDeduplicatesOverlappingIntervals(t *testing.T) {
	day := time.Date(2025, 11, 3, 7, 0, 0, 0, time.UTC)
	intervals := []schedule.Interval{
		{Start: day.Add(time.Hour), End: day.Add(3 * time.Hour)},
		{Start: day, End: day.Add(2 * time.Hour)},
	}
	got := Resolver{}.Filter(Candidates(intervals, time.Hour, 30*time.Minute), time.Hour, nil)
	if len(got) != 5 {
		t.Fatalf("expected 5 unique slots, got %v", got)
	}
	if !slices.IsSortedFunc(got, func(a, b time.Time) int { return a.Compare(b) }) {
		t.Fatalf("expected ascending slots, got %v", got)
	}
}

func TestDefaultScheduleWeekdays(t *testing.T) {
	e, _ := newEngine(nil, nil, nil)
	ctx := context.Background()

	slots, err := e.BookableSlotsForDate(ctx, mustDate(t, "2025-11-05"), 0)
	if err != nil {
		t.Fatalf("weekday: %v", err)
	}
	// 09:00 through 15:00 for the 120 minute default.
	if len(slots) != 13 {
		t.Fatalf("expected 13 default slots, got %d", len(slots))
	}

	slots, err = e.BookableSlotsForDate(ctx, mustDate(t, "2025-11-08"), 60)
	if err != nil {
		t.Fatalf("weekend: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty non-nil weekend result, got %v", slots)
	}
}

func TestTimeOffClosesDayRegardlessOfBookings(t *testing.T) {
	loc := sofia(t)
	day := mustDate(t, "2025-11-03")
	off := []schedule.TimeOffBlock{{DateFrom: day, DateTo: day}}
	appts := []model.Appointment{{ID: "x", StartsAt: day.At(loc, 9*60), Status: model.StatusConfirmed}}
	e, fa := newEngine(splitMonday(), off, appts)

	slots, err := e.BookableSlotsForDate(context.Background(), day, 60)
	if err != nil {
		t.Fatalf("BookableSlotsForDate: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected closed day, got %v", slots)
	}
	if fa.calls != 0 {
		t.Fatalf("closed day should not load appointments")
	}
}

func TestIdempotentAndNonOverlapping(t *testing.T) {
	loc := sofia(t)
	day := mustDate(t, "2025-11-04")
	appts := []model.Appointment{
		{ID: "a", StartsAt: day.At(loc, 9*60+15), DurationMinutes: 45, Status: model.StatusPending},
		{ID: "b", StartsAt: day.At(loc, 14*60), DurationMinutes: 0, Status: model.StatusDeclined},
		{ID: "c", StartsAt: day.At(loc, 12*60), DurationMinutes: 60, Status: model.StatusCancelled},
	}
	e, _ := newEngine(nil, nil, appts)
	ctx := context.Background()

	first, err := e.BookableSlotsForDate(ctx, day, 30)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := e.BookableSlotsForDate(ctx, day, 30)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !slices.EqualFunc(first, second, func(a, b time.Time) bool { return a.Equal(b) }) {
		t.Fatalf("expected identical results, got %v and %v", first, second)
	}

	busy := Busy(appts)
	if len(busy) != 2 {
		t.Fatalf("cancelled appointment must not block, got %d busy", len(busy))
	}
	for _, s := range first {
		if overlapsAny(s, s.Add(30*time.Minute), busy) {
			t.Fatalf("slot %s overlaps an appointment", s)
		}
	}
	// The cancelled noon booking leaves 12:00 open.
	if !slices.ContainsFunc(first, func(s time.Time) bool { return s.Equal(day.At(loc, 12*60)) }) {
		t.Fatalf("expected 12:00 to be offered, got %v", localTimes(first, loc))
	}
}

func TestPreviousDayBookingIsConsidered(t *testing.T) {
	loc := sofia(t)
	sat := mustDate(t, "2025-11-08")
	ws := &schedule.WorkingSchedule{Days: []schedule.DayRule{{
		Weekday:   6,
		Intervals: []schedule.Hours{{From: schedule.MustClock("00:00"), To: schedule.MustClock("06:00")}},
	}}}
	late := model.Appointment{ID: "late", StartsAt: sat.AddDays(-1).At(loc, 23*60), DurationMinutes: 180, Status: model.StatusConfirmed}
	e, fa := newEngine(ws, nil, []model.Appointment{late})

	slots, err := e.BookableSlotsForDate(context.Background(), sat, 60)
	if err != nil {
		t.Fatalf("BookableSlotsForDate: %v", err)
	}
	if len(slots) == 0 || slots[0].In(loc).Format("15:04") != "02:00" {
		t.Fatalf("expected first slot 02:00, got %v", localTimes(slots, loc))
	}
	if midnight := sat.Midnight(loc); midnight.Sub(fa.from) < 4*time.Hour {
		t.Fatalf("fetch window starts only %s before midnight", midnight.Sub(fa.from))
	}
}

func TestHidePastSlots(t *testing.T) {
	loc := sofia(t)
	day := mustDate(t, "2025-11-05")
	now := day.At(loc, 12*60+10)
	e := NewEngine(&fakeSchedules{}, &fakeAppointments{}, Config{
		Timezone:      "Europe/Sofia",
		HidePastSlots: true,
		Now:           func() time.Time { return now },
	})
	slots, err := e.BookableSlotsForDate(context.Background(), day, 60)
	if err != nil {
		t.Fatalf("BookableSlotsForDate: %v", err)
	}
	if got := localTimes(slots, loc); got[0] != "12:30" {
		t.Fatalf("expected first slot 12:30, got %v", got)
	}
	again, err := e.BookableSlotsForDate(context.Background(), day, 60)
	if err != nil || !slices.Equal(localTimes(again, loc), localTimes(slots, loc)) {
		t.Fatalf("same Now must give the same slots: %v %v", again, err)
	}

	// Off: the clock is not consulted.
	open := NewEngine(&fakeSchedules{}, &fakeAppointments{}, Config{
		Timezone: "Europe/Sofia",
		Now:      func() time.Time { t.Fatal("Now called with HidePastSlots off"); return now },
	})
	all, err := open.BookableSlotsForDate(context.Background(), day, 60)
	if err != nil {
		t.Fatalf("BookableSlotsForDate: %v", err)
	}
	if got := localTimes(all, loc); got[0] != "09:00" {
		t.Fatalf("expected first slot 09:00, got %v", got)
	}
}

func TestCalendarForMonth(t *testing.T) {
	loc := sofia(t)
	month, err := civil.ParseMonth("2025-11")
	if err != nil {
		t.Fatalf("ParseMonth: %v", err)
	}
	off := []schedule.TimeOffBlock{{DateFrom: mustDate(t, "2025-11-10"), DateTo: mustDate(t, "2025-11-11")}}
	busyDay := mustDate(t, "2025-11-12")
	appts := []model.Appointment{{ID: "a", StartsAt: busyDay.At(loc, 9*60), DurationMinutes: 480, Status: model.StatusConfirmed}}
	e, fa := newEngine(nil, off, appts)

	days, err := e.CalendarForMonth(context.Background(), month, 60)
	if err != nil {
		t.Fatalf("CalendarForMonth: %v", err)
	}
	if len(days) != 30 {
		t.Fatalf("expected 30 entries, got %d", len(days))
	}
	if fa.calls != 1 {
		t.Fatalf("expected a single appointment load, got %d", fa.calls)
	}
	open := 0
	for i, d := range days {
		if d.Date != month.First().AddDays(i) {
			t.Fatalf("entry %d has date %s", i, d.Date)
		}
		if d.HasSlots != (d.Count > 0) {
			t.Fatalf("%s: has_slots %v with count %d", d.Date, d.HasSlots, d.Count)
		}
		if d.HasSlots {
			open++
		}
	}
	// 20 weekdays minus two closed days minus one fully booked day.
	if open != 17 {
		t.Fatalf("expected 17 open days, got %d", open)
	}
	if days[9].Count != 0 || days[11].Count != 0 {
		t.Fatalf("expected closed and booked days to be empty")
	}
	if days[2].Count != 15 {
		t.Fatalf("expected 15 one-hour slots on a default Monday, got %d", days[2].Count)
	}

	again, err := e.CalendarForMonth(context.Background(), month, 60)
	if err != nil || !slices.Equal(days, again) {
		t.Fatalf("expected repeatable results")
	}
}

func TestOffersExcludesMovedAppointment(t *testing.T) {
	loc := sofia(t)
	day := mustDate(t, "2025-11-05")
	own := model.Appointment{ID: "own", StartsAt: day.At(loc, 10*60), DurationMinutes: 60, Status: model.StatusConfirmed}
	e, _ := newEngine(nil, nil, []model.Appointment{own})
	ctx := context.Background()

	target := day.At(loc, 10*60+30)
	ok, err := e.Offers(ctx, target, 60, "")
	if err != nil || ok {
		t.Fatalf("expected 10:30 to be blocked, got %v %v", ok, err)
	}
	ok, err = e.Offers(ctx, target, 60, "own")
	if err != nil || !ok {
		t.Fatalf("expected 10:30 to be offered when moving own, got %v %v", ok, err)
	}
	ok, err = e.Offers(ctx, day.At(loc, 10*60+10), 60, "own")
	if err != nil || ok {
		t.Fatalf("off-grid start must not be offered")
	}
}

func TestFetchWindow(t *testing.T) {
	start := time.Date(2025, 11, 2, 22, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	from, to := FetchWindow(start, end, 2*time.Hour, 8*time.Hour)
	if start.Sub(from) != 8*time.Hour || to.Sub(end) != 2*time.Hour {
		t.Fatalf("unexpected window %s..%s", from, to)
	}
	from, _ = FetchWindow(start, end, 0, time.Hour)
	if start.Sub(from) != 4*time.Hour {
		t.Fatalf("expected at least 4h lead, got %s", start.Sub(from))
	}
}
