package schedule

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/civil"
)

func date(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func sofia(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Sofia")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestParseClock(t *testing.T) {
	cases := map[string]ClockTime{"00:00": 0, "09:30": 570, "24:00": 1440}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil || got != want {
			t.Fatalf("ParseClock(%q) = %d, %v; want %d", in, got, err, want)
		}
		if got.String() != in {
			t.Fatalf("String() = %q, want %q", got.String(), in)
		}
	}
	for _, bad := range []string{"9:00", "24:30", "12:60", "ab:cd", ""} {
		if _, err := ParseClock(bad); !errors.Is(err, ErrInvalidClock) {
			t.Fatalf("ParseClock(%q) expected ErrInvalidClock, got %v", bad, err)
		}
	}
}

func TestDefaultWithoutSchedule(t *testing.T) {
	loc := sofia(t)
	snap := Snapshot{Location: loc}

	// 2025-11-03 is a Monday.
	for i := 0; i < 7; i++ {
		d := date(t, "2025-11-03").AddDays(i)
		got := snap.Intervals(d)
		weekend := d.Weekday() == time.Saturday || d.Weekday() == time.Sunday
		if weekend {
			if len(got) != 0 {
				t.Fatalf("%s: expected closed weekend, got %v", d, got)
			}
			continue
		}
		if len(got) != 1 {
			t.Fatalf("%s: expected one interval, got %d", d, len(got))
		}
		if got[0].Start.In(loc).Hour() != 9 || got[0].End.In(loc).Hour() != 17 {
			t.Fatalf("%s: expected 09:00-17:00 local, got %s-%s", d, got[0].Start.In(loc), got[0].End.In(loc))
		}
	}
}

func TestIntervalsAnchoredAcrossDST(t *testing.T) {
	loc := sofia(t)
	snap := Snapshot{Location: loc}

	// Friday before and Monday after the 2025-10-26 fall back.
	before := snap.Intervals(date(t, "2025-10-24"))
	after := snap.Intervals(date(t, "2025-10-27"))
	if before[0].Start.Hour() != 6 || after[0].Start.Hour() != 7 {
		t.Fatalf("expected 06:00Z then 07:00Z, got %s and %s", before[0].Start, after[0].Start)
	}
	if before[0].Start.Location() != time.UTC {
		t.Fatalf("expected UTC instants")
	}
}

func TestRuleOverridesDefault(t *testing.T) {
	loc := sofia(t)
	ws := &WorkingSchedule{
		Timezone: "Europe/Sofia",
		Days: []DayRule{
			{Weekday: 1, Intervals: []Hours{{From: MustClock("13:00"), To: MustClock("17:00")}, {From: MustClock("09:00"), To: MustClock("12:00")}}},
			{Weekday: 2, Intervals: nil},
			{Weekday: 6, Intervals: []Hours{{From: MustClock("10:00"), To: MustClock("14:00")}}},
		},
	}
	snap := NewSnapshot(ws, nil, "UTC")
	if snap.Location.String() != loc.String() {
		t.Fatalf("expected schedule zone, got %s", snap.Location)
	}

	mon := snap.Intervals(date(t, "2025-11-03"))
	if len(mon) != 2 || !mon[0].Start.Before(mon[1].Start) {
		t.Fatalf("expected two ordered intervals, got %v", mon)
	}
	if got := snap.Intervals(date(t, "2025-11-04")); len(got) != 0 {
		t.Fatalf("expected Tuesday closed by empty rule, got %v", got)
	}
	if got := snap.Intervals(date(t, "2025-11-05")); len(got) != 1 {
		t.Fatalf("expected Wednesday to fall back to default, got %v", got)
	}
	if got := snap.Intervals(date(t, "2025-11-08")); len(got) != 1 || got[0].Start.In(loc).Hour() != 10 {
		t.Fatalf("expected Saturday 10:00, got %v", got)
	}
}

func TestTimeOffShortCircuits(t *testing.T) {
	off := []TimeOffBlock{{DateFrom: date(t, "2025-11-03"), DateTo: date(t, "2025-11-05")}}
	snap := Snapshot{Location: time.UTC, TimeOff: off}
	for _, s := range []string{"2025-11-03", "2025-11-04", "2025-11-05"} {
		if got := snap.Intervals(date(t, s)); got != nil {
			t.Fatalf("%s: expected closure, got %v", s, got)
		}
	}
	if got := snap.Intervals(date(t, "2025-11-06")); len(got) != 1 {
		t.Fatalf("expected the day after the block to be open, got %v", got)
	}
}

func TestValidate(t *testing.T) {
	bad := []*WorkingSchedule{
		nil,
		{Days: []DayRule{{Weekday: 7}}},
		{Days: []DayRule{{Weekday: 1}, {Weekday: 1}}},
		{Days: []DayRule{{Weekday: 1, Intervals: []Hours{{From: 600, To: 600}}}}},
		{Timezone: "Mars/Olympus"},
	}
	for i, ws := range bad {
		if err := ws.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if err := Default("Europe/Sofia").Validate(); err != nil {
		t.Fatalf("default schedule invalid: %v", err)
	}
	block := TimeOffBlock{DateFrom: date(t, "2025-11-05"), DateTo: date(t, "2025-11-04")}
	if err := block.Validate(); err == nil {
		t.Fatalf("expected reversed block to fail")
	}
}

func TestJSONShape(t *testing.T) {
	raw := `{"timezone":"Europe/Sofia","days":[{"weekday":1,"intervals":[{"from":"09:00","to":"12:00"}]}]}`
	var ws WorkingSchedule
	if err := json.Unmarshal([]byte(raw), &ws); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ws.Days[0].Intervals[0].To != MustClock("12:00") {
		t.Fatalf("unexpected to %s", ws.Days[0].Intervals[0].To)
	}
	out, err := json.Marshal(ws)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != raw {
		t.Fatalf("unexpected JSON %s", out)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	body := `timezone: Europe/Sofia
days:
  - weekday: 1
    intervals:
      - from: "09:00"
        to: "12:00"
      - from: "13:00"
        to: "17:00"
  - weekday: 0
    intervals: []
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	ws, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	rule, ok := ws.Rule(time.Monday)
	if !ok || len(rule.Intervals) != 2 || rule.Intervals[1].From != MustClock("13:00") {
		t.Fatalf("unexpected Monday rule %+v", rule)
	}

	if err := os.WriteFile(path, []byte("days:\n  - weekday: 9\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected invalid weekday to fail")
	}
}
