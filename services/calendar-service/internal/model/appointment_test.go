package model

import (
	"testing"
	"time"
)

func TestEffectiveDuration(t *testing.T) {
	if EffectiveDuration(0) != 120 || EffectiveDuration(-5) != 120 || EffectiveDuration(45) != 45 {
		t.Fatalf("unexpected effective durations")
	}
	a := Appointment{StartsAt: time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)}
	if !a.EndsAt().Equal(time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected default 2h end, got %s", a.EndsAt())
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusDeclined, true},
		{StatusConfirmed, StatusDeclined, false},
		{StatusConfirmed, StatusCancelled, true},
		{StatusCancelled, StatusCancelled, false},
		{StatusDeclined, StatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
	if _, ok := ParseStatus("confirmed"); ok {
		t.Fatalf("status parsing is case sensitive")
	}
}
