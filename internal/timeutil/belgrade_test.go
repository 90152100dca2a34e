package timeutil

import (
	"testing"
	"time"
)

func TestDayKey(t *testing.T) {
	// 23:30 UTC is already the next day in Belgrade.
	utc := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)
	if got := DayKey(utc); got != "2026-03-15" {
		t.Fatalf("DayKey = %q, want 2026-03-15", got)
	}
}

func TestStartOfDayBelgrade(t *testing.T) {
	in := time.Date(2026, 3, 15, 18, 45, 12, 0, Belgrade)
	got := StartOfDayBelgrade(in)
	if got.Hour() != 0 || got.Minute() != 0 || got.Day() != 15 {
		t.Fatalf("start of day = %v", got)
	}
}

func TestParseToBelgrade(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2026-03-15T10:00:00Z", "2026-03-15 11:00"},
		{"2026-03-15 10:00:00", "2026-03-15 10:00"},
		{"2026-03-15", "2026-03-15 00:00"},
	}
	for _, tc := range cases {
		got, err := ParseToBelgrade(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if s := got.Format("2006-01-02 15:04"); s != tc.want {
			t.Fatalf("parse %q = %s, want %s", tc.in, s, tc.want)
		}
	}
}

func TestParseToBelgradeRejectsGarbage(t *testing.T) {
	if _, err := ParseToBelgrade("not a date"); err == nil {
		t.Fatal("expected error")
	}
}
