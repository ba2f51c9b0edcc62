package market

import (
	"testing"
	"time"
)

func TestLondonWeekend(t *testing.T) {
	tc := NewTradingCalendar("xlon")
	sat := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	if tc.IsTradingDay(sat) {
		t.Error("expected Saturday to be closed")
	}
	wed := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	if !tc.IsTradingDay(wed) {
		t.Error("expected an ordinary Wednesday to be open")
	}
}

func TestLondonChristmas(t *testing.T) {
	tc := NewTradingCalendar("XLON")
	xmas := time.Date(2025, 12, 25, 12, 0, 0, 0, time.UTC)
	if tc.IsTradingDay(xmas) {
		t.Error("expected Christmas Day to be closed")
	}
}

func TestEmptyMICUsesDefault(t *testing.T) {
	tc := NewTradingCalendar("")
	if tc.Fallback || tc.Calendar == nil {
		t.Errorf("expected the %s calendar to load", DefaultMIC)
	}
}

func TestFallbackWeekdays(t *testing.T) {
	tc := &TradingCalendar{Fallback: true, Timezone: time.UTC}
	cases := map[time.Weekday]bool{
		time.Monday:   true,
		time.Friday:   true,
		time.Saturday: false,
		time.Sunday:   false,
	}
	// 2026-03-02 is a Monday.
	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		want, ok := cases[day.Weekday()]
		if !ok {
			continue
		}
		if got := tc.IsTradingDay(day); got != want {
			t.Errorf("%s: expected %v, got %v", day.Weekday(), want, got)
		}
	}
}
