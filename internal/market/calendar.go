// Package market answers whether the bullion market is trading on a day.
package market

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"

	"github.com/TobiSchelling/goldpulse/internal/logging"
)

// DefaultMIC is the London Stock Exchange, whose holidays track the
// London bullion market closely enough for daily snapshots.
const DefaultMIC = "xlon"

// TradingCalendar decides trading days from an exchange calendar, or a
// plain Mon-Fri rule when no calendar is available.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// NewTradingCalendar loads the calendar for an ISO 10383 MIC.
func NewTradingCalendar(mic string) *TradingCalendar {
	mic = strings.ToLower(strings.TrimSpace(mic))
	if mic == "" {
		mic = DefaultMIC
	}

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		logging.For("market").Warnf("no calendar for MIC %q, using Mon-Fri fallback", mic)
		loc, err := time.LoadLocation("Europe/London")
		if err != nil {
			loc = time.UTC
		}
		return &TradingCalendar{Fallback: true, Timezone: loc}
	}
	return &TradingCalendar{Calendar: cal, Timezone: cal.Loc}
}

// IsTradingDay reports whether the market trades on t's date in the
// calendar's timezone.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}
	if tc.Fallback || tc.Calendar == nil {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(t)
}
