// Package tradingday counts exchange sessions for A-share codes using the
// scmhub exchange calendars, falling back to a Monday–Friday week when no
// calendar is available.
package tradingday

import (
	"log/slog"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// Calendar answers whether a date is a trading session on one exchange. The
// exchange calendar only covers [first, last]; other years use weekdays.
type Calendar struct {
	cal         *calendar.Calendar
	loc         *time.Location
	first, last int
}

// micFor maps a Baostock exchange prefix to an ISO 10383 MIC.
func micFor(code string) string {
	switch {
	case strings.HasPrefix(code, "sz."):
		return "xshe"
	default:
		return "xshg"
	}
}

// ForCode returns the calendar of the exchange code is listed on, loaded for
// the years from through to.
func ForCode(code string, from, to int) *Calendar {
	if to < from {
		from, to = to, from
	}
	mic := micFor(code)
	if cal := calendar.GetCalendar(mic, from, to); cal != nil {
		return &Calendar{cal: cal, loc: cal.Loc, first: from, last: to}
	}

	slog.Debug("no exchange calendar, using weekdays", "mic", mic)
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.FixedZone("CST", 8*60*60)
	}
	return &Calendar{loc: loc}
}

// IsTradingDay reports whether the calendar date of d is a session.
func (c *Calendar) IsTradingDay(d time.Time) bool {
	local := time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, c.loc)
	if c.cal == nil || local.Year() < c.first || local.Year() > c.last {
		wd := local.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(local)
}

// Count returns the number of sessions in [from, to], both inclusive.
func (c *Calendar) Count(from, to time.Time) int {
	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			n++
		}
	}
	return n
}

// Counter implements price.SessionCounter over the exchange calendars.
type Counter struct{}

func (Counter) TradingDays(code string, from, to time.Time) int {
	return ForCode(code, from.Year(), to.Year()).Count(from, to)
}
