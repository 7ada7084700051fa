package generic

import (
	"fmt"
	"math"
	"time"
)

// =============================================================================
// DAY NORMALIZATION - Local-midnight and end-of-day granularity
// =============================================================================

// Proration counts calendar days, not timestamps. Every start boundary is
// normalized to 00:00:00.000 and every inclusive end boundary to
// 23:59:59.999 in the value's own location before subtracting.

const Day = 24 * time.Hour

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// DateIn returns local midnight of year/month/day, clamping day to the
// month's last day (Feb 31 -> Feb 28/29). Month overflow rolls the year.
func DateIn(year int, month time.Month, day int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := DaysInMonth(first.Year(), first.Month())
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, loc)
}

// DateOf reads t as a calendar date and returns that date's midnight in loc.
// Stored dates carry no meaningful clock time; converting with t.In(loc)
// could shift them across midnight.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// AddMonths moves t by n months keeping the day, clamped to month length.
func AddMonths(t time.Time, n int) time.Time {
	return DateIn(t.Year(), t.Month()+time.Month(n), t.Day(), t.Location())
}

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysCeil returns the number of days between from and to, rounding up.
// Rounding up absorbs 23h/25h days around DST transitions.
func DaysCeil(from, to time.Time) int {
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}

// =============================================================================
// MONTH - Target month of a financial statement
// =============================================================================

type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(t time.Time) Month { return Month{Year: t.Year(), Month: t.Month()} }

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, NewValidationError("month", "invalid_format")
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

func (m Month) Start(loc *time.Location) time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
}

func (m Month) End(loc *time.Location) time.Time {
	return EndOfDay(DateIn(m.Year, m.Month, 31, loc))
}

func (m Month) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Month
}

func (m Month) Period(loc *time.Location) Period {
	return Period{Start: m.Start(loc), End: m.End(loc)}
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies "today". Proration depends on it, so tests pin it.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in Location (local time when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
