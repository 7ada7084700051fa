package generic

import "time"

// =============================================================================
// PERIOD - Billing or salary window
// =============================================================================

// Period is a closed time window [Start, End].
//
// Examples:
//   - Salary period: Feb 25 00:00 - Mar 25 00:00
//   - Billing period: Feb 10 00:00 - Mar 10 23:59:59.999
//   - Statement month: Mar 1 00:00 - Mar 31 23:59:59.999
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t is within [Start, End].
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

func (p Period) Duration() time.Duration { return p.End.Sub(p.Start) }

// IsEmpty reports an inverted window.
func (p Period) IsEmpty() bool { return p.End.Before(p.Start) }

// Intersect clamps p to other. The result may be empty.
func (p Period) Intersect(other Period) Period {
	out := p
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out
}

// Covers reports whether p spans all of other.
func (p Period) Covers(other Period) bool {
	return !p.Start.After(other.Start) && !p.End.Before(other.End)
}

// Days returns the day count of the window, rounded up.
func (p Period) Days() int { return DaysCeil(p.Start, p.End) }

// Unbounded is used as the end of an open-ended range.
var Unbounded = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
