/*
Package proration computes the fraction of a period a date range covers.

PURPOSE:
  Two independent algorithms live here:
  - Salary work percentage: how much of the current salary period an
    employee has worked, used to prorate first-month pay.
  - Client prorata: how much of a billing period a rate assignment covers.

  Both are pure functions of their inputs and "today". Callers supply today
  explicitly; nothing here reads the wall clock.

DAY GRANULARITY:
  Every date is read as a calendar date and normalized to local midnight
  (starts) or 23:59:59.999 (inclusive ends) in today's location before any
  subtraction. Skipping the normalization changes day counts by one.

SALARY REGIMES:
  Default:         Periods end on the 25th of each month.
  Transition:      Slugs "deep-closer" and "ompleo", while today is between
                   2025-12-25 and 2026-02-05: one elongated period
                   2025-12-25 -> 2026-02-01, ratio divided by 30.
  Post-transition: The same slugs after 2026-02-05: periods end on the 5th.

SEE ALSO:
  - prorata.go: Client billing prorata
  - finance/aggregator.go: Consumer of both algorithms
*/
package proration

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/enterprise-dashboard/generic"
)

// Regime identifies which salary period definition applies.
type Regime string

const (
	RegimeDefault        Regime = "cutoff_25"
	RegimeTransition     Regime = "transition"
	RegimePostTransition Regime = "cutoff_5"
)

const (
	DefaultCutoffDay        = 25
	PostTransitionCutoffDay = 5
	TransitionDivisor       = 30
)

// TransitionSlugs are the enterprises that moved from the 25th to the 5th.
var TransitionSlugs = map[string]bool{
	"deep-closer": true,
	"ompleo":      true,
}

// SalaryPeriod is the salary window in force on a given day.
type SalaryPeriod struct {
	Regime Regime
	generic.Period
	// Divisor replaces the period's day count in the ratio when non-zero.
	Divisor int
}

// SalaryPeriodFor selects the regime for slug and returns the period
// containing today.
func SalaryPeriodFor(slug string, today time.Time) SalaryPeriod {
	loc := today.Location()
	day := generic.StartOfDay(today)

	if TransitionSlugs[slug] {
		transitionStart := time.Date(2025, time.December, 25, 0, 0, 0, 0, loc)
		transitionEnd := time.Date(2026, time.February, 1, 0, 0, 0, 0, loc)
		cutover := time.Date(2026, time.February, 5, 0, 0, 0, 0, loc)

		if !day.Before(transitionStart) && !day.After(cutover) {
			return SalaryPeriod{
				Regime:  RegimeTransition,
				Period:  generic.Period{Start: transitionStart, End: transitionEnd},
				Divisor: TransitionDivisor,
			}
		}
		if day.After(cutover) {
			return SalaryPeriod{Regime: RegimePostTransition, Period: cutoffPeriod(day, PostTransitionCutoffDay)}
		}
	}
	return SalaryPeriod{Regime: RegimeDefault, Period: cutoffPeriod(day, DefaultCutoffDay)}
}

// cutoffPeriod returns the month-long period ending on the next cutoff day.
// Past the cutoff, the end rolls to next month.
func cutoffPeriod(day time.Time, cutoff int) generic.Period {
	end := generic.DateIn(day.Year(), day.Month(), cutoff, day.Location())
	if day.Day() > cutoff {
		end = generic.DateIn(day.Year(), day.Month()+1, cutoff, day.Location())
	}
	start := generic.DateIn(end.Year(), end.Month()-1, cutoff, day.Location())
	return generic.Period{Start: start, End: end}
}

// WorkPercentage returns the share of the current salary period worked by an
// employee hired on hireDate, in [0, 1].
func WorkPercentage(hireDate time.Time, slug string, today time.Time) decimal.Decimal {
	return SalaryPeriodFor(slug, today).WorkPercentage(hireDate)
}

// WorkPercentage applies the period to a hire date.
func (p SalaryPeriod) WorkPercentage(hireDate time.Time) decimal.Decimal {
	hire := generic.DateOf(hireDate, p.End.Location())
	if !hire.Before(p.End) {
		return decimal.Zero
	}

	totalDays := p.Days()
	workedDays := totalDays
	if hire.After(p.Start) {
		workedDays = generic.DaysCeil(hire, p.End)
	}

	divisor := totalDays
	if p.Divisor > 0 {
		divisor = p.Divisor
	}
	if divisor <= 0 {
		return decimal.Zero
	}

	ratio := decimal.NewFromInt(int64(workedDays)).Div(decimal.NewFromInt(int64(divisor)))
	one := decimal.NewFromInt(1)
	if ratio.GreaterThan(one) {
		return one
	}
	return ratio
}
