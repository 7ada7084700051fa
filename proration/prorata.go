package proration

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/enterprise-dashboard/generic"
)

// =============================================================================
// CLIENT PRORATA - Share of a billing period a rate assignment covers
// =============================================================================

// ValidPaymentDay reports whether day can anchor a billing period.
// Days past a month's length clamp to its last day.
func ValidPaymentDay(day int) bool { return day >= 1 && day <= 31 }

// BillingPeriod returns the month-long period ending on the next occurrence
// of paymentDay (end of day), starting exactly one month earlier.
func BillingPeriod(paymentDay int, today time.Time) generic.Period {
	loc := today.Location()
	end := generic.DateIn(today.Year(), today.Month(), paymentDay, loc)
	if today.Day() > end.Day() {
		end = generic.DateIn(today.Year(), today.Month()+1, paymentDay, loc)
	}
	start := generic.DateIn(end.Year(), end.Month()-1, paymentDay, loc)
	return generic.Period{
		Start: generic.StartOfDay(start),
		End:   generic.EndOfDay(end),
	}
}

// Prorata returns the share of the current billing period covered by
// [start, end]; a nil end is open-ended. The result is exactly 1 when the
// range covers the whole period and exactly 0 when it misses it.
func Prorata(start time.Time, paymentDay int, end *time.Time, today time.Time) decimal.Decimal {
	period := BillingPeriod(paymentDay, today)
	loc := today.Location()

	billed := generic.Period{
		Start: generic.StartOfDay(generic.DateOf(start, loc)),
		End:   generic.Unbounded,
	}
	if end != nil {
		billed.End = generic.EndOfDay(generic.DateOf(*end, loc))
	}

	overlap := billed.Intersect(period)
	if overlap.IsEmpty() {
		return decimal.Zero
	}
	if billed.Covers(period) {
		return decimal.NewFromInt(1)
	}

	total := period.Duration()
	if total <= 0 {
		return decimal.Zero
	}
	ratio := decimal.NewFromInt(int64(overlap.Duration())).Div(decimal.NewFromInt(int64(total)))
	return clamp01(ratio)
}

func clamp01(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if one := decimal.NewFromInt(1); v.GreaterThan(one) {
		return one
	}
	return v
}
