package currency

import (
	"github.com/shopspring/decimal"
	"github.com/warp/enterprise-dashboard/generic"
)

// =============================================================================
// RELATIVE VIEW - Rates shown against a user-chosen base currency
// =============================================================================

// The rate editor lets a user pick any base currency and type "1 base = X
// target" for every other currency. Edits are re-derived into the canonical
// DZD-pivot rates:
//
//   target is DZD:  rate(base)   = X
//   base is DZD:    rate(target) = 1 / X
//   otherwise:      rate(target) = rate(base) / X
//
// RelativeTo is the inverse, so switching base and re-deriving reproduces the
// same canonical rates.

// RelativeView maps every non-base currency to "1 base = value target".
type RelativeView map[generic.Currency]decimal.Decimal

// RelativeTo renders r against base.
func (r Rates) RelativeTo(base generic.Currency) (RelativeView, error) {
	baseRate, err := r.DZDRate(base)
	if err != nil {
		return nil, err
	}
	view := make(RelativeView, len(generic.Currencies)-1)
	for _, c := range generic.Currencies {
		if c == base {
			continue
		}
		rate, _ := r.DZDRate(c)
		if rate.IsZero() {
			return nil, generic.NewValidationError(keyFor(c), "must_be_positive")
		}
		view[c] = baseRate.Div(rate)
	}
	return view, nil
}

// WithRelative applies a single "1 base = value target" edit to r.
func (r Rates) WithRelative(base, target generic.Currency, value decimal.Decimal) (Rates, error) {
	if !base.Valid() || !target.Valid() {
		return r, generic.ErrUnknownCurrency
	}
	if base == target {
		return r, generic.NewValidationError("target", "same_as_base")
	}
	if !value.IsPositive() {
		return r, generic.NewValidationError(string(target), "must_be_positive")
	}

	switch {
	case target == generic.DZD:
		return r.with(base, value), nil
	case base == generic.DZD:
		return r.with(target, decimal.NewFromInt(1).Div(value)), nil
	default:
		baseRate, _ := r.DZDRate(base)
		return r.with(target, baseRate.Div(value)), nil
	}
}

// FromRelative derives canonical rates from a complete view against base.
// The DZD entry is applied first since every other entry depends on it.
func FromRelative(base generic.Currency, view RelativeView) (Rates, error) {
	if !base.Valid() {
		return Rates{}, generic.ErrUnknownCurrency
	}

	verr := &generic.ValidationError{}
	for _, c := range generic.Currencies {
		if c == base {
			continue
		}
		v, ok := view[c]
		if !ok {
			verr.Add(string(c), "required")
		} else if !v.IsPositive() {
			verr.Add(string(c), "must_be_positive")
		}
	}
	if err := verr.OrNil(); err != nil {
		return Rates{}, err
	}

	out := Defaults
	var err error
	if base != generic.DZD {
		if out, err = out.WithRelative(base, generic.DZD, view[generic.DZD]); err != nil {
			return Rates{}, err
		}
	}
	for _, c := range generic.Currencies {
		if c == base || c == generic.DZD {
			continue
		}
		if out, err = out.WithRelative(base, c, view[c]); err != nil {
			return Rates{}, err
		}
	}
	return out, out.Validate()
}

// Round fixes every rate to places decimals; used when comparing derived rates.
func (r Rates) Round(places int32) Rates {
	return Rates{
		EURDZD: r.EURDZD.Round(places),
		USDDZD: r.USDDZD.Round(places),
		AEDDZD: r.AEDDZD.Round(places),
	}
}
