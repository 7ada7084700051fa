/*
Package currency holds the exchange rates used by the financial aggregator.

PURPOSE:
  Three base cross-rates (EUR->DZD, USD->DZD, AED->DZD) define every
  conversion between the four supported currencies. DZD is the pivot:
  converting A to B is amount * rate(A) / rate(B), where rate(DZD) = 1.

KEY CONCEPTS:
  - Rates: The three canonical DZD-pivot rates
  - Snapshot: Rates plus the settings version they were read at
  - Service: Reads/writes rates through the settings store

FALLBACK:
  A missing or unparsable settings row falls back to the default rate for
  that pair (140, 133, 36). Reading rates never fails.

SEE ALSO:
  - relative.go: Editing rates relative to an arbitrary base currency
  - service.go: Versioned persistence
*/
package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/enterprise-dashboard/generic"
)

// Rates are DZD per one unit of the foreign currency.
type Rates struct {
	EURDZD decimal.Decimal `json:"eur_dzd"`
	USDDZD decimal.Decimal `json:"usd_dzd"`
	AEDDZD decimal.Decimal `json:"aed_dzd"`
}

// Defaults are used when a settings row is absent or unreadable.
var Defaults = Rates{
	EURDZD: decimal.NewFromInt(140),
	USDDZD: decimal.NewFromInt(133),
	AEDDZD: decimal.NewFromInt(36),
}

// NewRates builds Rates from float inputs.
func NewRates(eurDZD, usdDZD, aedDZD float64) Rates {
	return Rates{
		EURDZD: decimal.NewFromFloat(eurDZD),
		USDDZD: decimal.NewFromFloat(usdDZD),
		AEDDZD: decimal.NewFromFloat(aedDZD),
	}
}

// Validate requires every rate to be strictly positive.
func (r Rates) Validate() error {
	verr := &generic.ValidationError{}
	if !r.EURDZD.IsPositive() {
		verr.Add(KeyEURDZD, "must_be_positive")
	}
	if !r.USDDZD.IsPositive() {
		verr.Add(KeyUSDDZD, "must_be_positive")
	}
	if !r.AEDDZD.IsPositive() {
		verr.Add(KeyAEDDZD, "must_be_positive")
	}
	return verr.OrNil()
}

// DZDRate returns how many DZD one unit of c is worth.
func (r Rates) DZDRate(c generic.Currency) (decimal.Decimal, error) {
	switch c {
	case generic.DZD:
		return decimal.NewFromInt(1), nil
	case generic.EUR:
		return r.EURDZD, nil
	case generic.USD:
		return r.USDDZD, nil
	case generic.AED:
		return r.AEDDZD, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %q", generic.ErrUnknownCurrency, c)
}

// with returns a copy of r with c's DZD rate replaced. DZD itself is fixed.
func (r Rates) with(c generic.Currency, v decimal.Decimal) Rates {
	switch c {
	case generic.EUR:
		r.EURDZD = v
	case generic.USD:
		r.USDDZD = v
	case generic.AED:
		r.AEDDZD = v
	}
	return r
}

// Convert converts amount between any two supported currencies through DZD.
// Unknown codes are rejected with ErrUnknownCurrency.
func (r Rates) Convert(amount decimal.Decimal, from, to generic.Currency) (decimal.Decimal, error) {
	fromRate, err := r.DZDRate(from)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := r.DZDRate(to)
	if err != nil {
		return decimal.Zero, err
	}
	if from == to {
		return amount, nil
	}
	if toRate.IsZero() {
		return decimal.Zero, generic.NewValidationError(keyFor(to), "must_be_positive")
	}
	return amount.Mul(fromRate).Div(toRate), nil
}

// ConvertMoney converts m into currency to.
func (r Rates) ConvertMoney(m generic.Money, to generic.Currency) (generic.Money, error) {
	v, err := r.Convert(m.Value, m.Currency, to)
	if err != nil {
		return generic.Money{}, err
	}
	return generic.NewMoneyFromDecimal(v, to), nil
}

// Equal compares the three rates by value.
func (r Rates) Equal(o Rates) bool {
	return r.EURDZD.Equal(o.EURDZD) && r.USDDZD.Equal(o.USDDZD) && r.AEDDZD.Equal(o.AEDDZD)
}

func (r Rates) String() string {
	return fmt.Sprintf("EUR=%s USD=%s AED=%s DZD", r.EURDZD, r.USDDZD, r.AEDDZD)
}
