package currency_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/enterprise-dashboard/currency"
	"github.com/warp/enterprise-dashboard/generic"
	"github.com/warp/enterprise-dashboard/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertClose(t *testing.T, want, got decimal.Decimal, format string, args ...any) {
	t.Helper()
	if want.Sub(got).Abs().GreaterThanOrEqual(d("0.000001")) {
		t.Errorf("%s: want %s, got %s", fmt.Sprintf(format, args...), want, got)
	}
}

var sampleRates = []currency.Rates{
	currency.Defaults,
	currency.NewRates(150.25, 134.5, 36.6),
	currency.NewRates(0.5, 2, 1000),
	currency.NewRates(1, 1, 1),
}

// =============================================================================
// CONVERSION
// =============================================================================

func TestConvert_IdentityShortCircuit(t *testing.T) {
	for _, c := range generic.Currencies {
		got, err := currency.Defaults.Convert(d("123.45"), c, c)
		require.NoError(t, err)
		assert.True(t, got.Equal(d("123.45")), "%s -> %s", c, c)
	}
}

func TestConvert_ThroughDZDPivot(t *testing.T) {
	// GIVEN: default rates (EUR=140, USD=133 DZD)
	r := currency.Defaults

	// THEN: 140 DZD is 1 EUR, 1 EUR is 140/133 USD
	got, err := r.Convert(d("140"), generic.DZD, generic.EUR)
	require.NoError(t, err)
	assert.True(t, got.Equal(d("1")))

	got, err = r.Convert(d("1"), generic.EUR, generic.USD)
	require.NoError(t, err)
	assertClose(t, d("140").Div(d("133")), got, "EUR->USD")
}

func TestConvert_RoundTripEveryPair(t *testing.T) {
	// For all rates r > 0, convert(convert(x, A, B), B, A) ~ x.
	amounts := []decimal.Decimal{d("0"), d("1"), d("714.29"), d("100000"), d("-42.5")}
	for _, r := range sampleRates {
		for _, a := range generic.Currencies {
			for _, b := range generic.Currencies {
				for _, x := range amounts {
					there, err := r.Convert(x, a, b)
					require.NoError(t, err)
					back, err := r.Convert(there, b, a)
					require.NoError(t, err)
					assertClose(t, x, back, "%s %s->%s->%s with %s", x, a, b, a, r)
				}
			}
		}
	}
}

func TestConvert_UnknownCurrencyIsAnError(t *testing.T) {
	_, err := currency.Defaults.Convert(d("10"), generic.Currency("GBP"), generic.EUR)
	assert.ErrorIs(t, err, generic.ErrUnknownCurrency)

	_, err = currency.Defaults.Convert(d("10"), generic.EUR, generic.Currency("JPY"))
	assert.ErrorIs(t, err, generic.ErrUnknownCurrency)
}

func TestValidate_RejectsNonPositive(t *testing.T) {
	r := currency.NewRates(0, -1, 36)
	err := r.Validate()

	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must_be_positive", verr.Violations[currency.KeyEURDZD])
	assert.Equal(t, "must_be_positive", verr.Violations[currency.KeyUSDDZD])
	assert.NotContains(t, verr.Violations, currency.KeyAEDDZD)
	assert.True(t, generic.IsClientError(err))

	assert.NoError(t, currency.Defaults.Validate())
}

// =============================================================================
// RELATIVE EDITOR
// =============================================================================

func TestWithRelative_DerivationRules(t *testing.T) {
	r := currency.Defaults

	// target DZD: the base's canonical rate is the input
	got, err := r.WithRelative(generic.EUR, generic.DZD, d("150"))
	require.NoError(t, err)
	assert.True(t, got.EURDZD.Equal(d("150")))
	assert.True(t, got.USDDZD.Equal(r.USDDZD), "other rates untouched")

	// base DZD: canonical = 1 / input
	got, err = r.WithRelative(generic.DZD, generic.USD, d("0.008"))
	require.NoError(t, err)
	assert.True(t, got.USDDZD.Equal(d("125")))

	// otherwise: canonical = rate(base) / input
	got, err = r.WithRelative(generic.EUR, generic.AED, d("4"))
	require.NoError(t, err)
	assert.True(t, got.AEDDZD.Equal(d("35")))
}

func TestWithRelative_Rejections(t *testing.T) {
	r := currency.Defaults

	_, err := r.WithRelative(generic.EUR, generic.EUR, d("1"))
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = r.WithRelative(generic.EUR, generic.USD, d("0"))
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = r.WithRelative(generic.Currency("XXX"), generic.USD, d("1"))
	assert.ErrorIs(t, err, generic.ErrUnknownCurrency)
}

func TestRelative_RoundTripAcrossBases(t *testing.T) {
	// Deriving canonical rates from one base, then re-deriving from another,
	// reproduces the same canonical rates.
	for _, r := range sampleRates {
		for _, first := range generic.Currencies {
			view, err := r.RelativeTo(first)
			require.NoError(t, err)
			derived, err := currency.FromRelative(first, view)
			require.NoError(t, err)
			assert.True(t, r.Round(6).Equal(derived.Round(6)), "base %s: %s vs %s", first, r, derived)

			for _, second := range generic.Currencies {
				view2, err := derived.RelativeTo(second)
				require.NoError(t, err)
				again, err := currency.FromRelative(second, view2)
				require.NoError(t, err)
				assert.True(t, r.Round(6).Equal(again.Round(6)),
					"%s then %s: %s vs %s", first, second, r, again)
			}
		}
	}
}

func TestFromRelative_RequiresEveryTarget(t *testing.T) {
	_, err := currency.FromRelative(generic.EUR, currency.RelativeView{generic.DZD: d("140")})

	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "required", verr.Violations["USD"])
	assert.Equal(t, "required", verr.Violations["AED"])
}

// =============================================================================
// SERVICE
// =============================================================================

func TestService_GetFallsBackToDefaults(t *testing.T) {
	// GIVEN: no settings rows, and one unparsable row
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.UpsertSetting(ctx, generic.Setting{Key: currency.KeyUSDDZD, Value: "abc", Version: 3}))

	snap := currency.NewService(mem, nil).Get(ctx)

	assert.True(t, snap.Rates.Equal(currency.Defaults))
	assert.Equal(t, int64(3), snap.Version)
	assert.ElementsMatch(t, []string{currency.KeyEURDZD, currency.KeyUSDDZD, currency.KeyAEDDZD}, snap.Defaulted)
}

func TestService_GetNeverFails(t *testing.T) {
	mem := store.NewMemory()
	mem.FailOn("GetSettings", errors.New("connection reset"))

	snap := currency.NewService(mem, nil).Get(context.Background())
	assert.True(t, snap.Rates.Equal(currency.Defaults))
}

func TestService_SetPersistsAndBumpsVersion(t *testing.T) {
	mem := store.NewMemory()
	svc := currency.NewService(mem, nil)
	ctx := context.Background()

	saved, err := svc.Set(ctx, currency.NewRates(145, 130, 35), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	got := svc.Get(ctx)
	assert.True(t, got.Rates.Equal(currency.NewRates(145, 130, 35)))
	assert.Equal(t, int64(1), got.Version)
	assert.Empty(t, got.Defaulted)
}

func TestService_SetRejectsInvalidWithoutWriting(t *testing.T) {
	mem := store.NewMemory()
	svc := currency.NewService(mem, nil)
	ctx := context.Background()

	_, err := svc.Set(ctx, currency.NewRates(145, 0, 35), currency.AnyVersion)
	assert.ErrorIs(t, err, generic.ErrValidation)

	rows, err := mem.GetSettings(ctx, []string{currency.KeyEURDZD, currency.KeyUSDDZD, currency.KeyAEDDZD})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestService_ConcurrentEditorsConflict(t *testing.T) {
	// GIVEN: two editors read version 0
	mem := store.NewMemory()
	svc := currency.NewService(mem, nil)
	ctx := context.Background()
	seen := svc.Get(ctx).Version

	// WHEN: both save against the version they read
	_, err := svc.Set(ctx, currency.NewRates(141, 133, 36), seen)
	require.NoError(t, err)
	_, err = svc.Set(ctx, currency.NewRates(999, 133, 36), seen)

	// THEN: the second write is rejected and the first survives
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)
	assert.True(t, generic.IsRetryable(err))
	assert.True(t, svc.Get(ctx).Rates.EURDZD.Equal(d("141")))

	// AnyVersion keeps last-write-wins
	_, err = svc.Set(ctx, currency.NewRates(999, 133, 36), currency.AnyVersion)
	require.NoError(t, err)
	assert.True(t, svc.Get(ctx).Rates.EURDZD.Equal(d("999")))
}

func TestService_FailedWriteRollsBack(t *testing.T) {
	mem := store.NewMemory()
	svc := currency.NewService(mem, nil)
	ctx := context.Background()
	_, err := svc.Set(ctx, currency.NewRates(141, 133, 36), currency.AnyVersion)
	require.NoError(t, err)

	mem.FailOn("UpsertSetting", errors.New("disk full"))
	_, err = svc.Set(ctx, currency.NewRates(200, 200, 200), currency.AnyVersion)

	var perr *generic.PersistenceError
	require.ErrorAs(t, err, &perr)
	snap := svc.Get(ctx)
	assert.True(t, snap.Rates.Equal(currency.NewRates(141, 133, 36)))
	assert.Equal(t, int64(1), snap.Version)
}

func TestService_SetRelative(t *testing.T) {
	mem := store.NewMemory()
	svc := currency.NewService(mem, nil)
	ctx := context.Background()

	view, err := currency.NewRates(150, 135, 40).RelativeTo(generic.USD)
	require.NoError(t, err)
	saved, err := svc.SetRelative(ctx, generic.USD, view, currency.AnyVersion)
	require.NoError(t, err)

	assert.True(t, saved.Rates.Round(6).Equal(currency.NewRates(150, 135, 40)))
}
