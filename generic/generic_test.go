package generic

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// DATES
// =============================================================================

func TestDateIn_ClampsDay(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		day   int
		want  string
	}{
		{2025, time.February, 31, "2025-02-28"},
		{2024, time.February, 31, "2024-02-29"},
		{2025, time.April, 31, "2025-04-30"},
		{2025, time.March, 0, "2025-03-01"},
		{2025, time.Month(13), 5, "2026-01-05"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := DateIn(tt.year, tt.month, tt.day, time.UTC)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
			assert.Equal(t, 0, got.Hour())
		})
	}
}

func TestDateOf_KeepsCalendarDate(t *testing.T) {
	// GIVEN: 23:30 UTC, which is already the next day in Algiers (UTC+1)
	algiers := time.FixedZone("CET", 3600)
	late := time.Date(2025, time.March, 9, 23, 30, 0, 0, time.UTC)

	// WHEN: Reading it as a calendar date in Algiers
	got := DateOf(late, algiers)

	// THEN: The stored date wins over the instant
	assert.Equal(t, 9, got.Day())
	assert.Equal(t, algiers, got.Location())
}

func TestAddMonths_Clamps(t *testing.T) {
	jan31 := DateIn(2025, time.January, 31, time.UTC)
	assert.Equal(t, "2025-02-28", AddMonths(jan31, 1).Format("2006-01-02"))
	assert.Equal(t, "2024-12-31", AddMonths(jan31, -1).Format("2006-01-02"))
}

func TestDayBoundaries(t *testing.T) {
	noon := time.Date(2025, time.March, 9, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC), StartOfDay(noon))
	end := EndOfDay(noon)
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 999*time.Millisecond, time.Duration(end.Nanosecond()))
	assert.Equal(t, noon.Day(), end.Day())
	assert.Equal(t, 1, DaysCeil(StartOfDay(noon), end))
}

// =============================================================================
// MONTH
// =============================================================================

func TestMonth(t *testing.T) {
	m, err := ParseMonth("2024-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-02", m.String())

	p := m.Period(time.UTC)
	assert.Equal(t, 1, p.Start.Day())
	assert.Equal(t, 29, p.End.Day())
	assert.Equal(t, 29, p.Days())
	assert.True(t, m.Contains(time.Date(2024, time.February, 29, 23, 0, 0, 0, time.UTC)))
	assert.False(t, m.Contains(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))

	_, err = ParseMonth("February")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPeriod_Intersect(t *testing.T) {
	march := MonthOf(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)).Period(time.UTC)
	billing := Period{
		Start: DateIn(2025, time.February, 10, time.UTC),
		End:   EndOfDay(DateIn(2025, time.March, 10, time.UTC)),
	}

	got := billing.Intersect(march)

	assert.Equal(t, march.Start, got.Start)
	assert.Equal(t, billing.End, got.End)
	assert.False(t, got.IsEmpty())
	assert.True(t, march.Covers(got))
	assert.True(t, Period{Start: march.End, End: march.Start}.IsEmpty())
}

// =============================================================================
// CURRENCY AND MONEY
// =============================================================================

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" eur ")
	require.NoError(t, err)
	assert.Equal(t, EUR, c)

	_, err = ParseCurrency("GBP")
	assert.ErrorIs(t, err, ErrUnknownCurrency)
}

func TestMoney(t *testing.T) {
	m := NewMoney(100.5, DZD).Add(NewMoney(0.25, DZD)).Mul(decimal.NewFromInt(2))

	assert.Equal(t, "201.50 DZD", m.String())
	assert.InDelta(t, 201.5, m.Float(), 1e-9)
	assert.True(t, m.Zero().IsZero())
	assert.True(t, m.Sub(NewMoney(300, DZD)).IsNegative())
	assert.True(t, MustParseDecimal("oops").IsZero())
}

// =============================================================================
// ERRORS
// =============================================================================

func TestValidationError(t *testing.T) {
	verr := &ValidationError{}
	assert.NoError(t, verr.OrNil())

	verr.Add("password", "too_short")
	verr.Add("email", "invalid")
	err := verr.OrNil()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation failed: email: invalid, password: too_short", err.Error())
	assert.True(t, IsClientError(err))
}

func TestPersist(t *testing.T) {
	assert.NoError(t, Persist("save", nil))

	cause := errors.New("disk full")
	err := Persist("save profile", cause)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "save profile", pe.Op)
	assert.ErrorIs(t, err, cause)

	// Already wrapped errors keep their original operation
	again := Persist("outer", fmt.Errorf("tx: %w", err))
	require.ErrorAs(t, again, &pe)
	assert.Equal(t, "save profile", pe.Op)
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("rates: %w", ErrConcurrentModification)))
	assert.True(t, IsRetryable(ErrStaleLoad))
	assert.False(t, IsRetryable(ErrNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("user x: %w", ErrNotFound)))
	assert.True(t, IsClientError(ErrUnknownEnterprise))
	assert.False(t, IsClientError(ErrForbidden))
}
