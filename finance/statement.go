/*
Package finance computes the consolidated financial statement of the dashboard.

PURPOSE:
  Turns raw records (employees, clients, rate assignments, client costs,
  expenses) of the enterprises a user may see into one statement: revenue,
  salary cost, expense cost, operating cost, net and final profit.

KEY CONCEPTS:
  - Statement: Derived, never persisted. Every amount is held in EUR.
  - Input: Everything ComputeStatement needs, already loaded
  - Loader: Concurrent batch read of an Input from the record store
  - Dashboard: Reload entry point that discards stale loads

EUR PIVOT:
  Amounts are summed in EUR and converted to a display currency per metric
  only when rendered. Rendering never feeds back into the sums, so switching
  display currencies back and forth is lossless.

SEE ALSO:
  - proration/: Work percentage and client prorata
  - currency/: Exchange rates
  - export.go: XLSX rendering of a statement
*/
package finance

import (
	"github.com/shopspring/decimal"

	"github.com/warp/enterprise-dashboard/currency"
	"github.com/warp/enterprise-dashboard/generic"
)

// Metric names one amount card of the statement.
type Metric string

const (
	MetricRevenue          Metric = "revenue"
	MetricSalaryCost       Metric = "salary_cost"
	MetricExpenseCost      Metric = "expense_cost"
	MetricOperatingCost    Metric = "operating_cost"
	MetricNetProfit        Metric = "net_profit"
	MetricPersonalExpenses Metric = "personal_expenses"
	MetricFinalProfit      Metric = "final_profit"
)

// Metrics lists every amount metric in display order.
var Metrics = []Metric{
	MetricRevenue,
	MetricSalaryCost,
	MetricExpenseCost,
	MetricOperatingCost,
	MetricNetProfit,
	MetricPersonalExpenses,
	MetricFinalProfit,
}

// Counts are the headcount cards of the statement.
type Counts struct {
	Employees         int `json:"employees"`
	ActiveEmployees   int `json:"active_employees"`
	Clients           int `json:"clients"`
	Equipment         int `json:"equipment"`
	AssignedEquipment int `json:"assigned_equipment"`
}

// EnterpriseLine is one enterprise's share of the statement, in EUR.
type EnterpriseLine struct {
	EnterpriseID generic.EnterpriseID `json:"enterprise_id"`
	Name         string               `json:"name"`
	Revenue      decimal.Decimal      `json:"revenue"`
	SalaryCost   decimal.Decimal      `json:"salary_cost"`
	ExpenseCost  decimal.Decimal      `json:"expense_cost"`
}

func (l EnterpriseLine) NetProfit() decimal.Decimal {
	return l.Revenue.Sub(l.SalaryCost).Sub(l.ExpenseCost)
}

// Statement is the consolidated result. Amounts are in EUR.
type Statement struct {
	Month generic.Month `json:"-"`
	Counts

	Revenue          decimal.Decimal `json:"revenue"`
	SalaryCost       decimal.Decimal `json:"salary_cost"`
	ExpenseCost      decimal.Decimal `json:"expense_cost"`
	OperatingCost    decimal.Decimal `json:"operating_cost"`
	NetProfit        decimal.Decimal `json:"net_profit"`
	PersonalExpenses decimal.Decimal `json:"personal_expenses"`
	FinalProfit      decimal.Decimal `json:"final_profit"`

	Enterprises []EnterpriseLine `json:"enterprises"`

	// Skipped counts records left out because their currency is unknown.
	Skipped int `json:"skipped,omitempty"`
}

// Amount returns the EUR value of m.
func (s Statement) Amount(m Metric) decimal.Decimal {
	switch m {
	case MetricRevenue:
		return s.Revenue
	case MetricSalaryCost:
		return s.SalaryCost
	case MetricExpenseCost:
		return s.ExpenseCost
	case MetricOperatingCost:
		return s.OperatingCost
	case MetricNetProfit:
		return s.NetProfit
	case MetricPersonalExpenses:
		return s.PersonalExpenses
	case MetricFinalProfit:
		return s.FinalProfit
	}
	return decimal.Zero
}

// finalize derives the totals that depend on the sums.
func (s *Statement) finalize() {
	s.OperatingCost = s.SalaryCost.Add(s.ExpenseCost)
	s.NetProfit = s.Revenue.Sub(s.OperatingCost)
	s.FinalProfit = s.NetProfit.Sub(s.PersonalExpenses)
}

// =============================================================================
// DISPLAY - Per-metric currency rendering
// =============================================================================

// Display picks a currency per metric; metrics without an entry use Default.
type Display struct {
	Default generic.Currency
	PerCard map[Metric]generic.Currency
}

func (d Display) CurrencyFor(m Metric) generic.Currency {
	if c, ok := d.PerCard[m]; ok && c != "" {
		return c
	}
	if d.Default == "" {
		return generic.EUR
	}
	return d.Default
}

// Render converts every metric from EUR into its display currency.
func (s Statement) Render(rates currency.Rates, display Display) (map[Metric]generic.Money, error) {
	out := make(map[Metric]generic.Money, len(Metrics))
	for _, m := range Metrics {
		money, err := rates.ConvertMoney(generic.NewMoneyFromDecimal(s.Amount(m), generic.EUR), display.CurrencyFor(m))
		if err != nil {
			return nil, err
		}
		out[m] = money
	}
	return out, nil
}
