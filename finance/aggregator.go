package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/enterprise-dashboard/currency"
	"github.com/warp/enterprise-dashboard/generic"
	"github.com/warp/enterprise-dashboard/proration"
)

// =============================================================================
// INPUT
// =============================================================================

// Input is everything a statement is computed from. Records outside
// Accessible are ignored even if present.
type Input struct {
	Enterprises []generic.Enterprise
	Accessible  []generic.EnterpriseID

	Employees        []generic.Employee
	Clients          []generic.Client
	Equipment        []generic.Equipment
	Expenses         []generic.Expense
	ClientRates      []generic.EmployeeClientRate
	ClientCosts      []generic.ClientCost
	PersonalExpenses []generic.Expense

	Rates currency.Rates
	Month generic.Month
	// Today anchors proration; see ReferenceDate.
	Today time.Time
}

// ReferenceDate returns the "today" proration runs against: now when month
// is the current month, otherwise the last day of month.
func ReferenceDate(month generic.Month, now time.Time) time.Time {
	if generic.MonthOf(now) == month {
		return now
	}
	return generic.DateIn(month.Year, month.Month, 31, now.Location())
}

// =============================================================================
// AGGREGATION
// =============================================================================

// ComputeStatement aggregates in into a statement. It is pure: the same
// input always yields the same statement.
func ComputeStatement(in Input) Statement {
	st := Statement{Month: in.Month}
	if len(in.Accessible) == 0 {
		st.finalize()
		return st
	}

	accessible := make(map[generic.EnterpriseID]bool, len(in.Accessible))
	for _, id := range in.Accessible {
		accessible[id] = true
	}

	a := aggregation{
		in:    in,
		st:    &st,
		lines: make(map[generic.EnterpriseID]*EnterpriseLine),
		slugs: make(map[generic.EnterpriseID]string),
	}
	for _, e := range in.Enterprises {
		if accessible[e.ID] {
			a.order = append(a.order, e.ID)
			a.lines[e.ID] = &EnterpriseLine{
				EnterpriseID: e.ID,
				Name:         e.Name,
				Revenue:      decimal.Zero,
				SalaryCost:   decimal.Zero,
				ExpenseCost:  decimal.Zero,
			}
			a.slugs[e.ID] = e.Slug
		}
	}

	a.salaries()
	a.expenses()
	a.revenue()
	a.equipment()
	a.personal()

	for _, id := range a.order {
		line := a.lines[id]
		st.Revenue = st.Revenue.Add(line.Revenue)
		st.SalaryCost = st.SalaryCost.Add(line.SalaryCost)
		st.ExpenseCost = st.ExpenseCost.Add(line.ExpenseCost)
		st.Enterprises = append(st.Enterprises, *line)
	}
	st.finalize()
	return st
}

type aggregation struct {
	in    Input
	st    *Statement
	order []generic.EnterpriseID
	slugs map[generic.EnterpriseID]string
	lines map[generic.EnterpriseID]*EnterpriseLine
}

func (a *aggregation) toEUR(m generic.Money) (decimal.Decimal, bool) {
	v, err := a.in.Rates.Convert(m.Value, m.Currency, generic.EUR)
	if err != nil {
		a.st.Skipped++
		return decimal.Zero, false
	}
	return v, true
}

// salaries sums prorated take-home pay of active employees:
// liquid * pct - declared + recharge + bonus + declared.
func (a *aggregation) salaries() {
	for _, emp := range a.in.Employees {
		line, ok := a.lines[emp.EnterpriseID]
		if !ok {
			continue
		}
		a.st.Employees++
		if !emp.IsActive() {
			continue
		}
		a.st.ActiveEmployees++

		pct := proration.WorkPercentage(emp.HireDate, a.slugs[emp.EnterpriseID], a.in.Today)
		cost := emp.MonthlySalary.Mul(pct).
			Sub(emp.DeclaredSalary).
			Add(emp.Recharge).
			Add(emp.MonthlyBonus).
			Add(emp.DeclaredSalary)

		if eur, ok := a.toEUR(generic.NewMoneyFromDecimal(cost, generic.DZD)); ok {
			line.SalaryCost = line.SalaryCost.Add(eur)
		}
	}
}

func (a *aggregation) expenses() {
	for _, exp := range a.in.Expenses {
		if exp.Type != generic.ExpenseProfessional || exp.EnterpriseID == nil || !a.in.Month.Contains(exp.Date) {
			continue
		}
		line, ok := a.lines[*exp.EnterpriseID]
		if !ok {
			continue
		}
		if eur, ok := a.toEUR(exp.Amount); ok {
			line.ExpenseCost = line.ExpenseCost.Add(eur)
		}
	}
}

// revenue bills every active rate assignment, prorated when the client has a
// payment day, plus flat client costs.
func (a *aggregation) revenue() {
	clients := make(map[generic.ClientID]generic.Client)
	for _, c := range a.in.Clients {
		if _, ok := a.lines[c.EnterpriseID]; ok {
			clients[c.ID] = c
			a.st.Clients++
		}
	}

	for _, r := range a.in.ClientRates {
		client, ok := clients[r.ClientID]
		if !ok || !r.Active {
			continue
		}
		eur, ok := a.toEUR(r.Amount)
		if !ok {
			continue
		}
		if client.PaymentDay != nil && proration.ValidPaymentDay(*client.PaymentDay) {
			eur = eur.Mul(proration.Prorata(r.StartDate, *client.PaymentDay, r.EndDate, a.in.Today))
		}
		line := a.lines[client.EnterpriseID]
		line.Revenue = line.Revenue.Add(eur)
	}

	for _, cost := range a.in.ClientCosts {
		client, ok := clients[cost.ClientID]
		if !ok {
			continue
		}
		if eur, ok := a.toEUR(cost.Amount); ok {
			line := a.lines[client.EnterpriseID]
			line.Revenue = line.Revenue.Add(eur)
		}
	}
}

func (a *aggregation) equipment() {
	for _, eq := range a.in.Equipment {
		if _, ok := a.lines[eq.EnterpriseID]; !ok {
			continue
		}
		a.st.Equipment++
		if eq.IsAssigned() {
			a.st.AssignedEquipment++
		}
	}
}

// personal sums personal expenses of the month regardless of enterprise scope.
func (a *aggregation) personal() {
	for _, exp := range a.in.PersonalExpenses {
		if exp.Type != generic.ExpensePersonal || !a.in.Month.Contains(exp.Date) {
			continue
		}
		if eur, ok := a.toEUR(exp.Amount); ok {
			a.st.PersonalExpenses = a.st.PersonalExpenses.Add(eur)
		}
	}
}
