/*
Package generic provides the core types shared by every dashboard component.

PURPOSE:
  This package contains the domain-agnostic vocabulary of the dashboard:
  identifiers, money, dates and periods, the records read from the record
  store, and the store contract itself. Domain packages (currency, proration,
  finance, access) build on these types and never talk to a database directly.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: An amount with a currency (e.g., 100000 DZD, 714.29 EUR)
  - Currency: One of the four supported codes (EUR, USD, AED, DZD)
  - Identifiers: Type-safe ids for users, enterprises, employees, clients

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for every monetary amount
  2. Type Safety: Strong typing for IDs prevents mixing user/enterprise ids
  3. Fail Closed: Unknown currencies are rejected at the boundary

USAGE:
  salary := generic.NewMoney(100000, generic.DZD)
  cur, err := generic.ParseCurrency("eur")

SEE ALSO:
  - records.go: Records loaded from the record store
  - store.go: Record store interfaces
  - currency/rates.go: Conversion between currencies
*/
package generic

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY
// =============================================================================

type Currency string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	AED Currency = "AED"
	DZD Currency = "DZD"
)

// Currencies lists the supported currencies in display order.
var Currencies = []Currency{EUR, USD, AED, DZD}

// Valid reports whether c is one of the supported currencies.
func (c Currency) Valid() bool {
	switch c {
	case EUR, USD, AED, DZD:
		return true
	}
	return false
}

// ParseCurrency parses a currency code case-insensitively.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
	}
	return c, nil
}

// =============================================================================
// MONEY - Amount with currency
// =============================================================================

type Money struct {
	Value    decimal.Decimal
	Currency Currency
}

func NewMoney(value float64, currency Currency) Money {
	return Money{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewMoneyFromDecimal(value decimal.Decimal, currency Currency) Money {
	return Money{Value: value, Currency: currency}
}

// MustParseDecimal parses s, returning zero on malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (m Money) Zero() Money                 { return Money{Value: decimal.Zero, Currency: m.Currency} }
func (m Money) Add(o Money) Money           { return Money{Value: m.Value.Add(o.Value), Currency: m.Currency} }
func (m Money) Sub(o Money) Money           { return Money{Value: m.Value.Sub(o.Value), Currency: m.Currency} }
func (m Money) Mul(s decimal.Decimal) Money { return Money{Value: m.Value.Mul(s), Currency: m.Currency} }
func (m Money) IsZero() bool                { return m.Value.IsZero() }
func (m Money) IsNegative() bool            { return m.Value.IsNegative() }

func (m Money) String() string {
	return m.Value.StringFixed(2) + " " + string(m.Currency)
}

// Float returns the amount as a float64, for rendering only.
func (m Money) Float() float64 {
	f, _ := m.Value.Float64()
	return f
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type EnterpriseID string
type EmployeeID string
type ClientID string
type EquipmentID string
type ExpenseID string

// ModuleID names a permission module (dashboard, employees, clients, ...).
// The catalog of modules offered per enterprise lives in the access package.
type ModuleID string

const (
	ModuleDashboard            ModuleID = "dashboard"
	ModuleEmployees            ModuleID = "employees"
	ModuleClients              ModuleID = "clients"
	ModuleEquipment            ModuleID = "equipment"
	ModuleSalaries             ModuleID = "salaries"
	ModuleExpensesProfessional ModuleID = "expenses_professional"
	ModuleExpensesPersonal     ModuleID = "expenses_personal"
	ModuleOrganization         ModuleID = "organization"
)

// AllModules is the fixed module vocabulary, in catalog order.
var AllModules = []ModuleID{
	ModuleDashboard,
	ModuleEmployees,
	ModuleClients,
	ModuleEquipment,
	ModuleSalaries,
	ModuleExpensesProfessional,
	ModuleExpensesPersonal,
	ModuleOrganization,
}

// Action is one of the four CRUD actions a module grant covers.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var Actions = []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

// Page is an application page guarded by an AppPermissions flag.
type Page string

const (
	PageDashboard   Page = "dashboard"
	PageEnterprises Page = "entreprises"
	PagePersonal    Page = "personal"
	PageUsers       Page = "users"
)

var Pages = []Page{PageDashboard, PageEnterprises, PagePersonal, PageUsers}

// =============================================================================
// ROLES
// =============================================================================

type Role string

const (
	RoleAdmin               Role = "admin"
	RoleDirecteurGeneral    Role = "directeur_general"
	RoleManagerGeneral      Role = "manager_general"
	RoleManager             Role = "manager"
	RoleAssistanteDirection Role = "assistante_direction"
	RoleAssistante          Role = "assistante"
	RoleEmployee            Role = "employee"
)

var Roles = []Role{
	RoleAdmin,
	RoleDirecteurGeneral,
	RoleManagerGeneral,
	RoleManager,
	RoleAssistanteDirection,
	RoleAssistante,
	RoleEmployee,
}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}
