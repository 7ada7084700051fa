package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DIRECTORY RECORDS
// =============================================================================

// Profile is the dashboard-side view of an identity.
type Profile struct {
	ID        UserID
	Email     string
	FirstName string
	LastName  string
	Role      Role
	CreatedAt time.Time
}

func (p Profile) IsAdmin() bool { return p.Role == RoleAdmin }

// Enterprise is a tenant. Slug selects the module catalog.
type Enterprise struct {
	ID      EnterpriseID
	Name    string
	Slug    string
	LogoRef string
}

// =============================================================================
// FINANCE RECORDS
// =============================================================================

type EmployeeStatus string

const (
	EmployeeActive   EmployeeStatus = "active"
	EmployeeInactive EmployeeStatus = "inactive"
)

// Employee salaries are denominated in DZD.
type Employee struct {
	ID             EmployeeID
	EnterpriseID   EnterpriseID
	FirstName      string
	LastName       string
	Status         EmployeeStatus
	HireDate       time.Time
	ExitDate       *time.Time
	MonthlySalary  decimal.Decimal // liquid (take-home) salary
	DeclaredSalary decimal.Decimal
	Recharge       decimal.Decimal
	MonthlyBonus   decimal.Decimal
}

func (e Employee) IsActive() bool { return e.Status == EmployeeActive }

type Client struct {
	ID           ClientID
	EnterpriseID EnterpriseID
	Name         string
	// PaymentDay is the billing day of month; nil means billed un-prorated.
	PaymentDay *int
}

type Equipment struct {
	ID           EquipmentID
	EnterpriseID EnterpriseID
	Name         string
	AssignedTo   *EmployeeID
}

func (e Equipment) IsAssigned() bool { return e.AssignedTo != nil && *e.AssignedTo != "" }

type ExpenseType string

const (
	ExpenseProfessional ExpenseType = "professional"
	ExpensePersonal     ExpenseType = "personal"
)

// Expense is either enterprise-scoped (professional) or personal (no enterprise).
type Expense struct {
	ID           ExpenseID
	EnterpriseID *EnterpriseID
	Type         ExpenseType
	Label        string
	Amount       Money
	Date         time.Time
}

// EmployeeClientRate assigns an employee to a client at a billing rate.
type EmployeeClientRate struct {
	ID         string
	EmployeeID EmployeeID
	ClientID   ClientID
	Amount     Money
	StartDate  time.Time
	EndDate    *time.Time
	Active     bool
}

// ClientCost is a flat line item billed to a client every month.
type ClientCost struct {
	ID       string
	ClientID ClientID
	Label    string
	Amount   Money
}

// =============================================================================
// SETTINGS
// =============================================================================

// Setting is a generic key/value row. Version increments on every write.
type Setting struct {
	Key       string
	Value     string
	Version   int64
	UpdatedAt time.Time
}

// =============================================================================
// GRANT RECORDS
// =============================================================================

// AppPermissions is the single per-user page-access row.
type AppPermissions struct {
	Dashboard   bool `json:"dashboard"`
	Enterprises bool `json:"entreprises"`
	Personal    bool `json:"personal"`
	Users       bool `json:"users"`
}

// Allows reports the flag matching page. Unknown pages are denied.
func (a AppPermissions) Allows(page Page) bool {
	switch page {
	case PageDashboard:
		return a.Dashboard
	case PageEnterprises:
		return a.Enterprises
	case PagePersonal:
		return a.Personal
	case PageUsers:
		return a.Users
	}
	return false
}

// Toggle flips the flag matching page and reports whether page was known.
func (a *AppPermissions) Toggle(page Page) bool {
	switch page {
	case PageDashboard:
		a.Dashboard = !a.Dashboard
	case PageEnterprises:
		a.Enterprises = !a.Enterprises
	case PagePersonal:
		a.Personal = !a.Personal
	case PageUsers:
		a.Users = !a.Users
	default:
		return false
	}
	return true
}

// CRUD holds the four action flags of one module grant.
type CRUD struct {
	Read   bool `json:"can_read"`
	Create bool `json:"can_create"`
	Update bool `json:"can_update"`
	Delete bool `json:"can_delete"`
}

var (
	FullCRUD = CRUD{Read: true, Create: true, Update: true, Delete: true}
	ReadOnly = CRUD{Read: true}
)

func (c CRUD) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return c.Read
	case ActionCreate:
		return c.Create
	case ActionUpdate:
		return c.Update
	case ActionDelete:
		return c.Delete
	}
	return false
}

func (c *CRUD) Set(action Action, v bool) bool {
	switch action {
	case ActionRead:
		c.Read = v
	case ActionCreate:
		c.Create = v
	case ActionUpdate:
		c.Update = v
	case ActionDelete:
		c.Delete = v
	default:
		return false
	}
	return true
}

func (c CRUD) All() bool { return c.Read && c.Create && c.Update && c.Delete }
func (c CRUD) Any() bool { return c.Read || c.Create || c.Update || c.Delete }

// ModulePermission is one (user, enterprise, module) grant row.
type ModulePermission struct {
	ID           string
	UserID       UserID
	EnterpriseID EnterpriseID
	Module       ModuleID
	CRUD
}

// EnterpriseAccess is one (user, enterprise) membership row.
type EnterpriseAccess struct {
	UserID       UserID
	EnterpriseID EnterpriseID
}
