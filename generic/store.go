/*
store.go - Record store interfaces

PURPOSE:
  Defines the interface between the dashboard core and the generic record
  store. The core only ever needs equality / set-membership reads over named
  collections, upsert-by-key, and delete-by-filter + bulk insert.

KEY INTERFACES:
  DirectoryStore: Profiles and enterprises
  FinanceStore:   Employees, clients, equipment, expenses, rates, costs
  SettingsStore:  Versioned key/value settings (exchange rates)
  GrantStore:     App permissions, enterprise access, module permissions
  Store:          All of the above plus WithTx

ABSENT ROWS:
  Get* methods return (nil, nil) when the row does not exist. Callers decide
  whether absence means "default" (settings) or "denied" (grants).

REPLACE-ALL SAVES:
  Grants are never patched. A save deletes every row of the user in a
  collection and inserts the recomputed set. Run the pair inside WithTx so a
  reader never observes the empty window.

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory, snapshot + rollback transactions
  - store/sqlite/sqlite.go: SQLite via database/sql

SEE ALSO:
  - access/save.go: The replace-all permission save
  - currency/service.go: Versioned settings writes
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// DIRECTORY
// =============================================================================

type DirectoryStore interface {
	ListEnterprises(ctx context.Context) ([]Enterprise, error)
	SaveEnterprise(ctx context.Context, e Enterprise) error

	GetProfile(ctx context.Context, id UserID) (*Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
	SaveProfile(ctx context.Context, p Profile) error
}

// =============================================================================
// FINANCE
// =============================================================================

// ExpenseFilter selects expenses. Zero-valued fields do not filter.
type ExpenseFilter struct {
	Type          ExpenseType
	EnterpriseIDs []EnterpriseID
	From          time.Time
	To            time.Time
}

// FinanceStore reads are scoped by enterprise set membership.
// A nil or empty enterpriseIDs slice matches nothing.
type FinanceStore interface {
	ListEmployees(ctx context.Context, enterpriseIDs []EnterpriseID) ([]Employee, error)
	ListClients(ctx context.Context, enterpriseIDs []EnterpriseID) ([]Client, error)
	ListEquipment(ctx context.Context, enterpriseIDs []EnterpriseID) ([]Equipment, error)
	ListExpenses(ctx context.Context, filter ExpenseFilter) ([]Expense, error)
	ListEmployeeClientRates(ctx context.Context, enterpriseIDs []EnterpriseID) ([]EmployeeClientRate, error)
	ListClientCosts(ctx context.Context, enterpriseIDs []EnterpriseID) ([]ClientCost, error)

	SaveEmployee(ctx context.Context, e Employee) error
	SaveClient(ctx context.Context, c Client) error
	SaveEquipment(ctx context.Context, e Equipment) error
	SaveExpense(ctx context.Context, e Expense) error
	SaveEmployeeClientRate(ctx context.Context, r EmployeeClientRate) error
	SaveClientCost(ctx context.Context, c ClientCost) error
}

// =============================================================================
// SETTINGS
// =============================================================================

type SettingsStore interface {
	// GetSettings returns the rows that exist among keys.
	GetSettings(ctx context.Context, keys []string) ([]Setting, error)

	// UpsertSetting writes s keyed by s.Key, storing s.Version as given.
	UpsertSetting(ctx context.Context, s Setting) error
}

// =============================================================================
// GRANTS
// =============================================================================

type GrantStore interface {
	GetAppPermissions(ctx context.Context, userID UserID) (*AppPermissions, error)
	UpsertAppPermissions(ctx context.Context, userID UserID, perms AppPermissions) error

	ListEnterpriseAccess(ctx context.Context, userID UserID) ([]EnterpriseID, error)
	DeleteEnterpriseAccess(ctx context.Context, userID UserID) error
	InsertEnterpriseAccess(ctx context.Context, rows []EnterpriseAccess) error

	ListModulePermissions(ctx context.Context, userID UserID) ([]ModulePermission, error)
	DeleteModulePermissions(ctx context.Context, userID UserID) error
	InsertModulePermissions(ctx context.Context, rows []ModulePermission) error
}

// =============================================================================
// STORE - Everything, plus transactions
// =============================================================================

type Store interface {
	DirectoryStore
	FinanceStore
	SettingsStore
	GrantStore

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
