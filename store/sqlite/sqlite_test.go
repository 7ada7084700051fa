package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/enterprise-dashboard/access"
	"github.com/warp/enterprise-dashboard/currency"
	"github.com/warp/enterprise-dashboard/generic"
	"github.com/warp/enterprise-dashboard/identity"
	"github.com/warp/enterprise-dashboard/store/sqlite"
)

var algiers = func() *time.Location {
	loc, err := time.LoadLocation("Africa/Algiers")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}()

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:", sqlite.WithLocation(algiers))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newFileStore opens a store on a temp file plus a raw handle on the same
// database for tampering with rows or schema.
func newFileStore(t *testing.T) (*sqlite.Store, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboard.db")
	s, err := sqlite.New(path, sqlite.WithLocation(algiers))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return s, raw
}

func localDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, algiers)
}

func seedEnterprises(t *testing.T, s *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	for _, e := range []generic.Enterprise{
		{ID: "ent-a", Name: "Alpha", Slug: "deep-closer"},
		{ID: "ent-b", Name: "Beta", Slug: "dubai", LogoRef: "logos/beta.png"},
	} {
		require.NoError(t, s.SaveEnterprise(ctx, e))
	}
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestDirectory_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEnterprises(t, s)

	ents, err := s.ListEnterprises(ctx)
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal(t, "Alpha", ents[0].Name)
	assert.Equal(t, "logos/beta.png", ents[1].LogoRef)

	err = s.SaveEnterprise(ctx, generic.Enterprise{ID: "ent-c", Name: "Copy", Slug: "dubai"})
	assert.True(t, errors.Is(err, generic.ErrValidation), "duplicate slug")

	p, err := s.GetProfile(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, p)

	created := time.Date(2026, time.January, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveProfile(ctx, generic.Profile{ID: "u-1", Email: "a@b.dz", Role: generic.RoleManager, CreatedAt: created}))
	require.NoError(t, s.SaveProfile(ctx, generic.Profile{ID: "u-1", Email: "a@b.dz", FirstName: "Amel", Role: generic.RoleAdmin}))

	p, err = s.GetProfile(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, generic.RoleAdmin, p.Role)
	assert.Equal(t, "Amel", p.FirstName)
	assert.True(t, created.Equal(p.CreatedAt), "created_at survives updates")
}

// =============================================================================
// FINANCE
// =============================================================================

func TestFinance_ScopedReads(t *testing.T) {
	// GIVEN: records in two enterprises
	s := newTestStore(t)
	ctx := context.Background()
	seedEnterprises(t, s)

	exit := localDate(2026, time.February, 28)
	day := 31
	assignee := generic.EmployeeID("emp-1")
	require.NoError(t, s.SaveEmployee(ctx, generic.Employee{
		ID: "emp-1", EnterpriseID: "ent-a", Status: generic.EmployeeActive,
		HireDate: localDate(2025, time.March, 1), ExitDate: &exit,
		MonthlySalary: decimal.RequireFromString("100000.50"), DeclaredSalary: decimal.NewFromInt(20000),
	}))
	require.NoError(t, s.SaveEmployee(ctx, generic.Employee{ID: "emp-2", EnterpriseID: "ent-b", Status: generic.EmployeeInactive, HireDate: localDate(2025, time.March, 1)}))
	require.NoError(t, s.SaveClient(ctx, generic.Client{ID: "cl-1", EnterpriseID: "ent-a", Name: "Acme", PaymentDay: &day}))
	require.NoError(t, s.SaveClient(ctx, generic.Client{ID: "cl-2", EnterpriseID: "ent-b", Name: "Zed"}))
	require.NoError(t, s.SaveEquipment(ctx, generic.Equipment{ID: "eq-1", EnterpriseID: "ent-a", Name: "Laptop", AssignedTo: &assignee}))
	require.NoError(t, s.SaveEmployeeClientRate(ctx, generic.EmployeeClientRate{
		ID: "r-1", EmployeeID: "emp-1", ClientID: "cl-1", Amount: generic.NewMoney(2500, generic.EUR),
		StartDate: localDate(2026, time.January, 1), Active: true,
	}))
	require.NoError(t, s.SaveEmployeeClientRate(ctx, generic.EmployeeClientRate{
		ID: "r-2", EmployeeID: "emp-2", ClientID: "cl-2", Amount: generic.NewMoney(10, generic.USD),
		StartDate: localDate(2026, time.January, 1),
	}))
	require.NoError(t, s.SaveClientCost(ctx, generic.ClientCost{ID: "k-1", ClientID: "cl-1", Label: "Licence", Amount: generic.NewMoney(40, generic.AED)}))

	// WHEN: reading with enterprise A only
	scope := []generic.EnterpriseID{"ent-a"}
	employees, err := s.ListEmployees(ctx, scope)
	require.NoError(t, err)
	clients, err := s.ListClients(ctx, scope)
	require.NoError(t, err)
	equipment, err := s.ListEquipment(ctx, scope)
	require.NoError(t, err)
	rates, err := s.ListEmployeeClientRates(ctx, scope)
	require.NoError(t, err)
	costs, err := s.ListClientCosts(ctx, scope)
	require.NoError(t, err)

	// THEN: only A's rows come back, intact
	require.Len(t, employees, 1)
	assert.Equal(t, "100000.5", employees[0].MonthlySalary.String())
	assert.True(t, localDate(2025, time.March, 1).Equal(employees[0].HireDate))
	assert.Equal(t, 1, employees[0].HireDate.Day(), "calendar date kept in local time")
	require.NotNil(t, employees[0].ExitDate)
	assert.True(t, exit.Equal(*employees[0].ExitDate))

	require.Len(t, clients, 1)
	require.NotNil(t, clients[0].PaymentDay)
	assert.Equal(t, 31, *clients[0].PaymentDay)

	require.Len(t, equipment, 1)
	assert.True(t, equipment[0].IsAssigned())

	require.Len(t, rates, 1)
	assert.Equal(t, generic.EUR, rates[0].Amount.Currency)
	assert.True(t, rates[0].Active)
	assert.Nil(t, rates[0].EndDate)

	require.Len(t, costs, 1)
	assert.Equal(t, generic.AED, costs[0].Amount.Currency)

	// AND: an empty scope matches nothing
	none, err := s.ListEmployees(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFinance_CorruptDateFailsTheRead(t *testing.T) {
	ctx := context.Background()
	s, raw := newFileStore(t)
	require.NoError(t, s.SaveEmployee(ctx, generic.Employee{
		ID: "emp-1", EnterpriseID: "ent-a", Status: generic.EmployeeActive, HireDate: localDate(2025, time.March, 1),
	}))

	// GIVEN: a hire date nobody can parse
	_, err := raw.ExecContext(ctx, `UPDATE employees SET hire_date = '01/03/2025' WHERE id = 'emp-1'`)
	require.NoError(t, err)

	// WHEN: listing employees
	_, err = s.ListEmployees(ctx, []generic.EnterpriseID{"ent-a"})

	// THEN: the read fails and names the row
	require.Error(t, err)
	assert.Contains(t, err.Error(), "emp-1")
	assert.Contains(t, err.Error(), "hire_date")
}

func TestFinance_ExpenseFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEnterprises(t, s)

	entA := generic.EnterpriseID("ent-a")
	for _, e := range []generic.Expense{
		{ID: "x-1", EnterpriseID: &entA, Type: generic.ExpenseProfessional, Amount: generic.NewMoney(10, generic.EUR), Date: localDate(2026, time.March, 1)},
		{ID: "x-2", EnterpriseID: &entA, Type: generic.ExpenseProfessional, Amount: generic.NewMoney(20, generic.EUR), Date: localDate(2026, time.March, 31)},
		{ID: "x-3", EnterpriseID: &entA, Type: generic.ExpenseProfessional, Amount: generic.NewMoney(30, generic.EUR), Date: localDate(2026, time.April, 1)},
		{ID: "x-4", Type: generic.ExpensePersonal, Amount: generic.NewMoney(70, generic.EUR), Date: localDate(2026, time.March, 15)},
	} {
		require.NoError(t, s.SaveExpense(ctx, e))
	}
	march := generic.Month{Year: 2026, Month: time.March}.Period(algiers)

	pro, err := s.ListExpenses(ctx, generic.ExpenseFilter{
		Type: generic.ExpenseProfessional, EnterpriseIDs: []generic.EnterpriseID{entA},
		From: march.Start, To: march.End,
	})
	require.NoError(t, err)
	require.Len(t, pro, 2)
	assert.Equal(t, generic.ExpenseID("x-1"), pro[0].ID)
	assert.Equal(t, generic.ExpenseID("x-2"), pro[1].ID)

	personal, err := s.ListExpenses(ctx, generic.ExpenseFilter{Type: generic.ExpensePersonal, From: march.Start, To: march.End})
	require.NoError(t, err)
	require.Len(t, personal, 1)
	assert.Nil(t, personal[0].EnterpriseID)

	empty, err := s.ListExpenses(ctx, generic.ExpenseFilter{EnterpriseIDs: []generic.EnterpriseID{}})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestSettings_VersionedRates(t *testing.T) {
	// GIVEN: the rate service on sqlite
	s := newTestStore(t)
	ctx := context.Background()
	svc := currency.NewService(s, nil)

	// WHEN: reading with no rows
	snap := svc.Get(ctx)

	// THEN: defaults at version 0
	assert.True(t, currency.Defaults.Equal(snap.Rates))
	assert.Equal(t, int64(0), snap.Version)

	// WHEN: saving twice, the second time from a stale version
	rates := currency.NewRates(150, 140, 40)
	saved, err := svc.Set(ctx, rates, snap.Version)
	require.NoError(t, err)
	_, err = svc.Set(ctx, currency.NewRates(1, 1, 1), snap.Version)

	// THEN: the first write wins and the stale one conflicts
	assert.True(t, errors.Is(err, generic.ErrConcurrentModification))
	got := svc.Get(ctx)
	assert.Equal(t, saved.Version, got.Version)
	assert.True(t, rates.Equal(got.Rates))
}

// =============================================================================
// GRANTS
// =============================================================================

func TestGrants_SaveThroughAccess(t *testing.T) {
	// GIVEN: a user with grants in A
	s := newTestStore(t)
	ctx := context.Background()
	seedEnterprises(t, s)
	require.NoError(t, s.SaveProfile(ctx, generic.Profile{ID: "u-1", Email: "a@b.dz", Role: generic.RoleManager}))

	catalog := access.DefaultCatalog()
	resolver := access.NewResolver(s, catalog, nil, nil)
	saver := access.NewSaver(s, catalog, resolver, nil)
	_, err := saver.Save(ctx, "u-1", access.Grants{
		App:         &generic.AppPermissions{Enterprises: true, Dashboard: true},
		Enterprises: []generic.EnterpriseID{"ent-a", "ent-b"},
		Modules: []generic.ModulePermission{
			{EnterpriseID: "ent-a", Module: generic.ModuleSalaries, CRUD: generic.CRUD{Read: true, Update: true}},
			{EnterpriseID: "ent-b", Module: generic.ModuleSalaries, CRUD: generic.FullCRUD},
		},
	})
	require.NoError(t, err)

	// THEN: the rows round-trip and the catalog filtered dubai's salaries
	ev, err := resolver.Evaluator(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, ev.Can(generic.ModuleSalaries, generic.ActionUpdate, "ent-a"))
	assert.False(t, ev.Can(generic.ModuleSalaries, generic.ActionCreate, "ent-a"))
	assert.False(t, ev.Can(generic.ModuleSalaries, generic.ActionRead, "ent-b"))
	assert.True(t, ev.CanAccessEnterprise("ent-b"))

	rows, err := s.ListModulePermissions(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0].ID)
}

func TestGrants_TransactionRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEnterprises(t, s)
	require.NoError(t, s.InsertEnterpriseAccess(ctx, []generic.EnterpriseAccess{{UserID: "u-1", EnterpriseID: "ent-a"}}))

	// WHEN: a transaction deletes then fails on a foreign key
	err := s.WithTx(ctx, func(tx generic.Store) error {
		if err := tx.DeleteEnterpriseAccess(ctx, "u-1"); err != nil {
			return err
		}
		return tx.InsertEnterpriseAccess(ctx, []generic.EnterpriseAccess{{UserID: "u-1", EnterpriseID: "ent-missing"}})
	})

	// THEN: the delete is undone
	require.Error(t, err)
	members, err := s.ListEnterpriseAccess(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []generic.EnterpriseID{"ent-a"}, members)
}

// =============================================================================
// IDENTITY
// =============================================================================

func TestIdentity_Sessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	svc := identity.NewService(s, s, time.Hour, nil,
		identity.WithHashCost(4),
		identity.WithClock(func() time.Time { return now }))

	p, err := svc.SignUp(ctx, identity.SignUpRequest{Email: "a@b.dz", Password: "longenough", Role: generic.RoleManager})
	require.NoError(t, err)
	_, err = svc.SignUp(ctx, identity.SignUpRequest{Email: "a@b.dz", Password: "longenough"})
	assert.True(t, errors.Is(err, generic.ErrValidation))

	session, err := svc.Authenticate(ctx, "a@b.dz", "longenough")
	require.NoError(t, err)
	id, err := svc.CurrentUser(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, p.ID, id)

	n, err := s.DeleteExpiredSessions(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = svc.CurrentUser(ctx, session.Token)
	assert.True(t, errors.Is(err, generic.ErrUnauthenticated))
}

func TestIdentity_SignUpIsAtomic(t *testing.T) {
	ctx := context.Background()
	s, raw := newFileStore(t)

	// GIVEN: profile inserts are rejected by the database
	_, err := raw.ExecContext(ctx, `CREATE TRIGGER reject_profiles BEFORE INSERT ON profiles
		BEGIN SELECT RAISE(ABORT, 'profiles are read-only'); END`)
	require.NoError(t, err)

	svc := identity.NewService(s, s, time.Hour, nil, identity.WithHashCost(4))

	// WHEN: signing up
	_, err = svc.SignUp(ctx, identity.SignUpRequest{Email: "a@b.dz", Password: "longenough"})

	// THEN: the credentials were rolled back with the profile
	require.Error(t, err)
	creds, err := s.GetCredentials(ctx, "a@b.dz")
	require.NoError(t, err)
	assert.Nil(t, creds)
}
