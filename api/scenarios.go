/*
scenarios.go - Demo scenario loaders for development and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	dashboard data: the three tenants, their employees, clients, equipment
	and expenses, plus demo accounts with different permission scopes.

AVAILABLE SCENARIOS:

	enterprises:  The deep-closer, ompleo and dubai tenants only
	demo:         Tenants, finance records for the current month, rates,
	              an admin, a dashboard-only manager and an assistant with
	              explicit module grants on deep-closer

HOW SCENARIOS WORK:
 1. Upsert enterprises (fixed ids, so loading twice is harmless)
 2. Upsert finance records
 3. Create accounts unless the email is already registered
 4. Save grants through the regular permission save

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "demo"}

NOTE:

	Routes are mounted only outside production and require an admin.
	cmd/server can also load a scenario at startup with -seed.

SEE ALSO:
  - access/save.go: Grants are written with the same save as the users page
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/enterprise-dashboard/access"
	"github.com/warp/enterprise-dashboard/currency"
	"github.com/warp/enterprise-dashboard/generic"
	"github.com/warp/enterprise-dashboard/identity"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "enterprises",
		Name:        "Enterprises",
		Description: "The three tenants with their module catalogs, no records",
	},
	{
		ID:          "demo",
		Name:        "Demo",
		Description: "Tenants, a month of finance records and accounts with admin, dashboard-only and explicit scopes",
	},
}

// Demo accounts. Passwords are only meant for local environments.
const (
	DemoAdminEmail     = "admin@demo.local"
	DemoManagerEmail   = "manager@demo.local"
	DemoAssistantEmail = "assistante@demo.local"
	DemoPassword       = "demo-password"
)

var (
	demoDeepCloser = generic.Enterprise{ID: "ent-deep-closer", Name: "Deep Closer", Slug: "deep-closer"}
	demoOmpleo     = generic.Enterprise{ID: "ent-ompleo", Name: "Ompleo", Slug: "ompleo"}
	demoDubai      = generic.Enterprise{ID: "ent-dubai", Name: "Dubai", Slug: "dubai"}
)

// =============================================================================
// HANDLERS
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.evaluator(w, r)
	if !ok {
		return
	}
	if !ev.IsAdmin() {
		h.writeDomainError(w, fmt.Errorf("%w: scenarios are admin only", generic.ErrForbidden))
		return
	}

	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

// LoadScenarioByID loads a scenario without going through HTTP.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	var err error
	switch id {
	case "enterprises":
		err = h.loadEnterprises(ctx)
	case "demo":
		err = h.loadDemoScenario(ctx)
	default:
		return generic.NewValidationError("scenario_id", "unknown")
	}
	if err != nil {
		return err
	}
	h.Logger.Info("scenario loaded", zap.String("scenario", id))
	return nil
}

// EnsureAccount signs req up unless its email is already registered, in
// which case the existing profile is returned.
func (h *Handler) EnsureAccount(ctx context.Context, req identity.SignUpRequest) (generic.Profile, error) {
	profile, err := h.Identity.SignUp(ctx, req)
	if err == nil {
		return profile, nil
	}
	var verr *generic.ValidationError
	if !errors.As(err, &verr) || verr.Violations["email"] != "taken" {
		return generic.Profile{}, err
	}

	profiles, err := h.Store.ListProfiles(ctx)
	if err != nil {
		return generic.Profile{}, generic.Persist("list profiles", err)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	for _, p := range profiles {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return generic.Profile{}, fmt.Errorf("%w: profile of %s", generic.ErrNotFound, email)
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadEnterprises(ctx context.Context) error {
	for _, e := range []generic.Enterprise{demoDeepCloser, demoOmpleo, demoDubai} {
		if err := h.Store.SaveEnterprise(ctx, e); err != nil {
			return generic.Persist("save enterprise", err)
		}
	}
	return nil
}

func (h *Handler) loadDemoScenario(ctx context.Context) error {
	if err := h.loadEnterprises(ctx); err != nil {
		return err
	}

	loc := h.Location
	month := generic.MonthOf(h.Clock.Now().In(loc))
	start := month.Start(loc)
	day := func(months, d int) time.Time {
		t := generic.AddMonths(start, months)
		return generic.DateIn(t.Year(), t.Month(), d, loc)
	}
	dzd := func(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
	deep, ompleo, dubai := demoDeepCloser.ID, demoOmpleo.ID, demoDubai.ID

	// Employees: one long-standing, one hired mid-month, one who left.
	exit := day(0, 10)
	employees := []generic.Employee{
		{ID: "demo-emp-amine", EnterpriseID: deep, FirstName: "Amine", LastName: "Kaci", Status: generic.EmployeeActive,
			HireDate: day(-14, 3), MonthlySalary: dzd(180000), DeclaredSalary: dzd(60000), Recharge: dzd(5000), MonthlyBonus: dzd(10000)},
		{ID: "demo-emp-sara", EnterpriseID: deep, FirstName: "Sara", LastName: "Benali", Status: generic.EmployeeActive,
			HireDate: day(0, 12), MonthlySalary: dzd(120000), DeclaredSalary: dzd(40000)},
		{ID: "demo-emp-yacine", EnterpriseID: ompleo, FirstName: "Yacine", LastName: "Haddad", Status: generic.EmployeeInactive,
			HireDate: day(-30, 1), ExitDate: &exit, MonthlySalary: dzd(150000), DeclaredSalary: dzd(50000)},
	}
	for _, e := range employees {
		if err := h.Store.SaveEmployee(ctx, e); err != nil {
			return generic.Persist("save employee", err)
		}
	}

	payday := 25
	clients := []generic.Client{
		{ID: "demo-client-atlas", EnterpriseID: deep, Name: "Atlas Telecom", PaymentDay: &payday},
		{ID: "demo-client-sahel", EnterpriseID: ompleo, Name: "Sahel Energy"},
		{ID: "demo-client-marina", EnterpriseID: dubai, Name: "Marina Holdings"},
	}
	for _, c := range clients {
		if err := h.Store.SaveClient(ctx, c); err != nil {
			return generic.Persist("save client", err)
		}
	}

	rates := []generic.EmployeeClientRate{
		{ID: "demo-rate-amine-atlas", EmployeeID: "demo-emp-amine", ClientID: "demo-client-atlas",
			Amount: generic.NewMoney(3200, generic.EUR), StartDate: day(-6, 1), Active: true},
		{ID: "demo-rate-sara-atlas", EmployeeID: "demo-emp-sara", ClientID: "demo-client-atlas",
			Amount: generic.NewMoney(2500, generic.EUR), StartDate: day(0, 12), Active: true},
	}
	for _, rate := range rates {
		if err := h.Store.SaveEmployeeClientRate(ctx, rate); err != nil {
			return generic.Persist("save employee client rate", err)
		}
	}

	costs := []generic.ClientCost{
		{ID: "demo-cost-sahel-licence", ClientID: "demo-client-sahel", Label: "Licence", Amount: generic.NewMoney(900, generic.USD)},
		{ID: "demo-cost-marina-retainer", ClientID: "demo-client-marina", Label: "Retainer", Amount: generic.NewMoney(15000, generic.AED)},
	}
	for _, c := range costs {
		if err := h.Store.SaveClientCost(ctx, c); err != nil {
			return generic.Persist("save client cost", err)
		}
	}

	amine := generic.EmployeeID("demo-emp-amine")
	equipment := []generic.Equipment{
		{ID: "demo-eq-laptop-1", EnterpriseID: deep, Name: "Laptop", AssignedTo: &amine},
		{ID: "demo-eq-laptop-2", EnterpriseID: deep, Name: "Laptop"},
	}
	for _, e := range equipment {
		if err := h.Store.SaveEquipment(ctx, e); err != nil {
			return generic.Persist("save equipment", err)
		}
	}

	expenses := []generic.Expense{
		{ID: "demo-exp-rent", EnterpriseID: &deep, Type: generic.ExpenseProfessional, Label: "Office rent",
			Amount: generic.NewMoney(250000, generic.DZD), Date: day(0, 5)},
		{ID: "demo-exp-visa", EnterpriseID: &dubai, Type: generic.ExpenseProfessional, Label: "Visa renewal",
			Amount: generic.NewMoney(3000, generic.AED), Date: day(0, 8)},
		{ID: "demo-exp-personal", Type: generic.ExpensePersonal, Label: "Car insurance",
			Amount: generic.NewMoney(400, generic.EUR), Date: day(0, 2)},
	}
	for _, e := range expenses {
		if err := h.Store.SaveExpense(ctx, e); err != nil {
			return generic.Persist("save expense", err)
		}
	}

	if snap := h.Rates.Get(ctx); snap.Version == 0 {
		if _, err := h.Rates.Set(ctx, currency.Defaults, currency.AnyVersion); err != nil {
			return err
		}
	}

	return h.loadDemoAccounts(ctx)
}

func (h *Handler) loadDemoAccounts(ctx context.Context) error {
	accounts := []struct {
		req    identity.SignUpRequest
		grants *access.Grants
	}{
		{
			req: identity.SignUpRequest{Email: DemoAdminEmail, Password: DemoPassword, FirstName: "Demo", LastName: "Admin", Role: generic.RoleAdmin},
		},
		{
			req:    identity.SignUpRequest{Email: DemoManagerEmail, Password: DemoPassword, FirstName: "Demo", LastName: "Manager", Role: generic.RoleManager},
			grants: &access.Grants{App: &generic.AppPermissions{Dashboard: true}},
		},
		{
			req: identity.SignUpRequest{Email: DemoAssistantEmail, Password: DemoPassword, FirstName: "Demo", LastName: "Assistante", Role: generic.RoleAssistante},
			grants: &access.Grants{
				App:         &generic.AppPermissions{Dashboard: true, Enterprises: true},
				Enterprises: []generic.EnterpriseID{demoDeepCloser.ID},
				Modules: []generic.ModulePermission{
					{EnterpriseID: demoDeepCloser.ID, Module: generic.ModuleEmployees, CRUD: generic.ReadOnly},
					{EnterpriseID: demoDeepCloser.ID, Module: generic.ModuleClients, CRUD: generic.FullCRUD},
				},
			},
		},
	}

	for _, a := range accounts {
		profile, err := h.EnsureAccount(ctx, a.req)
		if err != nil {
			return err
		}
		if a.grants == nil {
			continue
		}
		if _, err := h.Saver.Save(ctx, profile.ID, *a.grants); err != nil {
			return err
		}
	}
	return nil
}
