/*
handlers_test.go - HTTP tests for the dashboard API

Tests for:
- Session lifecycle (signup, login, logout, 401)
- Page and module authorization (403, dashboard-only scope, explicit scope)
- Permission saves through the users page
- Versioned rate updates (409 on a stale version)
- Statement cards, display currencies and XLSX export
- Metrics exposition
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/enterprise-dashboard/access"
	"github.com/warp/enterprise-dashboard/currency"
	"github.com/warp/enterprise-dashboard/finance"
	"github.com/warp/enterprise-dashboard/generic"
	"github.com/warp/enterprise-dashboard/generic/store"
	"github.com/warp/enterprise-dashboard/identity"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	handler *Handler
	router  http.Handler
	store   *store.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()
	clock := generic.FixedClock{At: time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)}
	catalog := access.DefaultCatalog()
	resolver := access.NewResolver(mem, catalog, access.NewMemoryCache(time.Minute), nil)
	rates := currency.NewService(mem, nil)

	h := NewHandler(Deps{
		Store: mem,
		Identity: identity.NewService(identity.NewMemoryStore(), mem, time.Hour, nil,
			identity.WithHashCost(bcrypt.MinCost),
			identity.WithClock(clock.Now)),
		Resolver:       resolver,
		Saver:          access.NewSaver(mem, catalog, resolver, nil),
		Rates:          rates,
		Loader:         finance.NewLoader(mem, rates, nil),
		Clock:          clock,
		Location:       time.UTC,
		AllowScenarios: true,
	})
	require.NoError(t, h.LoadScenarioByID(context.Background(), "demo"))

	return &testServer{handler: h, router: NewRouter(h, RouterOptions{}), store: mem}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: email, Password: DemoPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) profileID(t *testing.T, email string) generic.UserID {
	t.Helper()
	profiles, err := s.store.ListProfiles(context.Background())
	require.NoError(t, err)
	for _, p := range profiles {
		if p.Email == email {
			return p.ID
		}
	}
	t.Fatalf("no profile for %s", email)
	return ""
}

// =============================================================================
// AUTH
// =============================================================================

func TestAuth_SignUpLoginLogout(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: A new account (a requested role is ignored)
	rec := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "New.User@Example.com", "password": "long-enough", "first_name": "New", "role": "admin",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	profile := decode[ProfileDTO](t, rec)
	assert.Equal(t, "new.user@example.com", profile.Email)
	assert.Equal(t, generic.RoleEmployee, profile.Role)

	// WHEN: Logging in with the cookie the server sets
	rec = s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "new.user@example.com", Password: "long-enough"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, sessionCookie, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookies[0])
	meRec := httptest.NewRecorder()
	s.router.ServeHTTP(meRec, req)

	// THEN: The cookie authenticates; a user without grants sees no pages
	require.Equal(t, http.StatusOK, meRec.Code, meRec.Body.String())
	me := decode[MeResponse](t, meRec)
	assert.False(t, me.IsAdmin)
	assert.Empty(t, me.Pages)
	assert.Equal(t, access.ScopeNone, me.Scope)

	// AND: Logout revokes the session
	token := cookies[0].Value
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, "/api/auth/logout", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/me", token, nil).Code)
}

func TestAuth_Failures(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"no token", http.MethodGet, "/api/me", "", nil, http.StatusUnauthorized},
		{"unknown token", http.MethodGet, "/api/me", "nope", nil, http.StatusUnauthorized},
		{"wrong password", http.MethodPost, "/api/auth/login", "", LoginRequest{Email: DemoAdminEmail, Password: "wrong-password"}, http.StatusUnauthorized},
		{"unknown email", http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ghost@demo.local", Password: DemoPassword}, http.StatusUnauthorized},
		{"short password", http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "a@b.io", "password": "short"}, http.StatusBadRequest},
		{"duplicate email", http.MethodPost, "/api/auth/signup", "", map[string]string{"email": DemoAdminEmail, "password": "long-enough"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAuth_ValidationDetails(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "not-an-email", "password": "short"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}](t, rec)
	assert.Equal(t, "invalid", resp.Details["email"])
	assert.Equal(t, "too_short", resp.Details["password"])
}

// =============================================================================
// PERMISSIONS
// =============================================================================

func TestMe_Scopes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		email       string
		admin       bool
		scope       access.ScopeKind
		enterprises int
	}{
		{DemoAdminEmail, true, access.ScopeExplicit, 3},
		{DemoManagerEmail, false, access.ScopeAllReadOnly, 3},
		{DemoAssistantEmail, false, access.ScopeExplicit, 1},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/me", s.login(t, tt.email), nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			me := decode[MeResponse](t, rec)
			assert.Equal(t, tt.admin, me.IsAdmin)
			assert.Len(t, me.Enterprises, tt.enterprises)
			assert.Equal(t, tt.scope, me.Scope)
		})
	}
}

func TestCheckPermission(t *testing.T) {
	s := newTestServer(t)
	manager := s.login(t, DemoManagerEmail)
	assistant := s.login(t, DemoAssistantEmail)

	tests := []struct {
		name  string
		token string
		query string
		want  bool
	}{
		{"dashboard-only reads any enterprise", manager, "module=clients&action=read&enterprise_id=ent-dubai", true},
		{"dashboard-only never writes", manager, "module=clients&action=create&enterprise_id=ent-dubai", false},
		{"dashboard-only outside catalog", manager, "module=salaries&action=read&enterprise_id=ent-dubai", false},
		{"empty enterprise is denied", assistant, "module=clients&action=read", false},
		{"any enterprise", assistant, "module=clients&action=read&any=true", true},
		{"explicit grant", assistant, "module=clients&action=delete&enterprise_id=ent-deep-closer", true},
		{"read-only grant", assistant, "module=employees&action=update&enterprise_id=ent-deep-closer", false},
		{"non-member enterprise", assistant, "module=clients&action=read&enterprise_id=ent-ompleo", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/permissions/check?"+tt.query, tt.token, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, decode[CheckResponse](t, rec).Allowed)
		})
	}

	// Missing parameters are a bad request
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/permissions/check?module=clients", manager, nil).Code)
}

func TestPageAccessAndForbidden(t *testing.T) {
	s := newTestServer(t)
	manager := s.login(t, DemoManagerEmail)

	rec := s.do(t, http.MethodGet, "/api/pages/dashboard/access", manager, nil)
	assert.True(t, decode[CheckResponse](t, rec).Allowed)
	rec = s.do(t, http.MethodGet, "/api/pages/users/access", manager, nil)
	assert.False(t, decode[CheckResponse](t, rec).Allowed)

	// The users page guards user administration
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/users", manager, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPut, "/api/users/x/permissions", manager, GrantsDTO{}).Code)
}

func TestUpdateUserPermissions(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, DemoAdminEmail)

	// GIVEN: A fresh employee with no grants
	rec := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "emp@demo.local", "password": "long-enough"})
	require.Equal(t, http.StatusCreated, rec.Code)
	empID := decode[ProfileDTO](t, rec).ID
	emp := s.login(t, "emp@demo.local")
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/statement", emp, nil).Code)

	// WHEN: The admin grants dashboard and explicit dubai access with an
	// off-catalog module row
	grants := GrantsDTO{
		App:         &generic.AppPermissions{Dashboard: true, Enterprises: true},
		Enterprises: []generic.EnterpriseID{"ent-dubai"},
		Modules: []ModuleGrantDTO{
			{EnterpriseID: "ent-dubai", Module: generic.ModuleClients, CRUD: generic.FullCRUD},
			{EnterpriseID: "ent-dubai", Module: generic.ModuleSalaries, CRUD: generic.FullCRUD},
		},
	}
	rec = s.do(t, http.MethodPut, "/api/users/"+string(empID)+"/permissions", admin, grants)

	// THEN: Only the catalog module is written
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	plan := decode[SavePlanResponse](t, rec)
	assert.Equal(t, access.ScopeExplicit, plan.Scope)
	require.Len(t, plan.Grants.Modules, 1)
	assert.Equal(t, generic.ModuleClients, plan.Grants.Modules[0].Module)

	// AND: The employee sees the change immediately (cache invalidated)
	rec = s.do(t, http.MethodGet, "/api/permissions/check?module=salaries&action=read&enterprise_id=ent-dubai", emp, nil)
	assert.False(t, decode[CheckResponse](t, rec).Allowed)
	rec = s.do(t, http.MethodGet, "/api/permissions/check?module=clients&action=update&enterprise_id=ent-dubai", emp, nil)
	assert.True(t, decode[CheckResponse](t, rec).Allowed)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/statement", emp, nil).Code)

	// AND: Reading back returns the stored grants
	rec = s.do(t, http.MethodGet, "/api/users/"+string(empID)+"/permissions", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[UserPermissionsResponse](t, rec)
	assert.Equal(t, []generic.EnterpriseID{"ent-dubai"}, stored.Grants.Enterprises)
	assert.Len(t, stored.Grants.Modules, 1)
}

func TestUpdateUserPermissions_Errors(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, DemoAdminEmail)
	managerID := s.profileID(t, DemoManagerEmail)

	rec := s.do(t, http.MethodPut, "/api/users/ghost/permissions", admin, GrantsDTO{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/users/"+string(managerID)+"/permissions", admin, GrantsDTO{
		App:         &generic.AppPermissions{Enterprises: true},
		Enterprises: []generic.EnterpriseID{"ent-nowhere"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalog(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/catalog", s.login(t, DemoAssistantEmail), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]CatalogEntryDTO](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "deep-closer", entries[0].Enterprise.Slug)
	assert.Equal(t, generic.AllModules, entries[0].Modules)
}

// =============================================================================
// RATES
// =============================================================================

func TestRates_VersionConflict(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, DemoAdminEmail)

	// GIVEN: The current snapshot
	rec := s.do(t, http.MethodGet, "/api/rates?base=EUR", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	current := decode[RatesResponse](t, rec)
	assert.Equal(t, generic.EUR, current.Base)
	assert.True(t, current.Relative[generic.DZD].Equal(decimal.NewFromInt(140)))

	// WHEN: Saving against the current version succeeds
	version := current.Version
	next := currency.NewRates(150, 135, 37)
	rec = s.do(t, http.MethodPut, "/api/rates", admin, UpdateRatesRequest{Rates: next, Version: &version})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[RatesResponse](t, rec)
	assert.Equal(t, version+1, saved.Version)
	assert.True(t, saved.Rates.EURDZD.Equal(decimal.NewFromInt(150)))

	// THEN: A second save with the old version conflicts
	rec = s.do(t, http.MethodPut, "/api/rates", admin, UpdateRatesRequest{Rates: currency.Defaults, Version: &version})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRates_ReadOnlyScopeCannotWrite(t *testing.T) {
	s := newTestServer(t)
	manager := s.login(t, DemoManagerEmail)

	// GIVEN: A dashboard-only user reads the rates
	rec := s.do(t, http.MethodGet, "/api/rates", manager, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: Writing them either way
	rec = s.do(t, http.MethodPut, "/api/rates", manager, UpdateRatesRequest{Rates: currency.NewRates(1, 1, 1)})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := map[string]any{"base": "USD", "rates": map[string]string{"DZD": "1"}}
	rec = s.do(t, http.MethodPut, "/api/rates/relative", manager, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// THEN: Nothing changed
	rec = s.do(t, http.MethodGet, "/api/rates", manager, nil)
	resp := decode[RatesResponse](t, rec)
	assert.True(t, resp.Rates.EURDZD.Equal(currency.Defaults.EURDZD))

	// An explicit-scope dashboard user may still edit them
	rec = s.do(t, http.MethodPut, "/api/rates", s.login(t, DemoAssistantEmail), UpdateRatesRequest{Rates: currency.NewRates(150, 135, 37)})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRates_Relative(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, DemoAdminEmail)

	// 1 USD = 0.9 EUR with 1 USD = 135 DZD gives 1 EUR = 150 DZD
	body := map[string]any{"base": "usd", "rates": map[string]string{"DZD": "135", "EUR": "0.9", "AED": "3.75"}}
	rec := s.do(t, http.MethodPut, "/api/rates/relative", admin, body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[RatesResponse](t, rec)
	assert.True(t, resp.Rates.USDDZD.Equal(decimal.NewFromInt(135)))
	assert.True(t, resp.Rates.EURDZD.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, generic.USD, resp.Base)

	rec = s.do(t, http.MethodPut, "/api/rates/relative", admin, map[string]any{"base": "GBP", "rates": map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// STATEMENT
// =============================================================================

func TestStatement_ScopeAndCurrencies(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: The admin sees every enterprise
	rec := s.do(t, http.MethodGet, "/api/statement?month=2025-03&personal_expenses_currency=DZD", s.login(t, DemoAdminEmail), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[StatementResponse](t, rec)

	assert.Equal(t, "2025-03", st.Month)
	assert.Len(t, st.Enterprises, 3)
	assert.Equal(t, 3, st.Counts.Clients)
	assert.Equal(t, 2, st.Counts.Equipment)
	assert.Equal(t, 1, st.Counts.AssignedEquipment)
	assert.Len(t, st.Cards, len(finance.Metrics))
	assert.Equal(t, generic.EUR, st.Cards[finance.MetricRevenue].Currency)

	// 400 EUR at 140 DZD/EUR
	personal := st.Cards[finance.MetricPersonalExpenses]
	assert.Equal(t, generic.DZD, personal.Currency)
	assert.True(t, personal.Value.Equal(decimal.NewFromInt(56000)), personal.Value.String())

	// WHEN: The assistant asks for the same month
	rec = s.do(t, http.MethodGet, "/api/statement?month=2025-03", s.login(t, DemoAssistantEmail), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	scoped := decode[StatementResponse](t, rec)

	// THEN: Only deep-closer is aggregated
	require.Len(t, scoped.Enterprises, 1)
	assert.Equal(t, generic.EnterpriseID("ent-deep-closer"), scoped.Enterprises[0].EnterpriseID)
	assert.Equal(t, 1, scoped.Counts.Clients)
	assert.Equal(t, 2, scoped.Counts.Employees)
}

func TestStatement_EnterpriseFilter(t *testing.T) {
	s := newTestServer(t)
	assistant := s.login(t, DemoAssistantEmail)

	rec := s.do(t, http.MethodGet, "/api/statement?enterprise_id=ent-deep-closer", assistant, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/statement?enterprise_id=ent-dubai", assistant, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/statement?month=March", assistant, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/statement?currency=GBP", assistant, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatement_Export(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/statement/export?month=2025-03", s.login(t, DemoManagerEmail), nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "statement-2025-03.xlsx")
	// XLSX files are zip archives
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

// =============================================================================
// SCENARIOS AND METRICS
// =============================================================================

func TestScenarios_AdminOnlyAndIdempotent(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/scenarios/load", s.login(t, DemoManagerEmail), LoadScenarioRequest{ScenarioID: "demo"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := s.login(t, DemoAdminEmail)
	rec = s.do(t, http.MethodPost, "/api/scenarios/load", admin, LoadScenarioRequest{ScenarioID: "demo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	profiles, err := s.store.ListProfiles(context.Background())
	require.NoError(t, err)
	assert.Len(t, profiles, 3)

	rec = s.do(t, http.MethodPost, "/api/scenarios/load", admin, LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsAndHealth(t *testing.T) {
	s := newTestServer(t)
	manager := s.login(t, DemoManagerEmail)
	s.do(t, http.MethodGet, "/api/pages/users/access", manager, nil)
	s.do(t, http.MethodGet, "/api/statement", manager, nil)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", "", nil).Code)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `dashboard_permission_checks_total{kind="page",result="denied"} 1`), body)
	assert.Contains(t, body, "dashboard_statement_computations_total 1")
	assert.Contains(t, body, `route="/api/statement`)
}

func TestRouter_CORS(t *testing.T) {
	s := newTestServer(t)
	crossOrigin := func(router http.Handler) http.Header {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "https://other.example")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Header()
	}

	// No origins configured: no cross-origin headers at all
	h := crossOrigin(s.router)
	assert.Empty(t, h.Get("Access-Control-Allow-Origin"))

	// Wildcard: any origin, never with credentials
	h = crossOrigin(NewRouter(s.handler, RouterOptions{CORSOrigins: []string{"*"}}))
	assert.NotEmpty(t, h.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, h.Get("Access-Control-Allow-Credentials"))

	// Listed origins only, with credentials
	listed := NewRouter(s.handler, RouterOptions{CORSOrigins: []string{"https://app.example"}})
	assert.Empty(t, crossOrigin(listed).Get("Access-Control-Allow-Origin"))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	listed.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
