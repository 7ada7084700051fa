/*
handlers.go - HTTP API handlers for the enterprise dashboard

PURPOSE:
  Exposes identity, permissions, exchange rates and the financial statement
  over REST. Handles HTTP request/response, JSON serialization, and
  delegates to the domain packages.

ENDPOINTS:
  Auth:
    POST   /api/auth/signup                 Create an account
    POST   /api/auth/login                  Issue a session
    POST   /api/auth/logout                 Revoke the session

  Directory:
    GET    /api/me                          Profile, pages, accessible enterprises
    GET    /api/users                       List profiles (users page)
    GET    /api/catalog                     Modules per accessible enterprise

  Permissions:
    GET    /api/permissions/check           can(module, action, enterprise)
    GET    /api/pages/{page}/access         canAccessPage(page)
    GET    /api/users/{id}/permissions      Current grants (users page)
    PUT    /api/users/{id}/permissions      Replace grants (users page)

  Rates (dashboard page):
    GET    /api/rates                       Snapshot, ?base= adds the relative view
    PUT    /api/rates                       Save DZD-pivot rates (not read-only scopes)
    PUT    /api/rates/relative              Save rates edited relative to a base (idem)

  Statement (dashboard page):
    GET    /api/statement                   Consolidated statement for ?month=
    GET    /api/statement/export            Same, as an XLSX workbook

  Scenarios (non-production, admin):
    GET    /api/scenarios                   List demo data sets
    POST   /api/scenarios/load              Load one (see scenarios.go)

REQUEST FLOW:
  1. Auth middleware resolves the session to a user id
  2. Handler builds the user's Evaluator and checks the page / module
  3. Call domain logic
  4. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, unknown currency or enterprise
  - 401: Missing or expired session
  - 403: Permission denied
  - 404: Resource not found
  - 409: Concurrent modification, superseded statement load
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/enterprise-dashboard/access"
	"github.com/warp/enterprise-dashboard/currency"
	"github.com/warp/enterprise-dashboard/finance"
	"github.com/warp/enterprise-dashboard/generic"
	"github.com/warp/enterprise-dashboard/identity"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Deps are the services the handlers delegate to.
type Deps struct {
	Store    generic.Store
	Identity *identity.Service
	Resolver *access.Resolver
	Saver    *access.Saver
	Rates    *currency.Service
	Loader   *finance.Loader
	Clock    generic.Clock
	Location *time.Location
	Logger   *zap.Logger
	Metrics  *Metrics
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	// AllowScenarios mounts the demo data routes.
	AllowScenarios bool
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Deps

	// One dashboard per user so generations never cross users.
	mu         sync.Mutex
	dashboards map[generic.UserID]*finance.Dashboard
}

// NewHandler creates a new handler. Missing clock, location, logger and
// metrics get defaults.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Clock == nil {
		deps.Clock = generic.SystemClock{Location: deps.Location}
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	return &Handler{Deps: deps, dashboards: make(map[generic.UserID]*finance.Dashboard)}
}

func (h *Handler) dashboardFor(userID generic.UserID) *finance.Dashboard {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.dashboards[userID]
	if !ok {
		d = finance.NewDashboard(h.Loader, h.Clock, h.Logger)
		d.OnComputed = h.Metrics.statements.Inc
		d.OnStale = h.Metrics.staleLoads.Inc
		h.dashboards[userID] = d
	}
	return d
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// SignUp creates an account.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req identity.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	// Public sign-up never picks its own role.
	req.Role = generic.RoleEmployee

	profile, err := h.Identity.SignUp(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileDTO(profile))
}

// Login authenticates and issues a session token, also set as a cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	session, err := h.Identity.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	profile, err := h.Store.GetProfile(r.Context(), session.UserID)
	if err != nil || profile == nil {
		h.writeDomainError(w, fmt.Errorf("%w: profile of %s", generic.ErrNotFound, session.UserID))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      toProfileDTO(*profile),
		Role:      profile.Role,
	})
}

// Logout revokes the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Identity.Revoke(r.Context(), sessionToken(r)); err != nil {
		h.writeDomainError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// DIRECTORY HANDLERS
// =============================================================================

// Me returns the current user with navigation data.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.evaluator(w, r)
	if !ok {
		return
	}
	snap, err := h.Resolver.Snapshot(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := MeResponse{
		User:        toProfileDTO(snap.Profile),
		IsAdmin:     ev.IsAdmin(),
		Pages:       ev.Pages(),
		Scope:       ev.Scope().Kind,
		Enterprises: ev.AccessibleEnterprises(),
	}
	if resp.Pages == nil {
		resp.Pages = []generic.Page{}
	}
	if resp.Enterprises == nil {
		resp.Enterprises = []generic.EnterpriseID{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListUsers returns every profile.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requirePage(w, r, generic.PageUsers); !ok {
		return
	}
	profiles, err := h.Store.ListProfiles(r.Context())
	if err != nil {
		h.writeDomainError(w, generic.Persist("list profiles", err))
		return
	}
	dtos := make([]ProfileDTO, len(profiles))
	for i, p := range profiles {
		dtos[i] = toProfileDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Catalog lists the modules offered by each enterprise the user can see.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.evaluator(w, r)
	if !ok {
		return
	}
	enterprises, err := h.Store.ListEnterprises(r.Context())
	if err != nil {
		h.writeDomainError(w, generic.Persist("list enterprises", err))
		return
	}

	var visible []generic.Enterprise
	for _, e := range enterprises {
		if ev.CanAccessEnterprise(e.ID) {
			visible = append(visible, e)
		}
	}
	out := make([]CatalogEntryDTO, 0, len(visible))
	for _, entry := range h.Resolver.Catalog().For(visible) {
		out = append(out, CatalogEntryDTO{Enterprise: toEnterpriseDTO(entry.Enterprise), Modules: entry.Modules})
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// PERMISSION HANDLERS
// =============================================================================

// CheckPermission answers can(module, action, enterprise_id). With any=true
// and no enterprise it answers "in at least one enterprise".
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.evaluator(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	module := generic.ModuleID(q.Get("module"))
	action := generic.Action(q.Get("action"))
	enterpriseID := generic.EnterpriseID(q.Get("enterprise_id"))
	if module == "" || action == "" {
		writeError(w, http.StatusBadRequest, "module and action are required", nil)
		return
	}

	var allowed bool
	if enterpriseID == "" && q.Get("any") == "true" {
		allowed = ev.CanInAny(module, action)
	} else {
		allowed = ev.Can(module, action, enterpriseID)
	}
	h.Metrics.permissionCheck("module", allowed)
	writeJSON(w, http.StatusOK, CheckResponse{Allowed: allowed})
}

// PageAccess answers canAccessPage(page).
func (h *Handler) PageAccess(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.evaluator(w, r)
	if !ok {
		return
	}
	allowed := ev.CanAccessPage(generic.Page(chi.URLParam(r, "page")))
	h.Metrics.permissionCheck("page", allowed)
	writeJSON(w, http.StatusOK, CheckResponse{Allowed: allowed})
}

// GetUserPermissions returns a user's stored grants.
func (h *Handler) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requirePage(w, r, generic.PageUsers); !ok {
		return
	}
	snap, err := h.Resolver.Load(r.Context(), generic.UserID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserPermissionsResponse{
		User:   toProfileDTO(snap.Profile),
		Scope:  access.DeriveScope(snap.Grants.App, snap.Grants.Enterprises).Kind,
		Grants: toGrantsDTO(snap.Grants),
	})
}

// UpdateUserPermissions replaces a user's grants.
func (h *Handler) UpdateUserPermissions(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requirePage(w, r, generic.PageUsers); !ok {
		return
	}
	userID := generic.UserID(chi.URLParam(r, "id"))
	profile, err := h.Store.GetProfile(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, generic.Persist("get profile", err))
		return
	}
	if profile == nil {
		h.writeDomainError(w, fmt.Errorf("%w: user %s", generic.ErrNotFound, userID))
		return
	}

	var req GrantsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	plan, err := h.Saver.Save(r.Context(), userID, req.toGrants(userID))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SavePlanResponse{
		UserID: plan.UserID,
		Scope:  plan.Scope.Kind,
		Grants: toGrantsDTO(plan.Grants()),
	})
}

// =============================================================================
// RATE HANDLERS
// =============================================================================

// GetRates returns the current rates; ?base=USD adds the view relative to USD.
func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requirePage(w, r, generic.PageDashboard); !ok {
		return
	}
	snap := h.Rates.Get(r.Context())
	resp := toRatesResponse(snap)

	if raw := r.URL.Query().Get("base"); raw != "" {
		base, err := generic.ParseCurrency(raw)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		view, err := snap.Rates.RelativeTo(base)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		resp.Base, resp.Relative = base, view
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateRates saves DZD-pivot rates. A stale version answers 409.
func (h *Handler) UpdateRates(w http.ResponseWriter, r *http.Request) {
	if !h.requireRatesWriter(w, r) {
		return
	}
	var req UpdateRatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	snap, err := h.Rates.Set(r.Context(), req.Rates, expectedVersion(req.Version))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRatesResponse(snap))
}

// UpdateRelativeRates saves rates edited as "1 base = x target".
func (h *Handler) UpdateRelativeRates(w http.ResponseWriter, r *http.Request) {
	if !h.requireRatesWriter(w, r) {
		return
	}
	var req UpdateRelativeRatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	base, err := generic.ParseCurrency(req.Base)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	view := make(currency.RelativeView, len(req.Rates))
	for code, v := range req.Rates {
		c, err := generic.ParseCurrency(code)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		view[c] = v
	}

	snap, err := h.Rates.SetRelative(r.Context(), base, view, expectedVersion(req.Version))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	resp := toRatesResponse(snap)
	if rel, err := snap.Rates.RelativeTo(base); err == nil {
		resp.Base, resp.Relative = base, rel
	}
	writeJSON(w, http.StatusOK, resp)
}

func toRatesResponse(snap currency.Snapshot) RatesResponse {
	resp := RatesResponse{Rates: snap.Rates, Version: snap.Version, Defaulted: snap.Defaulted}
	if !snap.UpdatedAt.IsZero() {
		t := snap.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

// =============================================================================
// STATEMENT HANDLERS
// =============================================================================

// GetStatement computes the statement of ?month= (default: current month)
// over the user's accessible enterprises. ?currency= sets the display
// currency; ?<metric>_currency= overrides it per card.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	st, in, display, ok := h.statement(w, r)
	if !ok {
		return
	}
	rendered, err := st.Render(in.Rates, display)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := StatementResponse{
		Month:        st.Month.String(),
		Counts:       st.Counts,
		Cards:        make(map[finance.Metric]MoneyDTO, len(rendered)),
		Enterprises:  st.Enterprises,
		Skipped:      st.Skipped,
		RatesVersion: h.Rates.Get(r.Context()).Version,
	}
	if resp.Enterprises == nil {
		resp.Enterprises = []finance.EnterpriseLine{}
	}
	for m, money := range rendered {
		resp.Cards[m] = MoneyDTO{Value: money.Value.Round(2), Currency: money.Currency}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExportStatement streams the statement as an XLSX workbook.
func (h *Handler) ExportStatement(w http.ResponseWriter, r *http.Request) {
	st, in, display, ok := h.statement(w, r)
	if !ok {
		return
	}
	data, err := finance.ExportXLSX(st, in.Rates, display)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="statement-%s.xlsx"`, st.Month))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.Logger.Warn("statement export write failed", zap.Error(err))
	}
}

// statement runs the shared part of the statement endpoints.
func (h *Handler) statement(w http.ResponseWriter, r *http.Request) (finance.Statement, finance.Input, finance.Display, bool) {
	var (
		none    finance.Statement
		noInput finance.Input
		display finance.Display
	)
	ev, ok := h.requirePage(w, r, generic.PageDashboard)
	if !ok {
		return none, noInput, display, false
	}

	q := r.URL.Query()
	month := generic.MonthOf(h.Clock.Now().In(h.Location))
	if raw := q.Get("month"); raw != "" {
		m, err := generic.ParseMonth(raw)
		if err != nil {
			h.writeDomainError(w, err)
			return none, noInput, display, false
		}
		month = m
	}

	display, err := parseDisplay(q.Get, q.Get("currency"))
	if err != nil {
		h.writeDomainError(w, err)
		return none, noInput, display, false
	}

	scope := ev.AccessibleEnterprises()
	if raw := q.Get("enterprise_id"); raw != "" {
		id := generic.EnterpriseID(raw)
		allowed := ev.CanAccessEnterprise(id)
		h.Metrics.permissionCheck("enterprise", allowed)
		if !allowed {
			h.writeDomainError(w, generic.ErrForbidden)
			return none, noInput, display, false
		}
		scope = []generic.EnterpriseID{id}
	}

	st, in, err := h.dashboardFor(userIDFrom(r.Context())).Refresh(r.Context(), scope, month)
	if err != nil {
		h.writeDomainError(w, err)
		return none, noInput, display, false
	}
	return st, in, display, true
}

func parseDisplay(get func(string) string, def string) (finance.Display, error) {
	display := finance.Display{Default: generic.EUR, PerCard: make(map[finance.Metric]generic.Currency)}
	if def != "" {
		c, err := generic.ParseCurrency(def)
		if err != nil {
			return display, err
		}
		display.Default = c
	}
	for _, m := range finance.Metrics {
		raw := get(string(m) + "_currency")
		if raw == "" {
			continue
		}
		c, err := generic.ParseCurrency(raw)
		if err != nil {
			return display, err
		}
		display.PerCard[m] = c
	}
	return display, nil
}

// =============================================================================
// AUTHORIZATION HELPERS
// =============================================================================

func (h *Handler) evaluator(w http.ResponseWriter, r *http.Request) (*access.Evaluator, bool) {
	ev, err := h.Resolver.Evaluator(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		// A session whose profile vanished is no longer a valid login.
		if errors.Is(err, generic.ErrNotFound) {
			err = generic.ErrUnauthenticated
		}
		h.writeDomainError(w, err)
		return nil, false
	}
	return ev, true
}

func (h *Handler) requirePage(w http.ResponseWriter, r *http.Request, page generic.Page) (*access.Evaluator, bool) {
	ev, ok := h.evaluator(w, r)
	if !ok {
		return nil, false
	}
	allowed := ev.CanAccessPage(page)
	h.Metrics.permissionCheck("page", allowed)
	if !allowed {
		h.writeDomainError(w, fmt.Errorf("%w: page %s", generic.ErrForbidden, page))
		return nil, false
	}
	return ev, true
}

// requireRatesWriter allows rate edits to dashboard users with write access.
// Dashboard-only users read every enterprise but change nothing, and the
// rates are shared by all of them.
func (h *Handler) requireRatesWriter(w http.ResponseWriter, r *http.Request) bool {
	ev, ok := h.requirePage(w, r, generic.PageDashboard)
	if !ok {
		return false
	}
	allowed := !ev.Scope().ReadOnly()
	h.Metrics.permissionCheck("rates", allowed)
	if !allowed {
		h.writeDomainError(w, fmt.Errorf("%w: read-only scope cannot edit rates", generic.ErrForbidden))
	}
	return allowed
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrValidation),
		errors.Is(err, generic.ErrUnknownCurrency),
		errors.Is(err, generic.ErrUnknownEnterprise):
		return http.StatusBadRequest
	case errors.Is(err, generic.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, generic.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrConcurrentModification),
		errors.Is(err, generic.ErrStaleLoad):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeDomainError writes err with its mapped status. Validation errors carry
// their field violations; internal errors are logged and not echoed.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: http.StatusText(status)}

	var verr *generic.ValidationError
	switch {
	case errors.As(err, &verr):
		resp.Error = "validation failed"
		resp.Details = verr.Violations
	case status == http.StatusInternalServerError:
		h.Logger.Error("request failed", zap.Error(err))
	default:
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func trimBearer(v string) string {
	const prefix = "bearer "
	if len(v) > len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
		return strings.TrimSpace(v[len(prefix):])
	}
	return ""
}
