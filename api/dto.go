/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Identity:    SignUpRequest (identity.SignUpRequest), LoginRequest, LoginResponse
  Directory:   ProfileDTO, MeResponse
  Permissions: CheckResponse, GrantsDTO, ModuleGrantDTO, SavePlanResponse
  Rates:       RatesResponse, UpdateRatesRequest, UpdateRelativeRatesRequest
  Statement:   StatementResponse, MoneyDTO

VALIDATION:
  Validation is done in handlers and services, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/enterprise-dashboard/access"
	"github.com/warp/enterprise-dashboard/currency"
	"github.com/warp/enterprise-dashboard/finance"
	"github.com/warp/enterprise-dashboard/generic"
)

// =============================================================================
// IDENTITY
// =============================================================================

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      ProfileDTO   `json:"user"`
	Role      generic.Role `json:"role"`
}

// =============================================================================
// DIRECTORY
// =============================================================================

type ProfileDTO struct {
	ID        generic.UserID `json:"id"`
	Email     string         `json:"email"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Role      generic.Role   `json:"role"`
	CreatedAt time.Time      `json:"created_at"`
}

func toProfileDTO(p generic.Profile) ProfileDTO {
	return ProfileDTO{
		ID:        p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      p.Role,
		CreatedAt: p.CreatedAt,
	}
}

type EnterpriseDTO struct {
	ID      generic.EnterpriseID `json:"id"`
	Name    string               `json:"name"`
	Slug    string               `json:"slug"`
	LogoRef string               `json:"logo_ref,omitempty"`
}

func toEnterpriseDTO(e generic.Enterprise) EnterpriseDTO {
	return EnterpriseDTO{ID: e.ID, Name: e.Name, Slug: e.Slug, LogoRef: e.LogoRef}
}

// MeResponse is what the shell needs to draw navigation.
type MeResponse struct {
	User        ProfileDTO             `json:"user"`
	IsAdmin     bool                   `json:"is_admin"`
	Pages       []generic.Page         `json:"pages"`
	Scope       access.ScopeKind       `json:"scope"`
	Enterprises []generic.EnterpriseID `json:"enterprises"`
}

// =============================================================================
// PERMISSIONS
// =============================================================================

type CheckResponse struct {
	Allowed bool `json:"allowed"`
}

type CatalogEntryDTO struct {
	Enterprise EnterpriseDTO      `json:"enterprise"`
	Modules    []generic.ModuleID `json:"modules"`
}

type ModuleGrantDTO struct {
	EnterpriseID generic.EnterpriseID `json:"enterprise_id"`
	Module       generic.ModuleID     `json:"module"`
	generic.CRUD
}

// GrantsDTO is the editable grant set of one user. A missing app object
// means no app-permission row.
type GrantsDTO struct {
	App         *generic.AppPermissions `json:"app"`
	Enterprises []generic.EnterpriseID  `json:"enterprises"`
	Modules     []ModuleGrantDTO        `json:"modules"`
}

func toGrantsDTO(g access.Grants) GrantsDTO {
	out := GrantsDTO{
		App:         g.App,
		Enterprises: g.Enterprises,
		Modules:     make([]ModuleGrantDTO, 0, len(g.Modules)),
	}
	if out.Enterprises == nil {
		out.Enterprises = []generic.EnterpriseID{}
	}
	for _, m := range g.Modules {
		out.Modules = append(out.Modules, ModuleGrantDTO{EnterpriseID: m.EnterpriseID, Module: m.Module, CRUD: m.CRUD})
	}
	return out
}

func (d GrantsDTO) toGrants(userID generic.UserID) access.Grants {
	g := access.Grants{App: d.App, Enterprises: d.Enterprises}
	for _, m := range d.Modules {
		g.Modules = append(g.Modules, generic.ModulePermission{
			UserID:       userID,
			EnterpriseID: m.EnterpriseID,
			Module:       m.Module,
			CRUD:         m.CRUD,
		})
	}
	return g
}

type UserPermissionsResponse struct {
	User   ProfileDTO       `json:"user"`
	Scope  access.ScopeKind `json:"scope"`
	Grants GrantsDTO        `json:"grants"`
}

type SavePlanResponse struct {
	UserID generic.UserID   `json:"user_id"`
	Scope  access.ScopeKind `json:"scope"`
	Grants GrantsDTO        `json:"grants"`
}

// =============================================================================
// RATES
// =============================================================================

type RatesResponse struct {
	Rates     currency.Rates        `json:"rates"`
	Version   int64                 `json:"version"`
	UpdatedAt *time.Time            `json:"updated_at,omitempty"`
	Defaulted []string              `json:"defaulted,omitempty"`
	Base      generic.Currency      `json:"base,omitempty"`
	Relative  currency.RelativeView `json:"relative,omitempty"`
}

// UpdateRatesRequest omits version to overwrite whatever is stored.
type UpdateRatesRequest struct {
	currency.Rates
	Version *int64 `json:"version"`
}

type UpdateRelativeRatesRequest struct {
	Base    string                     `json:"base"`
	Rates   map[string]decimal.Decimal `json:"rates"`
	Version *int64                     `json:"version"`
}

func expectedVersion(v *int64) int64 {
	if v == nil {
		return currency.AnyVersion
	}
	return *v
}

// =============================================================================
// STATEMENT
// =============================================================================

type MoneyDTO struct {
	Value    decimal.Decimal  `json:"value"`
	Currency generic.Currency `json:"currency"`
}

type StatementResponse struct {
	Month        string                      `json:"month"`
	Counts       finance.Counts              `json:"counts"`
	Cards        map[finance.Metric]MoneyDTO `json:"cards"`
	Enterprises  []finance.EnterpriseLine    `json:"enterprises"`
	Skipped      int                         `json:"skipped"`
	RatesVersion int64                       `json:"rates_version"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
