/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. Logger:     Structured request logging (zap)
  4. Metrics:    Prometheus request counter and latency histogram
  5. CORS:       Cross-origin requests for frontend
  6. Auth:       Session token to user id (under /api, except auth routes)

ROUTE GROUPS:
  /healthz              Liveness and store ping
  /metrics              Prometheus exposition
  /api/auth/*           Sign-up, login, logout
  /api/*                Authenticated dashboard API
  /api/scenarios/*      Demo data (non-production only)

AUTHENTICATION:
  A session token is read from "Authorization: Bearer <token>" or from the
  "session" cookie set at login. Every /api route except signup and login
  requires one.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/enterprise-dashboard/generic"
)

const sessionCookie = "session"

type contextKey string

const userIDKey contextKey = "user_id"

// RouterOptions tune the middleware stack.
type RouterOptions struct {
	// CORSOrigins lists the browser origins allowed cross-origin. Empty
	// means same-origin only.
	CORSOrigins []string
	// Ping reports store health on /healthz. Nil means always healthy.
	Ping func(ctx context.Context) error
}

// corsOptions only sends credentials to listed origins. A wildcard entry
// would echo any origin back, so it disables credentials.
func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: !slices.Contains(origins, "*"),
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.Logger))
	r.Use(h.Metrics.Middleware)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(corsOptions(opts.CORSOrigins)))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ping != nil {
			if err := opts.Ping(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "store unavailable", err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", h.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public auth routes
		r.Post("/auth/signup", h.SignUp)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Post("/auth/logout", h.Logout)
			r.Get("/me", h.Me)
			r.Get("/catalog", h.Catalog)

			// Permission routes
			r.Get("/permissions/check", h.CheckPermission)
			r.Get("/pages/{page}/access", h.PageAccess)

			// User administration routes
			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.ListUsers)
				r.Get("/{id}/permissions", h.GetUserPermissions)
				r.Put("/{id}/permissions", h.UpdateUserPermissions)
			})

			// Rate routes
			r.Route("/rates", func(r chi.Router) {
				r.Get("/", h.GetRates)
				r.Put("/", h.UpdateRates)
				r.Put("/relative", h.UpdateRelativeRates)
			})

			// Statement routes
			r.Route("/statement", func(r chi.Router) {
				r.Get("/", h.GetStatement)
				r.Get("/export", h.ExportStatement)
			})

			// Scenario routes
			if h.AllowScenarios {
				r.Route("/scenarios", func(r chi.Router) {
					r.Get("/", h.ListScenarios)
					r.Post("/load", h.LoadScenario)
				})
			}
		})
	})

	return r
}

// authenticate resolves the session token and stores the user id in the
// request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.Identity.CurrentUser(r.Context(), sessionToken(r))
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionToken(r *http.Request) string {
	if token := trimBearer(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func userIDFrom(ctx context.Context) generic.UserID {
	id, _ := ctx.Value(userIDKey).(generic.UserID)
	return id
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
