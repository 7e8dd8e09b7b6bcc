package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/proxydesk/proxydesk/internal/api"
	"github.com/proxydesk/proxydesk/internal/audit"
	"github.com/proxydesk/proxydesk/internal/auth"
	"github.com/proxydesk/proxydesk/internal/database"
	"github.com/proxydesk/proxydesk/internal/export"
	"github.com/proxydesk/proxydesk/internal/limits"
	mw "github.com/proxydesk/proxydesk/internal/middleware"
	"github.com/proxydesk/proxydesk/internal/proxies"
	"github.com/proxydesk/proxydesk/internal/quota"
	"github.com/proxydesk/proxydesk/internal/users"
)

const readinessTimeout = 3 * time.Second

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth    *auth.Handler
	Users   *users.Handler
	Proxies *proxies.Handler
	Limits  *limits.Handler
	Quota   *quota.Handler
	Export  *export.Handler
	Audit   *audit.Handler
}

type Deps struct {
	Handlers       Handlers
	AuthService    *auth.Service
	RateLimiter    *mw.RateLimiter
	Pool           *pgxpool.Pool
	Redis          *goredis.Client
	AllowedOrigins []string
}

func New(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.Metrics)
	r.Use(mw.SecurityHeaders)
	r.Use(cors.Handler(mw.CORS(d.AllowedOrigins)))
	r.Use(chimw.StripSlashes)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		api.JSONMessage(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), readinessTimeout)
		defer cancel()
		if err := database.HealthCheck(ctx, d.Pool); err != nil {
			api.JSONErrorMessage(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			api.JSONErrorMessage(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
		api.JSONMessage(w, http.StatusOK, "ready")
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if d.RateLimiter != nil {
				r.Use(d.RateLimiter.Middleware)
			}
			r.Post("/register", d.Handlers.Auth.Register)
			r.Post("/login", d.Handlers.Auth.Login)
			r.Post("/refresh", d.Handlers.Auth.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware(d.AuthService))
				r.Post("/logout", d.Handlers.Auth.Logout)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(d.AuthService))

			r.Route("/users", func(r chi.Router) {
				r.Get("/", d.Handlers.Users.List)
				r.Get("/me", d.Handlers.Users.Me)
				r.Get("/{id}/cooldown", d.Handlers.Users.CooldownStatus)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireRole(string(users.RoleAdmin), string(users.RoleManager)))
					r.Patch("/{id}/limits", d.Handlers.Users.UpdateLimits)
					r.Patch("/{id}/cooldown", d.Handlers.Users.OverrideCooldown)
				})
			})

			r.Route("/quota", func(r chi.Router) {
				r.Get("/", d.Handlers.Quota.Status)
				r.Get("/cooldown/stream", d.Handlers.Users.CooldownStream)
			})

			r.Route("/proxies", func(r chi.Router) {
				r.Get("/availability", d.Handlers.Proxies.Availability)
				r.Post("/claim", d.Handlers.Proxies.Claim)
				r.Get("/claim", d.Handlers.Proxies.Staged)
				r.Post("/claim/finalize", d.Handlers.Proxies.Finalize)
				r.Delete("/claim", d.Handlers.Proxies.Cancel)

				r.With(auth.RequireRole(string(users.RoleAdmin), string(users.RoleManager))).
					Post("/import", d.Handlers.Proxies.Import)
			})

			r.Route("/limits", func(r chi.Router) {
				r.Use(auth.RequireRole(string(users.RoleAdmin), string(users.RoleManager)))
				r.Post("/batch", d.Handlers.Limits.Batch)
				r.Post("/quick", d.Handlers.Limits.Quick)
			})

			r.Get("/usage/history", d.Handlers.Quota.History)
			r.Get("/export", d.Handlers.Export.Download)

			r.With(auth.RequireRole(string(users.RoleAdmin))).
				Get("/audit", d.Handlers.Audit.List)
		})
	})

	return r
}
