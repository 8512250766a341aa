// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

// Package api serves the authorization engine over HTTP for the dashboard
// frontend and the access-rights editor.
//
// Every route except /v1/schema requires a user placed on the request by the
// configured guard.Authenticator. Override management additionally requires
// users.manageRoles.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/assetdesk/assetdesk/internal/access"
	"github.com/assetdesk/assetdesk/internal/guard"
	"github.com/assetdesk/assetdesk/internal/observability"
)

// Engine is the evaluator surface the API needs. *access.Evaluator
// satisfies it.
type Engine interface {
	guard.Checker
	EffectivePermissions(ctx context.Context, user access.User) access.PermissionSet
	VisibleViews(ctx context.Context, user access.User) []access.ViewID
	SaveOverride(ctx context.Context, userID string, override access.Override) ([]string, error)
	ClearOverride(ctx context.Context, userID string) error
	Resolver() *access.Resolver
	Views() *access.Views
}

// maxBodyBytes bounds override documents.
const maxBodyBytes = 1 << 20

// Option configures the router.
type Option func(*handler)

// WithLogger sets the request error logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetrics records request counts and latency by route pattern.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *handler) {
		h.metrics = m
	}
}

// WithRateLimit limits each client to n requests per minute. Zero disables
// limiting.
func WithRateLimit(n int) Option {
	return func(h *handler) {
		h.rateLimit = n
	}
}

// WithAuthenticator replaces the default header authenticator.
func WithAuthenticator(a guard.Authenticator) Option {
	return func(h *handler) {
		if a != nil {
			h.auth = a
		}
	}
}

type handler struct {
	engine    Engine
	gate      *guard.Gate
	auth      guard.Authenticator
	validate  *validator.Validate
	logger    *slog.Logger
	metrics   *observability.Metrics
	rateLimit int
}

// NewRouter builds the API router.
func NewRouter(engine Engine, opts ...Option) http.Handler {
	h := &handler{
		engine:   engine,
		auth:     guard.HeaderAuthenticator{},
		validate: validator.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.gate = guard.NewGate(engine, engine.Views(), guard.WithGateLogger(h.logger))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if h.metrics != nil {
		r.Use(h.observe)
	}
	r.Use(h.gate.Authenticate(h.auth))
	if h.rateLimit > 0 {
		r.Use(httprate.Limit(h.rateLimit, time.Minute,
			httprate.WithKeyFuncs(rateLimitKey),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				guard.WriteError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests")
			}),
		))
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		guard.WriteError(w, http.StatusNotFound, CodeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		guard.WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/schema", h.getSchema)

		r.Group(func(r chi.Router) {
			r.Use(h.gate.RequireUser)
			r.Get("/defaults/{role}", h.getDefaults)
			r.Get("/me/permissions", h.getMyPermissions)
			r.Get("/me/views", h.getMyViews)
			r.Get("/check", h.check)
			r.Get("/views/{view}/check", h.checkView)
		})

		r.Route("/users/{id}/permissions", func(r chi.Router) {
			r.Use(h.gate.RequireAccess(access.ModuleUsers, access.ActionManageRoles))
			r.Get("/", h.getUserPermissions)
			r.Put("/", h.putUserOverride)
			r.Delete("/", h.deleteUserOverride)
		})
	})
	return r
}

// rateLimitKey buckets authenticated callers by user and the rest by IP.
func rateLimitKey(r *http.Request) (string, error) {
	if u, ok := access.UserFromContext(r.Context()); ok {
		if id := strings.TrimSpace(u.ID); id != "" {
			return "user:" + id, nil
		}
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

func (h *handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		var route string
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		h.metrics.ObserveRequest(route, r.Method, status, time.Since(start))
	})
}
