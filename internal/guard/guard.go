// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

// Package guard adapts the access evaluator to HTTP: middlewares that gate
// handlers on a (module, action) pair or a view, and render a JSON denial
// instead of calling the handler.
//
// Authentication is not performed here. An Authenticator extracts the user an
// upstream component already authenticated and Gate.Authenticate stores it on
// the request context.
package guard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/assetdesk/assetdesk/internal/access"
)

// Error codes written by guards.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeAccessDenied    = "ACCESS_DENIED"
	CodeUnknownView     = "UNKNOWN_VIEW"
)

// Checker is the evaluator surface guards need. *access.Evaluator satisfies it.
type Checker interface {
	CanAccess(ctx context.Context, user access.User, m access.Module, a access.Action) bool
	CanAccessView(ctx context.Context, user access.User, view access.ViewID) bool
}

// Authenticator extracts the already-authenticated user from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (access.User, bool)
}

// Default headers set by the authenticating proxy.
const (
	DefaultUserHeader = "X-User-ID"
	DefaultRoleHeader = "X-User-Role"
)

// HeaderAuthenticator trusts user and role headers set by an upstream
// authenticating proxy. It must only be exposed behind that proxy.
type HeaderAuthenticator struct {
	UserHeader string
	RoleHeader string
}

// Authenticate implements Authenticator. Requests with a missing user id or
// unknown role are treated as unauthenticated.
func (h HeaderAuthenticator) Authenticate(r *http.Request) (access.User, bool) {
	userHeader, roleHeader := h.UserHeader, h.RoleHeader
	if userHeader == "" {
		userHeader = DefaultUserHeader
	}
	if roleHeader == "" {
		roleHeader = DefaultRoleHeader
	}
	id := strings.TrimSpace(r.Header.Get(userHeader))
	if id == "" {
		return access.User{}, false
	}
	role, err := access.ParseRole(r.Header.Get(roleHeader))
	if err != nil {
		return access.User{}, false
	}
	return access.User{ID: id, Role: role}, true
}

// Gate builds guard middlewares around a Checker.
type Gate struct {
	checker Checker
	views   *access.Views
	logger  *slog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateLogger sets the logger for denial debug logs.
func WithGateLogger(l *slog.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGate creates a Gate. views resolves request paths for RequireRoutedView
// and may be nil if that middleware is not used.
func NewGate(checker Checker, views *access.Views, opts ...GateOption) *Gate {
	g := &Gate{checker: checker, views: views, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate stores the user returned by auth on the request context.
// Requests without a user pass through unchanged; the guards reject them.
func (g *Gate) Authenticate(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u, ok := auth.Authenticate(r); ok {
				r = r.WithContext(access.WithUser(r.Context(), u))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests without an authenticated user with 401.
func (g *Gate) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := g.user(w, r); !ok {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAccess allows the request only if the user may perform action on
// module. Missing users get 401, denied users 403.
func (g *Gate) RequireAccess(m access.Module, a access.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := g.user(w, r)
			if !ok {
				return
			}
			if !g.checker.CanAccess(r.Context(), u, m, a) {
				g.logger.DebugContext(r.Context(), "access denied",
					"user_id", u.ID, "module", m, "action", a, "path", r.URL.Path)
				WriteError(w, http.StatusForbidden, CodeAccessDenied, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireView allows the request only if the user may open view.
func (g *Gate) RequireView(view access.ViewID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serveView(w, r, next, view)
		})
	}
}

// RequireRoutedView resolves the request path to a view and applies
// RequireView. Paths no view claims are denied with 404.
func (g *Gate) RequireRoutedView(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.views == nil {
			WriteError(w, http.StatusNotFound, CodeUnknownView, "no view registry configured")
			return
		}
		view, ok := g.views.ForRoute(r.URL.Path)
		if !ok {
			WriteError(w, http.StatusNotFound, CodeUnknownView, "no view serves this path")
			return
		}
		g.serveView(w, r, next, view)
	})
}

// Can reports whether the request's user may perform action on module. It is
// the render-gate helper for handlers that omit controls instead of failing.
func (g *Gate) Can(r *http.Request, m access.Module, a access.Action) bool {
	u, ok := access.UserFromContext(r.Context())
	if !ok {
		return false
	}
	return g.checker.CanAccess(r.Context(), u, m, a)
}

func (g *Gate) serveView(w http.ResponseWriter, r *http.Request, next http.Handler, view access.ViewID) {
	u, ok := g.user(w, r)
	if !ok {
		return
	}
	if !g.checker.CanAccessView(r.Context(), u, view) {
		g.logger.DebugContext(r.Context(), "view denied",
			"user_id", u.ID, "view", view, "path", r.URL.Path)
		WriteError(w, http.StatusForbidden, CodeAccessDenied, "access denied")
		return
	}
	next.ServeHTTP(w, r)
}

func (g *Gate) user(w http.ResponseWriter, r *http.Request) (access.User, bool) {
	u, ok := access.UserFromContext(r.Context())
	if !ok || !u.Authenticated() {
		WriteError(w, http.StatusUnauthorized, CodeUnauthenticated, "authentication required")
		return access.User{}, false
	}
	return u, true
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may have disconnected
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Code: code})
}
