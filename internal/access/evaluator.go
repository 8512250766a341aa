// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package access

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/assetdesk/assetdesk/internal/access"

// OverrideStore persists per-user overrides.
type OverrideStore interface {
	// LoadOverride returns the stored override for userID. The boolean is
	// false when the user has never been customized.
	LoadOverride(ctx context.Context, userID string) (Override, bool, error)

	// SaveOverride replaces the stored override for userID. It does not merge.
	SaveOverride(ctx context.Context, userID string, override Override) error

	// DeleteOverride removes the stored override. Deleting an absent override
	// is not an error.
	DeleteOverride(ctx context.Context, userID string) error
}

// Denial reasons.
const (
	ReasonPolicy            = "policy"
	ReasonUnknownPermission = "unknown_permission"
	ReasonUnknownView       = "unknown_view"
	ReasonUnauthenticated   = "unauthenticated"
)

// Denial describes a refused access check.
type Denial struct {
	User   User
	Module Module
	Action Action
	View   ViewID
	Reason string
}

// DenialHook is notified of every denial. It runs synchronously on the
// caller's goroutine and must not block.
type DenialHook func(ctx context.Context, d Denial)

// StoreErrorHook is notified when an override load fails and the evaluator
// falls back to the role default.
type StoreErrorHook func(ctx context.Context, userID string, err error)

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for store degradation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDenialHook registers a hook invoked on every denial.
func WithDenialHook(h DenialHook) Option {
	return func(e *Evaluator) {
		e.onDenial = h
	}
}

// WithStoreErrorHook registers a hook invoked on override load failures.
func WithStoreErrorHook(h StoreErrorHook) Option {
	return func(e *Evaluator) {
		e.onStoreError = h
	}
}

// WithViews replaces the view registry. Defaults to DefaultViews.
func WithViews(v *Views) Option {
	return func(e *Evaluator) {
		if v != nil {
			e.views = v
		}
	}
}

// Evaluator answers access queries for the presentation layer.
//
// Evaluator holds no mutable state; it is safe for concurrent use as long as
// the OverrideStore is.
type Evaluator struct {
	resolver     *Resolver
	store        OverrideStore
	views        *Views
	logger       *slog.Logger
	onDenial     DenialHook
	onStoreError StoreErrorHook
	tracer       trace.Tracer
}

// NewEvaluator creates an Evaluator. A nil store behaves as if no user has
// ever been customized.
func NewEvaluator(resolver *Resolver, store OverrideStore, opts ...Option) *Evaluator {
	e := &Evaluator{
		resolver: resolver,
		store:    store,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.views == nil {
		e.views = DefaultViews(resolver.Schema())
	}
	return e
}

// Resolver returns the evaluator's resolver.
func (e *Evaluator) Resolver() *Resolver {
	return e.resolver
}

// Views returns the evaluator's view registry.
func (e *Evaluator) Views() *Views {
	return e.views
}

// CanAccess reports whether user may perform action on module.
// Superusers are allowed unconditionally. Undeclared permissions are denied.
func (e *Evaluator) CanAccess(ctx context.Context, user User, m Module, a Action) bool {
	return e.decide(ctx, user, m, a, "")
}

// CanAccessView reports whether user may open view. Unknown views are
// denied; views with no requirement are open to any authenticated user.
func (e *Evaluator) CanAccessView(ctx context.Context, user User, view ViewID) bool {
	spec, ok := e.views.Lookup(view)
	if !ok {
		e.deny(ctx, Denial{User: user, View: view, Reason: ReasonUnknownView})
		return false
	}
	if spec.Requirement == nil {
		if !user.Authenticated() {
			e.deny(ctx, Denial{User: user, View: view, Reason: ReasonUnauthenticated})
			return false
		}
		return true
	}
	return e.decide(ctx, user, spec.Requirement.Module, spec.Requirement.Action, view)
}

// EffectivePermissions returns the complete PermissionSet user is evaluated
// against. Superusers get every schema cell set to true.
func (e *Evaluator) EffectivePermissions(ctx context.Context, user User) PermissionSet {
	if user.Role == RoleSuperuser {
		return e.resolver.Schema().Full(true)
	}
	return e.effective(ctx, user)
}

// VisibleViews returns the views user may open, in registry order. It resolves
// permissions once and reports no denials, so it suits navigation rendering.
func (e *Evaluator) VisibleViews(ctx context.Context, user User) []ViewID {
	if !user.Authenticated() {
		return nil
	}
	perms := e.EffectivePermissions(ctx, user)
	var visible []ViewID
	for _, id := range e.views.IDs() {
		spec, _ := e.views.Lookup(id)
		if spec.Requirement == nil || perms.Allowed(spec.Requirement.Module, spec.Requirement.Action) {
			visible = append(visible, id)
		}
	}
	return visible
}

// SaveOverride sanitizes override and stores it for userID, returning the
// keys dropped because the schema does not declare them.
func (e *Evaluator) SaveOverride(ctx context.Context, userID string, override Override) ([]string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, oops.In("access").Code("INVALID_USER_ID").Errorf("user id cannot be empty")
	}
	if e.store == nil {
		return nil, oops.In("access").Code("STORE_UNAVAILABLE").Errorf("no permission store configured")
	}
	clean, dropped := e.resolver.Sanitize(override)
	if err := e.store.SaveOverride(ctx, userID, clean); err != nil {
		storeErrorsTotal.WithLabelValues("save").Inc()
		return nil, oops.In("access").Code("OVERRIDE_SAVE_FAILED").With("user_id", userID).Wrap(err)
	}
	return dropped, nil
}

// ClearOverride removes userID's override so the role default applies again.
func (e *Evaluator) ClearOverride(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return oops.In("access").Code("INVALID_USER_ID").Errorf("user id cannot be empty")
	}
	if e.store == nil {
		return oops.In("access").Code("STORE_UNAVAILABLE").Errorf("no permission store configured")
	}
	if err := e.store.DeleteOverride(ctx, userID); err != nil {
		storeErrorsTotal.WithLabelValues("delete").Inc()
		return oops.In("access").Code("OVERRIDE_DELETE_FAILED").With("user_id", userID).Wrap(err)
	}
	return nil
}

func (e *Evaluator) decide(ctx context.Context, user User, m Module, a Action, view ViewID) bool {
	schema := e.resolver.Schema()

	// Superuser bypass happens before any lookup, including schema checks.
	if user.Role == RoleSuperuser {
		recordDecision(schema, m, resultBypass)
		return true
	}

	if !user.Authenticated() {
		recordDecision(schema, m, resultDeny)
		e.deny(ctx, Denial{User: user, Module: m, Action: a, View: view, Reason: ReasonUnauthenticated})
		return false
	}

	if !schema.IsKnown(m, a) {
		recordDecision(schema, m, resultDeny)
		e.deny(ctx, Denial{User: user, Module: m, Action: a, View: view, Reason: ReasonUnknownPermission})
		return false
	}

	if e.effective(ctx, user).Allowed(m, a) {
		recordDecision(schema, m, resultAllow)
		return true
	}

	recordDecision(schema, m, resultDeny)
	e.deny(ctx, Denial{User: user, Module: m, Action: a, View: view, Reason: ReasonPolicy})
	return false
}

// effective resolves user's permissions, degrading to the role default when
// the store cannot be read.
func (e *Evaluator) effective(ctx context.Context, user User) PermissionSet {
	start := time.Now()
	defer func() { recordResolve(time.Since(start)) }()

	override := e.loadOverride(ctx, user.ID)
	return e.resolver.Resolve(user.Role, override)
}

func (e *Evaluator) loadOverride(ctx context.Context, userID string) Override {
	if e.store == nil || userID == "" {
		return nil
	}

	ctx, span := e.tracer.Start(ctx, "access.LoadOverride",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	override, found, err := e.store.LoadOverride(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "override load failed")
		storeErrorsTotal.WithLabelValues("load").Inc()
		e.logger.WarnContext(ctx, "permission store unavailable, using role defaults",
			"user_id", userID,
			"error", err)
		if e.onStoreError != nil {
			e.onStoreError(ctx, userID, err)
		}
		return nil
	}
	span.SetAttributes(attribute.Bool("override.found", found))
	if !found {
		return nil
	}
	return override
}

func (e *Evaluator) deny(ctx context.Context, d Denial) {
	if e.onDenial != nil {
		e.onDenial(ctx, d)
	}
}
