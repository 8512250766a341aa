// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package access

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// ViewID identifies a routed view of the dashboard.
type ViewID string

// Requirement is the (module, action) pair a view needs.
type Requirement struct {
	Module Module
	Action Action
}

// ViewSpec declares a view. A nil Requirement means any authenticated user
// may open the view. Routes are glob patterns over request paths using '/'
// as the separator.
type ViewSpec struct {
	ID          ViewID
	Requirement *Requirement
	Routes      []string
}

// Views is an immutable registry of view declarations.
type Views struct {
	specs  map[ViewID]ViewSpec
	order  []ViewID
	routes []compiledRoute
}

type compiledRoute struct {
	view    ViewID
	pattern string
	glob    glob.Glob
}

func requires(m Module, a Action) *Requirement {
	return &Requirement{Module: m, Action: a}
}

// DefaultViewSpecs returns the dashboard's view catalog.
func DefaultViewSpecs() []ViewSpec {
	return []ViewSpec{
		{ID: "dashboard", Routes: []string{"/", "/dashboard"}},
		{ID: "profile", Routes: []string{"/profile", "/profile/**"}},
		{ID: "devices", Requirement: requires(ModuleDevices, ActionView), Routes: []string{"/devices", "/devices/**"}},
		{ID: "assets", Requirement: requires(ModuleAssets, ActionView), Routes: []string{"/assets", "/assets/**"}},
		{ID: "inventory-transactions", Requirement: requires(ModuleInventory, ActionViewTransactions), Routes: []string{"/inventory/transactions", "/inventory/transactions/**"}},
		{ID: "inventory", Requirement: requires(ModuleInventory, ActionView), Routes: []string{"/inventory", "/inventory/**"}},
		{ID: "access-rights", Requirement: requires(ModuleUsers, ActionManageRoles), Routes: []string{"/users/access-rights", "/users/*/access-rights"}},
		{ID: "users", Requirement: requires(ModuleUsers, ActionView), Routes: []string{"/users", "/users/**"}},
		{ID: "tickets", Requirement: requires(ModuleTickets, ActionView), Routes: []string{"/tickets", "/tickets/**"}},
		{ID: "maintenance", Requirement: requires(ModuleMaintenance, ActionView), Routes: []string{"/maintenance", "/maintenance/**"}},
		{ID: "reports", Requirement: requires(ModuleReports, ActionView), Routes: []string{"/reports", "/reports/**"}},
		{ID: "system-settings", Requirement: requires(ModuleSettings, ActionSystem), Routes: []string{"/settings/system", "/settings/system/**"}},
		{ID: "backup", Requirement: requires(ModuleSettings, ActionBackup), Routes: []string{"/settings/backup", "/settings/backup/**"}},
		{ID: "settings", Requirement: requires(ModuleSettings, ActionView), Routes: []string{"/settings", "/settings/**"}},
		{ID: "system-logs", Requirement: requires(ModuleDevelopment, ActionSystemLogs), Routes: []string{"/development/logs", "/development/logs/**"}},
		{ID: "development", Requirement: requires(ModuleDevelopment, ActionSystemMonitoring), Routes: []string{"/development", "/development/**"}},
		{ID: "contacts", Requirement: requires(ModuleContacts, ActionView), Routes: []string{"/contacts", "/contacts/**"}},
		{ID: "calendar", Requirement: requires(ModuleCalendar, ActionView), Routes: []string{"/calendar", "/calendar/**"}},
		{ID: "tasks", Requirement: requires(ModuleTasks, ActionView), Routes: []string{"/tasks", "/tasks/**"}},
		{ID: "ai-chat", Requirement: requires(ModuleAIChat, ActionView), Routes: []string{"/ai-chat", "/ai-chat/**"}},
		{ID: "projects", Requirement: requires(ModuleProjects, ActionView), Routes: []string{"/projects", "/projects/**"}},
	}
}

// NewViews builds a registry. Route patterns are matched in declaration
// order, so more specific routes must be declared before broader ones.
//
// Returns INVALID_VIEW for empty or duplicate IDs, requirements the schema
// does not declare, or routes that fail to compile.
func NewViews(schema *Schema, specs ...ViewSpec) (*Views, error) {
	v := &Views{specs: make(map[ViewID]ViewSpec, len(specs))}
	for _, spec := range specs {
		if strings.TrimSpace(string(spec.ID)) == "" {
			return nil, oops.In("access").Code("INVALID_VIEW").Errorf("view id cannot be empty")
		}
		if _, dup := v.specs[spec.ID]; dup {
			return nil, oops.In("access").Code("INVALID_VIEW").With("view", spec.ID).Errorf("duplicate view")
		}
		if req := spec.Requirement; req != nil && !schema.IsKnown(req.Module, req.Action) {
			return nil, oops.In("access").Code("INVALID_VIEW").
				With("view", spec.ID).
				With("module", req.Module).
				With("action", req.Action).
				Errorf("view requires an undeclared permission")
		}
		for _, route := range spec.Routes {
			g, err := glob.Compile(route, '/')
			if err != nil {
				return nil, oops.In("access").Code("INVALID_VIEW").
					With("view", spec.ID).
					With("route", route).
					Wrap(err)
			}
			v.routes = append(v.routes, compiledRoute{view: spec.ID, pattern: route, glob: g})
		}
		v.specs[spec.ID] = spec
		v.order = append(v.order, spec.ID)
	}
	return v, nil
}

// DefaultViews builds the registry from DefaultViewSpecs against schema.
//
// Panics if the catalog is invalid, since that is a code bug.
func DefaultViews(schema *Schema) *Views {
	v, err := NewViews(schema, DefaultViewSpecs()...)
	if err != nil {
		panic("invalid default view catalog: " + err.Error())
	}
	return v
}

// Lookup returns the declaration for id.
func (v *Views) Lookup(id ViewID) (ViewSpec, bool) {
	spec, ok := v.specs[id]
	return spec, ok
}

// IDs returns view IDs in declaration order.
func (v *Views) IDs() []ViewID {
	return append([]ViewID(nil), v.order...)
}

// ForRoute returns the first view whose route pattern matches path.
func (v *Views) ForRoute(path string) (ViewID, bool) {
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	for _, r := range v.routes {
		if r.glob.Match(path) {
			return r.view, true
		}
	}
	return "", false
}
