// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package access

import (
	"strings"

	"github.com/samber/oops"
)

// Module identifies a functional area of the dashboard.
type Module string

// Known modules.
const (
	ModuleDevices     Module = "devices"
	ModuleAssets      Module = "assets"
	ModuleInventory   Module = "inventory"
	ModuleUsers       Module = "users"
	ModuleTickets     Module = "tickets"
	ModuleMaintenance Module = "maintenance"
	ModuleReports     Module = "reports"
	ModuleSettings    Module = "settings"
	ModuleDevelopment Module = "development"
	ModuleContacts    Module = "contacts"
	ModuleCalendar    Module = "calendar"
	ModuleTasks       Module = "tasks"
	ModuleAIChat      Module = "aiChat"
	ModuleProjects    Module = "projects"
)

// Action is an operation within a module. Action names are scoped to the
// module that declares them; two modules may declare the same name.
type Action string

// Canonical actions shared by most modules.
const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
)

// Module-specific actions.
const (
	ActionAssign           Action = "assign"
	ActionClose            Action = "close"
	ActionSchedule         Action = "schedule"
	ActionManageRoles      Action = "manageRoles"
	ActionAdjustStock      Action = "adjustStock"
	ActionViewTransactions Action = "viewTransactions"
	ActionManageAlerts     Action = "manageAlerts"
	ActionSystem           Action = "system"
	ActionBackup           Action = "backup"
	ActionAPIAccess        Action = "apiAccess"
	ActionSystemLogs       Action = "systemLogs"
	ActionDatabaseAccess   Action = "databaseAccess"
	ActionDebugging        Action = "debugging"
	ActionSystemMonitoring Action = "systemMonitoring"
	ActionConfigure        Action = "configure"
	ActionManage           Action = "manage"
)

// ModuleSpec declares a module and the ordered actions it supports.
type ModuleSpec struct {
	Module  Module
	Actions []Action
}

// Schema is the catalog of every (module, action) pair known to the system.
// It is immutable after construction.
type Schema struct {
	order   []Module
	actions map[Module][]Action
	known   map[Module]map[Action]struct{}
}

var crud = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}

func withCRUD(extra ...Action) []Action {
	out := make([]Action, 0, len(crud)+len(extra))
	out = append(out, crud...)
	return append(out, extra...)
}

// DefaultModules returns the module catalog of the dashboard.
func DefaultModules() []ModuleSpec {
	return []ModuleSpec{
		{ModuleDevices, withCRUD(ActionExport)},
		{ModuleAssets, withCRUD(ActionExport)},
		{ModuleInventory, withCRUD(ActionExport, ActionAdjustStock, ActionViewTransactions, ActionManageAlerts)},
		{ModuleUsers, withCRUD(ActionManageRoles)},
		{ModuleTickets, withCRUD(ActionAssign, ActionClose)},
		{ModuleMaintenance, withCRUD(ActionSchedule)},
		{ModuleReports, withCRUD(ActionExport)},
		{ModuleSettings, []Action{ActionView, ActionEdit, ActionSystem, ActionBackup}},
		{ModuleDevelopment, []Action{ActionAPIAccess, ActionSystemLogs, ActionDatabaseAccess, ActionDebugging, ActionSystemMonitoring}},
		{ModuleContacts, withCRUD(ActionExport)},
		{ModuleCalendar, withCRUD()},
		{ModuleTasks, withCRUD()},
		{ModuleAIChat, []Action{ActionView, ActionConfigure}},
		{ModuleProjects, withCRUD(ActionManage)},
	}
}

// NewSchema builds a Schema from module declarations.
// Returns INVALID_SCHEMA for empty names or duplicate modules/actions.
func NewSchema(specs ...ModuleSpec) (*Schema, error) {
	s := &Schema{
		order:   make([]Module, 0, len(specs)),
		actions: make(map[Module][]Action, len(specs)),
		known:   make(map[Module]map[Action]struct{}, len(specs)),
	}
	for _, spec := range specs {
		if strings.TrimSpace(string(spec.Module)) == "" {
			return nil, oops.In("access").Code("INVALID_SCHEMA").Errorf("module name cannot be empty")
		}
		if _, dup := s.known[spec.Module]; dup {
			return nil, oops.In("access").Code("INVALID_SCHEMA").
				With("module", spec.Module).
				Errorf("duplicate module")
		}
		if len(spec.Actions) == 0 {
			return nil, oops.In("access").Code("INVALID_SCHEMA").
				With("module", spec.Module).
				Errorf("module declares no actions")
		}
		set := make(map[Action]struct{}, len(spec.Actions))
		for _, a := range spec.Actions {
			if strings.TrimSpace(string(a)) == "" {
				return nil, oops.In("access").Code("INVALID_SCHEMA").
					With("module", spec.Module).
					Errorf("action name cannot be empty")
			}
			if _, dup := set[a]; dup {
				return nil, oops.In("access").Code("INVALID_SCHEMA").
					With("module", spec.Module).
					With("action", a).
					Errorf("duplicate action")
			}
			set[a] = struct{}{}
		}
		s.order = append(s.order, spec.Module)
		s.actions[spec.Module] = append([]Action(nil), spec.Actions...)
		s.known[spec.Module] = set
	}
	return s, nil
}

// DefaultSchema returns the schema built from DefaultModules.
//
// Panics if the catalog is malformed, since that is a code bug.
func DefaultSchema() *Schema {
	s, err := NewSchema(DefaultModules()...)
	if err != nil {
		panic("invalid default module catalog: " + err.Error())
	}
	return s
}

// Modules returns the schema's modules in declaration order.
func (s *Schema) Modules() []Module {
	return append([]Module(nil), s.order...)
}

// ListActions returns the ordered actions a module declares, or nil for an
// unknown module.
func (s *Schema) ListActions(m Module) []Action {
	actions, ok := s.actions[m]
	if !ok {
		return nil
	}
	return append([]Action(nil), actions...)
}

// IsKnown reports whether the schema declares action on module.
func (s *Schema) IsKnown(m Module, a Action) bool {
	actions, ok := s.known[m]
	if !ok {
		return false
	}
	_, ok = actions[a]
	return ok
}

// Cells returns the total number of (module, action) pairs.
func (s *Schema) Cells() int {
	n := 0
	for _, actions := range s.actions {
		n += len(actions)
	}
	return n
}

// Full returns a PermissionSet with every cell of the schema set to value.
func (s *Schema) Full(value bool) PermissionSet {
	ps := make(PermissionSet, len(s.order))
	for _, m := range s.order {
		row := make(map[Action]bool, len(s.actions[m]))
		for _, a := range s.actions[m] {
			row[a] = value
		}
		ps[m] = row
	}
	return ps
}
