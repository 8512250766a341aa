// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package access

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/oops"
)

// PolicyTable maps each role to its complete default PermissionSet.
type PolicyTable map[Role]PermissionSet

// Every cell below is written out. An omitted cell is a bug that CheckTable
// reports, not an implicit denial.

func portalDefaults() PermissionSet {
	return PermissionSet{
		ModuleDevices:     {ActionView: false, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionExport: false},
		ModuleAssets:      {ActionView: false, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionExport: false},
		ModuleInventory:   {ActionView: false, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionExport: false, ActionAdjustStock: false, ActionViewTransactions: false, ActionManageAlerts: false},
		ModuleUsers:       {ActionView: false, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionManageRoles: false},
		ModuleTickets:     {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: false, ActionAssign: false, ActionClose: false},
		ModuleMaintenance: {ActionView: false, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionSchedule: false},
		ModuleReports:     {ActionView: false, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionExport: false},
		ModuleSettings:    {ActionView: true, ActionEdit: false, ActionSystem: false, ActionBackup: false},
		ModuleDevelopment: {ActionAPIAccess: false, ActionSystemLogs: false, ActionDatabaseAccess: false, ActionDebugging: false, ActionSystemMonitoring: false},
		ModuleContacts:    {ActionView: false, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionExport: false},
		ModuleCalendar:    {ActionView: false, ActionCreate: false, ActionEdit: false, ActionDelete: false},
		ModuleTasks:       {ActionView: false, ActionCreate: false, ActionEdit: false, ActionDelete: false},
		ModuleAIChat:      {ActionView: false, ActionConfigure: false},
		ModuleProjects:    {ActionView: false, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionManage: false},
	}
}

func userDefaults() PermissionSet {
	return PermissionSet{
		ModuleDevices:     {ActionView: true, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionExport: false},
		ModuleAssets:      {ActionView: true, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionExport: false},
		ModuleInventory:   {ActionView: true, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionExport: false, ActionAdjustStock: false, ActionViewTransactions: true, ActionManageAlerts: false},
		ModuleUsers:       {ActionView: false, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionManageRoles: false},
		ModuleTickets:     {ActionView: true, ActionCreate: true, ActionEdit: false, ActionDelete: false, ActionAssign: false, ActionClose: false},
		ModuleMaintenance: {ActionView: true, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionSchedule: false},
		ModuleReports:     {ActionView: true, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionExport: false},
		ModuleSettings:    {ActionView: false, ActionEdit: false, ActionSystem: false, ActionBackup: false},
		ModuleDevelopment: {ActionAPIAccess: false, ActionSystemLogs: false, ActionDatabaseAccess: false, ActionDebugging: false, ActionSystemMonitoring: false},
		ModuleContacts:    {ActionView: true, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionExport: false},
		ModuleCalendar:    {ActionView: true, ActionCreate: false, ActionEdit: false, ActionDelete: false},
		ModuleTasks:       {ActionView: true, ActionCreate: false, ActionEdit: false, ActionDelete: false},
		ModuleAIChat:      {ActionView: true, ActionConfigure: false},
		ModuleProjects:    {ActionView: true, ActionCreate: false, ActionEdit: false, ActionDelete: false, ActionManage: false},
	}
}

func adminDefaults() PermissionSet {
	return PermissionSet{
		ModuleDevices:   {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionExport: true},
		ModuleAssets:    {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionExport: true},
		ModuleInventory: {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionExport: true, ActionAdjustStock: true, ActionViewTransactions: true, ActionManageAlerts: true},
		// Deleting user accounts is reserved for superusers.
		ModuleUsers:       {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: false, ActionManageRoles: true},
		ModuleTickets:     {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionAssign: true, ActionClose: true},
		ModuleMaintenance: {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionSchedule: true},
		ModuleReports:     {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: false, ActionExport: true},
		// System-level settings are reserved for superusers.
		ModuleSettings:    {ActionView: true, ActionEdit: true, ActionSystem: false, ActionBackup: true},
		ModuleDevelopment: {ActionAPIAccess: false, ActionSystemLogs: true, ActionDatabaseAccess: false, ActionDebugging: false, ActionSystemMonitoring: true},
		ModuleContacts:    {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionExport: true},
		ModuleCalendar:    {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true},
		ModuleTasks:       {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true},
		ModuleAIChat:      {ActionView: true, ActionConfigure: true},
		ModuleProjects:    {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionManage: true},
	}
}

// superuserDefaults documents the superuser row for exports. The evaluator
// never consults it: superusers bypass the table entirely.
func superuserDefaults() PermissionSet {
	return PermissionSet{
		ModuleDevices:     {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionExport: true},
		ModuleAssets:      {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionExport: true},
		ModuleInventory:   {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionExport: true, ActionAdjustStock: true, ActionViewTransactions: true, ActionManageAlerts: true},
		ModuleUsers:       {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionManageRoles: true},
		ModuleTickets:     {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionAssign: true, ActionClose: true},
		ModuleMaintenance: {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionSchedule: true},
		ModuleReports:     {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionExport: true},
		ModuleSettings:    {ActionView: true, ActionEdit: true, ActionSystem: true, ActionBackup: true},
		ModuleDevelopment: {ActionAPIAccess: true, ActionSystemLogs: true, ActionDatabaseAccess: true, ActionDebugging: true, ActionSystemMonitoring: true},
		ModuleContacts:    {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionExport: true},
		ModuleCalendar:    {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true},
		ModuleTasks:       {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true},
		ModuleAIChat:      {ActionView: true, ActionConfigure: true},
		ModuleProjects:    {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionManage: true},
	}
}

// DefaultPolicyTable returns a fresh copy of the default policy for every role.
func DefaultPolicyTable() PolicyTable {
	return PolicyTable{
		RolePortal:    portalDefaults(),
		RoleUser:      userDefaults(),
		RoleAdmin:     adminDefaults(),
		RoleSuperuser: superuserDefaults(),
	}
}

// Clone returns a deep copy of the table.
func (t PolicyTable) Clone() PolicyTable {
	out := make(PolicyTable, len(t))
	for r, ps := range t {
		out[r] = ps.Clone()
	}
	return out
}

// CheckTable verifies that table defines every (role, module, action) cell of
// schema and nothing else. Returns MISSING_DEFAULT listing the missing cells,
// or UNKNOWN_DEFAULT listing cells the schema does not declare.
func CheckTable(schema *Schema, table PolicyTable) error {
	var missing, extra []string
	for _, r := range Roles() {
		row, ok := table[r]
		if !ok {
			missing = append(missing, fmt.Sprintf("%s.*", r))
			continue
		}
		for _, m := range schema.Modules() {
			for _, a := range schema.ListActions(m) {
				if _, ok := row.Lookup(m, a); !ok {
					missing = append(missing, fmt.Sprintf("%s.%s.%s", r, m, a))
				}
			}
		}
		for m, actions := range row {
			for a := range actions {
				if !schema.IsKnown(m, a) {
					extra = append(extra, fmt.Sprintf("%s.%s.%s", r, m, a))
				}
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return oops.In("access").Code("MISSING_DEFAULT").
			With("cells", missing).
			Errorf("default policy table is missing %d cells: %s", len(missing), strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return oops.In("access").Code("UNKNOWN_DEFAULT").
			With("cells", extra).
			Errorf("default policy table defines %d cells outside the schema: %s", len(extra), strings.Join(extra, ", "))
	}
	return nil
}
