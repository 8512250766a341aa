// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetdesk/assetdesk/internal/access"
	"github.com/assetdesk/assetdesk/pkg/errutil"
)

func TestDefaultPolicyTable_IsTotal(t *testing.T) {
	schema := access.DefaultSchema()
	table := access.DefaultPolicyTable()

	require.NoError(t, access.CheckTable(schema, table))

	for _, role := range access.Roles() {
		row := table[role]
		require.NotNil(t, row, "role %s has no row", role)
		for _, m := range schema.Modules() {
			for _, a := range schema.ListActions(m) {
				_, ok := row.Lookup(m, a)
				assert.True(t, ok, "%s.%s.%s is not defined", role, m, a)
			}
		}
	}
}

func TestCheckTable_ReportsMissingCell(t *testing.T) {
	table := access.DefaultPolicyTable()
	delete(table[access.RoleUser][access.ModuleTickets], access.ActionClose)

	err := access.CheckTable(access.DefaultSchema(), table)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MISSING_DEFAULT")
	assert.Contains(t, err.Error(), "user.tickets.close")
}

func TestCheckTable_ReportsMissingCellsSorted(t *testing.T) {
	table := access.DefaultPolicyTable()
	delete(table[access.RoleUser][access.ModuleTickets], access.ActionClose)
	delete(table[access.RoleAdmin][access.ModuleUsers], access.ActionDelete)
	delete(table[access.RoleAdmin][access.ModuleDevices], access.ActionView)

	err := access.CheckTable(access.DefaultSchema(), table)
	errutil.AssertErrorCode(t, err, "MISSING_DEFAULT")
	assert.Contains(t, err.Error(), "admin.devices.view, admin.users.delete, user.tickets.close")
}

func TestCheckTable_ReportsMissingRole(t *testing.T) {
	table := access.DefaultPolicyTable()
	delete(table, access.RolePortal)

	err := access.CheckTable(access.DefaultSchema(), table)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MISSING_DEFAULT")
}

func TestCheckTable_ReportsUnknownCell(t *testing.T) {
	table := access.DefaultPolicyTable()
	table[access.RoleAdmin].Set(access.ModuleDevices, "teleport", true)

	err := access.CheckTable(access.DefaultSchema(), table)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "UNKNOWN_DEFAULT")
}

func TestDefaultPolicyTable_ReturnsFreshCopy(t *testing.T) {
	a := access.DefaultPolicyTable()
	a[access.RoleUser].Set(access.ModuleDevices, access.ActionDelete, true)

	b := access.DefaultPolicyTable()
	assert.False(t, b[access.RoleUser].Allowed(access.ModuleDevices, access.ActionDelete))
}

func TestDefaultPolicyTable_BusinessRules(t *testing.T) {
	table := access.DefaultPolicyTable()

	tests := []struct {
		role   access.Role
		module access.Module
		action access.Action
		want   bool
	}{
		// portal
		{access.RolePortal, access.ModuleTickets, access.ActionView, true},
		{access.RolePortal, access.ModuleTickets, access.ActionCreate, true},
		{access.RolePortal, access.ModuleTickets, access.ActionEdit, true},
		{access.RolePortal, access.ModuleTickets, access.ActionDelete, false},
		{access.RolePortal, access.ModuleTickets, access.ActionAssign, false},
		{access.RolePortal, access.ModuleTickets, access.ActionClose, false},
		{access.RolePortal, access.ModuleDevices, access.ActionView, false},
		{access.RolePortal, access.ModuleAssets, access.ActionView, false},
		{access.RolePortal, access.ModuleUsers, access.ActionView, false},
		{access.RolePortal, access.ModuleMaintenance, access.ActionView, false},
		{access.RolePortal, access.ModuleReports, access.ActionView, false},
		{access.RolePortal, access.ModuleSettings, access.ActionView, true},
		{access.RolePortal, access.ModuleSettings, access.ActionEdit, false},
		{access.RolePortal, access.ModuleDevelopment, access.ActionSystemLogs, false},

		// user
		{access.RoleUser, access.ModuleDevices, access.ActionView, true},
		{access.RoleUser, access.ModuleDevices, access.ActionEdit, false},
		{access.RoleUser, access.ModuleAssets, access.ActionView, true},
		{access.RoleUser, access.ModuleAssets, access.ActionDelete, false},
		{access.RoleUser, access.ModuleInventory, access.ActionView, true},
		{access.RoleUser, access.ModuleInventory, access.ActionAdjustStock, false},
		{access.RoleUser, access.ModuleMaintenance, access.ActionView, true},
		{access.RoleUser, access.ModuleMaintenance, access.ActionSchedule, false},
		{access.RoleUser, access.ModuleReports, access.ActionView, true},
		{access.RoleUser, access.ModuleReports, access.ActionExport, false},
		{access.RoleUser, access.ModuleUsers, access.ActionView, false},
		{access.RoleUser, access.ModuleTickets, access.ActionView, true},
		{access.RoleUser, access.ModuleTickets, access.ActionCreate, true},
		{access.RoleUser, access.ModuleTickets, access.ActionEdit, false},
		{access.RoleUser, access.ModuleTickets, access.ActionClose, false},
		{access.RoleUser, access.ModuleSettings, access.ActionView, false},

		// admin
		{access.RoleAdmin, access.ModuleDevices, access.ActionDelete, true},
		{access.RoleAdmin, access.ModuleAssets, access.ActionExport, true},
		{access.RoleAdmin, access.ModuleInventory, access.ActionCreate, true},
		{access.RoleAdmin, access.ModuleUsers, access.ActionView, true},
		{access.RoleAdmin, access.ModuleUsers, access.ActionCreate, true},
		{access.RoleAdmin, access.ModuleUsers, access.ActionEdit, true},
		{access.RoleAdmin, access.ModuleUsers, access.ActionManageRoles, true},
		{access.RoleAdmin, access.ModuleUsers, access.ActionDelete, false},
		{access.RoleAdmin, access.ModuleTickets, access.ActionAssign, true},
		{access.RoleAdmin, access.ModuleTickets, access.ActionDelete, true},
		{access.RoleAdmin, access.ModuleMaintenance, access.ActionSchedule, true},
		{access.RoleAdmin, access.ModuleReports, access.ActionExport, true},
		{access.RoleAdmin, access.ModuleReports, access.ActionDelete, false},
		{access.RoleAdmin, access.ModuleSettings, access.ActionView, true},
		{access.RoleAdmin, access.ModuleSettings, access.ActionEdit, true},
		{access.RoleAdmin, access.ModuleSettings, access.ActionBackup, true},
		{access.RoleAdmin, access.ModuleSettings, access.ActionSystem, false},
		{access.RoleAdmin, access.ModuleDevelopment, access.ActionSystemLogs, true},
		{access.RoleAdmin, access.ModuleDevelopment, access.ActionSystemMonitoring, true},
		{access.RoleAdmin, access.ModuleDevelopment, access.ActionAPIAccess, false},
		{access.RoleAdmin, access.ModuleDevelopment, access.ActionDatabaseAccess, false},
		{access.RoleAdmin, access.ModuleDevelopment, access.ActionDebugging, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"."+string(tt.module)+"."+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, table[tt.role].Allowed(tt.module, tt.action))
		})
	}
}

func TestDefaultPolicyTable_SuperuserRowAllTrue(t *testing.T) {
	schema := access.DefaultSchema()
	row := access.DefaultPolicyTable()[access.RoleSuperuser]

	assert.True(t, row.Equal(schema.Full(true)))
}
