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

func TestNewResolver_RejectsIncompleteTable(t *testing.T) {
	table := access.DefaultPolicyTable()
	delete(table[access.RoleAdmin], access.ModuleProjects)

	_, err := access.NewResolver(access.DefaultSchema(), table)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MISSING_DEFAULT")
}

func TestResolver_NoOverrideYieldsRoleDefault(t *testing.T) {
	r := access.NewDefaultResolver()

	for _, role := range access.Roles() {
		t.Run(string(role), func(t *testing.T) {
			assert.True(t, r.Resolve(role, nil).Equal(access.DefaultPolicyTable()[role]))
		})
	}
}

func TestResolver_OverridePrecedence(t *testing.T) {
	r := access.NewDefaultResolver()
	override := access.Override{access.ModuleDevices: {access.ActionDelete: true}}

	got := r.Resolve(access.RoleUser, override)

	assert.True(t, got.Allowed(access.ModuleDevices, access.ActionDelete))
	def := r.Default(access.RoleUser)
	for _, a := range r.Schema().ListActions(access.ModuleDevices) {
		if a == access.ActionDelete {
			continue
		}
		assert.Equal(t, def.Allowed(access.ModuleDevices, a), got.Allowed(access.ModuleDevices, a), "devices.%s", a)
	}
}

func TestResolver_OverrideCanRevoke(t *testing.T) {
	r := access.NewDefaultResolver()
	override := access.Override{access.ModuleTickets: {access.ActionCreate: false}}

	got := r.Resolve(access.RolePortal, override)

	assert.False(t, got.Allowed(access.ModuleTickets, access.ActionCreate))
	assert.True(t, got.Allowed(access.ModuleTickets, access.ActionView))
}

func TestResolver_PartialOverrideIsNonDestructive(t *testing.T) {
	r := access.NewDefaultResolver()
	override := access.Override{access.ModuleTickets: {access.ActionAssign: true}}

	for _, role := range []access.Role{access.RolePortal, access.RoleUser, access.RoleAdmin} {
		t.Run(string(role), func(t *testing.T) {
			got := r.Resolve(role, override)
			def := r.Default(role)

			for _, m := range r.Schema().Modules() {
				for _, a := range r.Schema().ListActions(m) {
					if m == access.ModuleTickets && a == access.ActionAssign {
						assert.True(t, got.Allowed(m, a))
						continue
					}
					assert.Equal(t, def.Allowed(m, a), got.Allowed(m, a), "%s.%s", m, a)
				}
			}
		})
	}
}

func TestResolver_DropsUnknownKeys(t *testing.T) {
	r := access.NewDefaultResolver()
	override := access.Override{
		"legacyModule":      {access.ActionView: true},
		access.ModuleDevices: {"teleport": true, access.ActionEdit: true},
	}

	got := r.Resolve(access.RoleUser, override)

	assert.Equal(t, r.Schema().Cells(), got.Count())
	_, ok := got.Lookup("legacyModule", access.ActionView)
	assert.False(t, ok)
	_, ok = got.Lookup(access.ModuleDevices, "teleport")
	assert.False(t, ok)
	assert.True(t, got.Allowed(access.ModuleDevices, access.ActionEdit))
}

func TestResolver_Idempotent(t *testing.T) {
	r := access.NewDefaultResolver()
	override := access.Override{
		access.ModuleTickets:   {access.ActionClose: true},
		access.ModuleInventory: {access.ActionAdjustStock: true},
	}

	first, err := access.EncodeOverride(r.Resolve(access.RoleUser, override))
	require.NoError(t, err)
	second, err := access.EncodeOverride(r.Resolve(access.RoleUser, override))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolver_DoesNotMutateInputs(t *testing.T) {
	r := access.NewDefaultResolver()
	override := access.Override{access.ModuleDevices: {access.ActionDelete: true}}

	got := r.Resolve(access.RoleUser, override)
	got.Set(access.ModuleUsers, access.ActionDelete, true)

	assert.Equal(t, 1, override.Count())
	assert.False(t, r.Default(access.RoleUser).Allowed(access.ModuleUsers, access.ActionDelete))
	assert.False(t, r.Resolve(access.RoleUser, override).Allowed(access.ModuleUsers, access.ActionDelete))
}

func TestResolver_UnknownRoleIsAllFalse(t *testing.T) {
	r := access.NewDefaultResolver()

	got := r.Resolve("guest", nil)

	assert.True(t, got.Equal(r.Schema().Full(false)))
}

func TestResolver_Sanitize(t *testing.T) {
	r := access.NewDefaultResolver()
	override := access.Override{
		"legacyModule":      {access.ActionView: true},
		"emptyLegacy":       {},
		access.ModuleDevices: {"teleport": true, access.ActionEdit: true},
	}

	clean, dropped := r.Sanitize(override)

	assert.True(t, clean.Equal(access.Override{access.ModuleDevices: {access.ActionEdit: true}}))
	assert.Equal(t, []string{"devices.teleport", "emptyLegacy", "legacyModule.view"}, dropped)
}
