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

func TestDefaultViews_ForRoute(t *testing.T) {
	views := access.DefaultViews(access.DefaultSchema())

	tests := []struct {
		path string
		want access.ViewID
		ok   bool
	}{
		{"/", "dashboard", true},
		{"/dashboard", "dashboard", true},
		{"/devices", "devices", true},
		{"/devices/", "devices", true},
		{"/devices/42/edit", "devices", true},
		{"/inventory/transactions", "inventory-transactions", true},
		{"/inventory/items/7", "inventory", true},
		{"/users/42/access-rights", "access-rights", true},
		{"/users/42", "users", true},
		{"/settings/system", "system-settings", true},
		{"/settings/backup/run", "backup", true},
		{"/settings/general", "settings", true},
		{"/development/logs", "system-logs", true},
		{"/ai-chat", "ai-chat", true},
		{"/unmapped", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := views.ForRoute(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewViews_Errors(t *testing.T) {
	schema := access.DefaultSchema()

	tests := []struct {
		name  string
		specs []access.ViewSpec
	}{
		{"empty id", []access.ViewSpec{{ID: ""}}},
		{"duplicate id", []access.ViewSpec{{ID: "a"}, {ID: "a"}}},
		{"undeclared requirement", []access.ViewSpec{{ID: "a", Requirement: &access.Requirement{Module: access.ModuleDevices, Action: "teleport"}}}},
		{"bad route", []access.ViewSpec{{ID: "a", Routes: []string{"/a/[unclosed"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := access.NewViews(schema, tt.specs...)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "INVALID_VIEW")
		})
	}
}

func TestDefaultViews_EveryRequirementIsDeclared(t *testing.T) {
	schema := access.DefaultSchema()
	views := access.DefaultViews(schema)

	for _, id := range views.IDs() {
		spec, ok := views.Lookup(id)
		require.True(t, ok)
		if spec.Requirement != nil {
			assert.True(t, schema.IsKnown(spec.Requirement.Module, spec.Requirement.Action), "view %s", id)
		}
	}
}
