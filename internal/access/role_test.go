// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package access_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetdesk/assetdesk/internal/access"
	"github.com/assetdesk/assetdesk/pkg/errutil"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    access.Role
		wantErr bool
	}{
		{"portal", access.RolePortal, false},
		{" Admin ", access.RoleAdmin, false},
		{"SUPERUSER", access.RoleSuperuser, false},
		{"user", access.RoleUser, false},
		{"root", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := access.ParseRole(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "UNKNOWN_ROLE")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserContext(t *testing.T) {
	_, ok := access.UserFromContext(context.Background())
	assert.False(t, ok)

	u := access.User{ID: "u-1", Role: access.RoleUser}
	got, ok := access.UserFromContext(access.WithUser(context.Background(), u))
	require.True(t, ok)
	assert.Equal(t, u, got)
}
