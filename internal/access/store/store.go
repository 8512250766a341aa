// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

// Package store provides access.OverrideStore backends.
//
// Every backend persists the override document in its wire form (see
// access.EncodeOverride), saves overwrite without merging, and loading a user
// who has never been customized reports absent rather than an error.
package store

import (
	"strings"

	"github.com/samber/oops"

	"github.com/assetdesk/assetdesk/internal/access"
)

// Error codes returned by backends.
const (
	CodeInvalidUserID    = "INVALID_USER_ID"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeNotMigrated      = "STORE_NOT_MIGRATED"
)

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return oops.In("store").Code(CodeInvalidUserID).Errorf("user id cannot be empty")
	}
	return nil
}

func unavailable(backend, operation, userID string, err error) error {
	return oops.In("store").
		Code(CodeStoreUnavailable).
		With("backend", backend).
		With("operation", operation).
		With("user_id", userID).
		Wrap(err)
}

// Compile-time interface checks.
var (
	_ access.OverrideStore = (*MemoryStore)(nil)
	_ access.OverrideStore = (*FileStore)(nil)
	_ access.OverrideStore = (*PostgresStore)(nil)
	_ access.OverrideStore = (*RedisStore)(nil)
	_ access.OverrideStore = (*RetryStore)(nil)
)
