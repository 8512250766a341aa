// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package store

import (
	"context"
	"sync"

	"github.com/assetdesk/assetdesk/internal/access"
)

// MemoryStore keeps overrides in process memory. Values are copied on the
// way in and out, so callers never share maps with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	overrides map[string]access.Override
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{overrides: make(map[string]access.Override)}
}

// LoadOverride implements access.OverrideStore.
func (s *MemoryStore) LoadOverride(_ context.Context, userID string) (access.Override, bool, error) {
	if err := validateUserID(userID); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overrides[userID]
	if !ok {
		return nil, false, nil
	}
	return o.Clone(), true, nil
}

// SaveOverride implements access.OverrideStore.
func (s *MemoryStore) SaveOverride(_ context.Context, userID string, override access.Override) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	cp := override.Clone()
	if cp == nil {
		cp = access.Override{}
	}
	s.mu.Lock()
	s.overrides[userID] = cp
	s.mu.Unlock()
	return nil
}

// DeleteOverride implements access.OverrideStore.
func (s *MemoryStore) DeleteOverride(_ context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.overrides, userID)
	s.mu.Unlock()
	return nil
}
