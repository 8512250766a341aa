// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

// Package accesstest provides test helpers for access control.
package accesstest

import (
	"context"
	"sync"

	"github.com/assetdesk/assetdesk/internal/access"
)

// StubStore is an OverrideStore with fixed contents and an optional failure.
type StubStore struct {
	mu        sync.Mutex
	Overrides map[string]access.Override // userID → stored override
	LoadErr   error
	SaveErr   error
	Loads     int
	Saved     map[string]access.Override
}

// NewStubStore creates a StubStore holding overrides.
func NewStubStore(overrides map[string]access.Override) *StubStore {
	if overrides == nil {
		overrides = make(map[string]access.Override)
	}
	return &StubStore{Overrides: overrides, Saved: make(map[string]access.Override)}
}

// LoadOverride implements access.OverrideStore.
func (s *StubStore) LoadOverride(_ context.Context, userID string) (access.Override, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Loads++
	if s.LoadErr != nil {
		return nil, false, s.LoadErr
	}
	o, ok := s.Overrides[userID]
	return o.Clone(), ok, nil
}

// SaveOverride implements access.OverrideStore.
func (s *StubStore) SaveOverride(_ context.Context, userID string, o access.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Overrides[userID] = o.Clone()
	s.Saved[userID] = o.Clone()
	return nil
}

// DeleteOverride implements access.OverrideStore.
func (s *StubStore) DeleteOverride(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	delete(s.Overrides, userID)
	return nil
}

// DenialRecorder collects denials passed to its Hook.
type DenialRecorder struct {
	mu      sync.Mutex
	denials []access.Denial
}

// Hook returns an access.DenialHook appending to the recorder.
func (r *DenialRecorder) Hook() access.DenialHook {
	return func(_ context.Context, d access.Denial) {
		r.mu.Lock()
		r.denials = append(r.denials, d)
		r.mu.Unlock()
	}
}

// Denials returns a copy of recorded denials.
func (r *DenialRecorder) Denials() []access.Denial {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]access.Denial(nil), r.denials...)
}

// NewUser returns an authenticated user with the given role.
func NewUser(id string, role access.Role) access.User {
	return access.User{ID: id, Role: role}
}

// Verify interfaces are satisfied.
var _ access.OverrideStore = (*StubStore)(nil)
