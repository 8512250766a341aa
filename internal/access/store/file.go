// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package store

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"

	"github.com/assetdesk/assetdesk/internal/access"
)

const backendFile = "file"

// FileStore keeps one JSON override document per user in a directory.
// Writes go to a temporary file that is renamed into place, so a reader
// never observes a partially written document.
type FileStore struct {
	dir string
	mu  sync.Mutex // serializes writers within this process
}

// NewFileStore creates a FileStore rooted at dir, creating it with 0700
// permissions if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, oops.In("store").Code("INVALID_CONFIG").Errorf("file store directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, oops.In("store").Code(CodeStoreUnavailable).With("dir", dir).Wrap(err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding override documents.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(userID string) string {
	return filepath.Join(s.dir, url.PathEscape(userID)+".json")
}

// LoadOverride implements access.OverrideStore.
func (s *FileStore) LoadOverride(_ context.Context, userID string) (access.Override, bool, error) {
	if err := validateUserID(userID); err != nil {
		return nil, false, err
	}
	raw, err := os.ReadFile(s.path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable(backendFile, "load", userID, err)
	}
	o, err := access.DecodeOverride(raw)
	if err != nil {
		return nil, false, unavailable(backendFile, "decode", userID, err)
	}
	return o, true, nil
}

// SaveOverride implements access.OverrideStore.
func (s *FileStore) SaveOverride(_ context.Context, userID string, override access.Override) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	raw, err := access.EncodeOverride(override)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".override-*.tmp")
	if err != nil {
		return unavailable(backendFile, "save", userID, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return unavailable(backendFile, "save", userID, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return unavailable(backendFile, "save", userID, err)
	}
	if err := tmp.Close(); err != nil {
		return unavailable(backendFile, "save", userID, err)
	}
	if err := os.Rename(tmpName, s.path(userID)); err != nil {
		return unavailable(backendFile, "save", userID, err)
	}
	return nil
}

// DeleteOverride implements access.OverrideStore.
func (s *FileStore) DeleteOverride(_ context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(userID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return unavailable(backendFile, "delete", userID, err)
	}
	return nil
}
