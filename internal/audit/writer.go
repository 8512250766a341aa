// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"

	"github.com/assetdesk/assetdesk/internal/xdg"
)

// SlogWriter writes entries as structured log records at warn level.
type SlogWriter struct {
	logger *slog.Logger
}

// NewSlogWriter creates a SlogWriter. A nil logger uses slog.Default.
func NewSlogWriter(logger *slog.Logger) *SlogWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogWriter{logger: logger}
}

// Write implements Writer.
func (w *SlogWriter) Write(ctx context.Context, e Entry) error {
	w.logger.LogAttrs(ctx, slog.LevelWarn, "access denied",
		slog.String("audit_id", e.ID.String()),
		slog.String("user_id", e.UserID),
		slog.String("role", e.Role),
		slog.String("module", e.Module),
		slog.String("action", e.Action),
		slog.String("view", e.View),
		slog.String("reason", e.Reason),
	)
	return nil
}

// Close implements Writer.
func (w *SlogWriter) Close() error {
	return nil
}

// JSONLWriter appends one JSON document per entry to a file.
type JSONLWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLWriter opens path for appending, creating the file and its parent
// directory as needed.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	if path == "" {
		return nil, oops.In("audit").Code("INVALID_CONFIG").Errorf("audit path cannot be empty")
	}
	if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, oops.In("audit").Code("AUDIT_OPEN_FAILED").With("path", path).Wrap(err)
	}
	//nolint:gosec // path comes from operator configuration
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, oops.In("audit").Code("AUDIT_OPEN_FAILED").With("path", path).Wrap(err)
	}
	return &JSONLWriter{file: f, enc: json.NewEncoder(f)}, nil
}

// Write implements Writer.
func (w *JSONLWriter) Write(_ context.Context, e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(e); err != nil {
		return oops.In("audit").Code("AUDIT_WRITE_FAILED").Wrap(err)
	}
	return nil
}

// Close implements Writer.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return oops.In("audit").Code("AUDIT_CLOSE_FAILED").Wrap(err)
	}
	if err := w.file.Close(); err != nil {
		return oops.In("audit").Code("AUDIT_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
