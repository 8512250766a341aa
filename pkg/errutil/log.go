// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

// Package errutil renders oops errors for logs and tests.
package errutil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// Code returns the oops error code carried by err, or "" when err is nil,
// not an oops error, or has no code.
func Code(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code := oopsErr.Code()
	if code == nil {
		return ""
	}
	if s, ok := code.(string); ok {
		return s
	}
	return fmt.Sprint(code)
}

// LogError logs err at error level. Oops errors contribute their code and
// context as separate attributes so log pipelines can index them.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...slog.Attr) {
	all := make([]slog.Attr, 0, len(attrs)+3)
	all = append(all, attrs...)
	all = append(all, slog.String("error", err.Error()))
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := Code(err); code != "" {
			all = append(all, slog.String("code", code))
		}
		if kv := oopsErr.Context(); len(kv) > 0 {
			all = append(all, slog.Any("context", kv))
		}
	}
	logger.LogAttrs(ctx, slog.LevelError, msg, all...)
}
