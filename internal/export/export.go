// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

// Package export renders permission matrices for review outside the dashboard.
//
// A Matrix has one row per (module, action) cell in schema order and one
// column per permission set, typically one per role.
package export

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/assetdesk/assetdesk/internal/access"
)

// Format names an output encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatYAML, FormatXLSX}
}

// ParseFormat converts a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", oops.In("export").Code("UNKNOWN_FORMAT").With("format", s).Errorf("unknown export format %q", s)
}

// Row is one permission cell across all columns.
type Row struct {
	Module  access.Module `json:"module" yaml:"module"`
	Action  access.Action `json:"action" yaml:"action"`
	Allowed []bool        `json:"allowed" yaml:"allowed"`
}

// Matrix is a permission table.
type Matrix struct {
	Columns []string `json:"columns" yaml:"columns"`
	Rows    []Row    `json:"rows" yaml:"rows"`
}

// Column pairs a column name with its permission set.
type Column struct {
	Name        string
	Permissions access.PermissionSet
}

// Build lays out columns over every cell the schema declares. Cells missing
// from a column's set are false.
func Build(schema *access.Schema, columns ...Column) Matrix {
	m := Matrix{Columns: make([]string, 0, len(columns))}
	for _, c := range columns {
		m.Columns = append(m.Columns, c.Name)
	}
	for _, mod := range schema.Modules() {
		for _, act := range schema.ListActions(mod) {
			row := Row{Module: mod, Action: act, Allowed: make([]bool, len(columns))}
			for i, c := range columns {
				row.Allowed[i] = c.Permissions.Allowed(mod, act)
			}
			m.Rows = append(m.Rows, row)
		}
	}
	return m
}

// Defaults builds the role default matrix with one column per role.
func Defaults(resolver *access.Resolver) Matrix {
	roles := access.Roles()
	cols := make([]Column, 0, len(roles))
	for _, r := range roles {
		cols = append(cols, Column{Name: string(r), Permissions: resolver.Default(r)})
	}
	return Build(resolver.Schema(), cols...)
}

// Write encodes m to w.
func Write(w io.Writer, m Matrix, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(m); err != nil {
			return oops.In("export").Code("EXPORT_FAILED").With("format", f).Wrap(err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return oops.In("export").Code("EXPORT_FAILED").With("format", f).Wrap(err)
		}
		if err := enc.Close(); err != nil {
			return oops.In("export").Code("EXPORT_FAILED").With("format", f).Wrap(err)
		}
		return nil
	case FormatXLSX:
		return writeXLSX(w, m)
	default:
		return oops.In("export").Code("UNKNOWN_FORMAT").With("format", f).Errorf("unknown export format %q", f)
	}
}
