// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package access

import (
	"sort"
)

// Resolver merges per-user overrides over role defaults.
//
// Thread-safety: schema and table are immutable after construction, so a
// Resolver is safe for concurrent use without synchronization.
type Resolver struct {
	schema *Schema
	table  PolicyTable
}

// NewResolver creates a Resolver over schema and table.
// Returns MISSING_DEFAULT or UNKNOWN_DEFAULT if the table is not exactly
// total over the schema.
func NewResolver(schema *Schema, table PolicyTable) (*Resolver, error) {
	if err := CheckTable(schema, table); err != nil {
		return nil, err
	}
	return &Resolver{schema: schema, table: table.Clone()}, nil
}

// NewDefaultResolver creates a Resolver over DefaultSchema and
// DefaultPolicyTable.
//
// Panics if the built-in table is incomplete (configuration bug).
func NewDefaultResolver() *Resolver {
	r, err := NewResolver(DefaultSchema(), DefaultPolicyTable())
	if err != nil {
		panic("incomplete default policy table: " + err.Error())
	}
	return r
}

// Schema returns the schema the resolver was built with.
func (r *Resolver) Schema() *Schema {
	return r.schema
}

// Default returns a copy of the role's default PermissionSet.
// Unknown roles get an all-false set.
func (r *Resolver) Default(role Role) PermissionSet {
	row, ok := r.table[role]
	if !ok {
		return r.schema.Full(false)
	}
	return row.Clone()
}

// Resolve returns the effective PermissionSet for role with override applied
// cell by cell. Cells the schema does not declare are dropped. The result is
// a fresh value; neither the table nor override is modified.
func (r *Resolver) Resolve(role Role, override Override) PermissionSet {
	effective := r.Default(role)
	for m, actions := range override {
		for a, v := range actions {
			if !r.schema.IsKnown(m, a) {
				continue
			}
			effective.Set(m, a, v)
		}
	}
	return effective
}

// Sanitize returns override restricted to cells the schema declares, along
// with the dropped keys in "module.action" form, sorted.
func (r *Resolver) Sanitize(override Override) (Override, []string) {
	clean := make(Override, len(override))
	var dropped []string
	for m, actions := range override {
		for a, v := range actions {
			if !r.schema.IsKnown(m, a) {
				dropped = append(dropped, string(m)+"."+string(a))
				continue
			}
			clean.Set(m, a, v)
		}
		if len(actions) == 0 && r.schema.ListActions(m) == nil {
			dropped = append(dropped, string(m))
		}
	}
	sort.Strings(dropped)
	return clean, dropped
}
