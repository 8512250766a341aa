// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package access

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/samber/oops"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// PermissionSet maps module → action → granted. Absent cells are denials.
type PermissionSet map[Module]map[Action]bool

// Override is the sparse per-user patch persisted by an OverrideStore.
// It has the same shape as PermissionSet but may omit any cell.
type Override = PermissionSet

// Allowed reports whether the cell is present and true.
func (ps PermissionSet) Allowed(m Module, a Action) bool {
	row, ok := ps[m]
	if !ok {
		return false
	}
	return row[a]
}

// Lookup returns the cell value and whether it is defined.
func (ps PermissionSet) Lookup(m Module, a Action) (value, ok bool) {
	row, found := ps[m]
	if !found {
		return false, false
	}
	value, ok = row[a]
	return value, ok
}

// Set defines a cell, allocating the module row when needed.
func (ps PermissionSet) Set(m Module, a Action, value bool) {
	row, ok := ps[m]
	if !ok {
		row = make(map[Action]bool)
		ps[m] = row
	}
	row[a] = value
}

// Clone returns a deep copy. Cloning nil yields nil.
func (ps PermissionSet) Clone() PermissionSet {
	if ps == nil {
		return nil
	}
	out := make(PermissionSet, len(ps))
	for m, row := range ps {
		cp := make(map[Action]bool, len(row))
		for a, v := range row {
			cp[a] = v
		}
		out[m] = cp
	}
	return out
}

// Count returns the number of defined cells.
func (ps PermissionSet) Count() int {
	n := 0
	for _, row := range ps {
		n += len(row)
	}
	return n
}

// Equal reports whether both sets define the same cells with the same values.
func (ps PermissionSet) Equal(other PermissionSet) bool {
	if ps.Count() != other.Count() {
		return false
	}
	for m, row := range ps {
		for a, v := range row {
			ov, ok := other.Lookup(m, a)
			if !ok || ov != v {
				return false
			}
		}
	}
	return true
}

// overrideDocumentSchema describes the persisted wire shape: an object of
// module objects whose values are booleans. Key names are not constrained.
const overrideDocumentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "additionalProperties": {"type": "boolean"}
  }
}`

// OverrideDocumentSchema returns the JSON Schema override documents are
// validated against.
func OverrideDocumentSchema() []byte {
	return []byte(overrideDocumentSchema)
}

var (
	overrideSchemaOnce sync.Once
	overrideSchema     *jsonschema.Schema
	overrideSchemaErr  error
)

func compiledOverrideSchema() (*jsonschema.Schema, error) {
	overrideSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(overrideDocumentSchema)))
		if err != nil {
			overrideSchemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("override.json", doc); err != nil {
			overrideSchemaErr = err
			return
		}
		overrideSchema, overrideSchemaErr = c.Compile("override.json")
	})
	return overrideSchema, overrideSchemaErr
}

// ValidateOverrideDocument checks that raw is a well-formed override document.
// Unknown module or action keys are accepted; the resolver drops them.
func ValidateOverrideDocument(raw []byte) error {
	sch, err := compiledOverrideSchema()
	if err != nil {
		return oops.In("access").Code("INVALID_OVERRIDE_SCHEMA").Wrap(err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return oops.In("access").Code("INVALID_OVERRIDE").Wrapf(err, "override document is not valid JSON")
	}
	if err := sch.Validate(inst); err != nil {
		return oops.In("access").Code("INVALID_OVERRIDE").Wrapf(err, "override document has the wrong shape")
	}
	return nil
}

// DecodeOverride validates and decodes a persisted override document.
// An empty document or JSON null decodes to an empty override.
func DecodeOverride(raw []byte) (Override, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Override{}, nil
	}
	if err := ValidateOverrideDocument(trimmed); err != nil {
		return nil, err
	}
	var o Override
	if err := json.Unmarshal(trimmed, &o); err != nil {
		return nil, oops.In("access").Code("INVALID_OVERRIDE").Wrap(err)
	}
	return o, nil
}

// EncodeOverride renders an override in its persisted form. Output is
// deterministic because encoding/json sorts map keys.
func EncodeOverride(o Override) ([]byte, error) {
	if o == nil {
		o = Override{}
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, oops.In("access").Code("INVALID_OVERRIDE").Wrap(err)
	}
	return raw, nil
}
