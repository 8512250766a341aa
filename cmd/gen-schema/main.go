// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

// Command gen-schema writes the configuration and override document JSON
// Schema files under schemas/.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/assetdesk/assetdesk/internal/access"
	"github.com/assetdesk/assetdesk/internal/config"
)

func main() {
	if err := run("schemas"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dir string) error {
	cfgSchema, err := config.GenerateSchema()
	if err != nil {
		return fmt.Errorf("generating config schema: %w", err)
	}
	files := map[string][]byte{
		"config.schema.json":   cfgSchema,
		"override.schema.json": access.OverrideDocumentSchema(),
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	for name, data := range files {
		outPath := filepath.Join(dir, name)
		if err := os.WriteFile(outPath, data, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		fmt.Printf("Generated %s\n", outPath)
	}
	return nil
}
