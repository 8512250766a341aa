// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"io"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/assetdesk/assetdesk/internal/access"
)

// NewOverrideCmd creates the override command group.
func NewOverrideCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Manage per-user permission overrides",
	}
	cmd.AddCommand(newOverrideGetCmd(opts))
	cmd.AddCommand(newOverrideSetCmd(opts))
	cmd.AddCommand(newOverrideClearCmd(opts))
	return cmd
}

func newOverrideGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get USER",
		Short: "Print a user's stored override",
		Long:  `Print USER's stored override document. Prints {} when none is stored.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, _ *slog.Logger, st *Store) error {
				o, _, err := st.LoadOverride(ctx, args[0])
				if err != nil {
					return err
				}
				if o == nil {
					o = access.Override{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(o)
			})
		},
	}
}

func newOverrideSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set USER FILE",
		Short: "Replace a user's override",
		Long: `Replace USER's override with the JSON document in FILE, or stdin when FILE
is "-". Keys the permission schema does not declare are dropped and listed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readDocument(cmd, args[1])
			if err != nil {
				return err
			}
			override, err := access.DecodeOverride(raw)
			if err != nil {
				return err
			}
			return withEvaluator(cmd, opts, func(ctx context.Context, ev *access.Evaluator) error {
				dropped, err := ev.SaveOverride(ctx, args[0], override)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, key := range dropped {
					if _, err := fmt.Fprintf(out, "dropped unknown permission %s\n", key); err != nil {
						return err
					}
				}
				_, err = fmt.Fprintf(out, "saved override for %s\n", args[0])
				return err
			})
		},
	}
}

func newOverrideClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear USER",
		Short: "Remove a user's override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvaluator(cmd, opts, func(ctx context.Context, ev *access.Evaluator) error {
				if err := ev.ClearOverride(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "cleared override for %s\n", args[0])
				return err
			})
		},
	}
}

func readDocument(cmd *cobra.Command, path string) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		//nolint:gosec // path is chosen by the operator
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, oops.In("cli").Code("INPUT_FAILED").With("path", path).Wrap(err)
	}
	return raw, nil
}
