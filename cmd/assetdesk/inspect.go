// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/assetdesk/assetdesk/internal/access"
	"github.com/assetdesk/assetdesk/internal/export"
)

// NewCheckCmd creates the check subcommand.
func NewCheckCmd(opts *rootOptions) *cobra.Command {
	var view string
	cmd := &cobra.Command{
		Use:   "check USER ROLE [MODULE ACTION]",
		Short: "Check one access decision",
		Long: `Check whether USER with ROLE may perform ACTION on MODULE, or open the view
named by --view. Prints "allowed" or "denied".`,
		Args: func(_ *cobra.Command, args []string) error {
			if view != "" && len(args) == 2 {
				return nil
			}
			if view == "" && len(args) == 4 {
				return nil
			}
			return oops.In("cli").Code("INVALID_ARGS").Errorf("expected USER ROLE MODULE ACTION, or USER ROLE with --view")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseUser(args[0], args[1])
			if err != nil {
				return err
			}
			return withEvaluator(cmd, opts, func(ctx context.Context, ev *access.Evaluator) error {
				var allowed bool
				if view != "" {
					allowed = ev.CanAccessView(ctx, user, access.ViewID(view))
				} else {
					allowed = ev.CanAccess(ctx, user, access.Module(args[2]), access.Action(args[3]))
				}
				result := "denied"
				if allowed {
					result = "allowed"
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), result)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&view, "view", "", "check a view instead of a module action")
	return cmd
}

// NewEffectiveCmd creates the effective subcommand.
func NewEffectiveCmd(opts *rootOptions) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "effective USER ROLE",
		Short: "Print a user's effective permissions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseUser(args[0], args[1])
			if err != nil {
				return err
			}
			return withEvaluator(cmd, opts, func(ctx context.Context, ev *access.Evaluator) error {
				m := export.Build(ev.Resolver().Schema(), export.Column{
					Name:        user.ID,
					Permissions: ev.EffectivePermissions(ctx, user),
				})
				return out.write(cmd, m)
			})
		},
	}
	out.register(cmd)
	return cmd
}

// NewDefaultsCmd creates the defaults subcommand.
func NewDefaultsCmd(_ *rootOptions) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Print the role default matrix",
		Long:  `Print every role's default permissions, one column per role.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return out.write(cmd, export.Defaults(access.NewDefaultResolver()))
		},
	}
	out.register(cmd)
	return cmd
}

type outputFlags struct {
	format string
	output string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", string(export.FormatJSON), "output format (json, yaml, xlsx)")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "output file (default: stdout)")
}

func (o *outputFlags) write(cmd *cobra.Command, m export.Matrix) error {
	format, err := export.ParseFormat(o.format)
	if err != nil {
		return err
	}
	if o.output == "" {
		if format == export.FormatXLSX {
			return oops.In("cli").Code("INVALID_ARGS").Errorf("xlsx output requires --output")
		}
		return export.Write(cmd.OutOrStdout(), m, format)
	}

	//nolint:gosec // output path is chosen by the operator
	f, err := os.Create(o.output)
	if err != nil {
		return oops.In("cli").Code("OUTPUT_FAILED").With("path", o.output).Wrap(err)
	}
	if err := export.Write(f, m, format); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return oops.In("cli").Code("OUTPUT_FAILED").With("path", o.output).Wrap(err)
	}
	cmd.Printf("Wrote %s\n", o.output)
	return nil
}

func parseUser(id, role string) (access.User, error) {
	r, err := access.ParseRole(role)
	if err != nil {
		return access.User{}, err
	}
	return access.User{ID: id, Role: r}, nil
}

// withEvaluator opens the configured store and runs fn with an evaluator
// over it. Denials are not audited from the CLI.
func withEvaluator(cmd *cobra.Command, opts *rootOptions, fn func(context.Context, *access.Evaluator) error) error {
	return withStore(cmd, opts, func(ctx context.Context, logger *slog.Logger, st *Store) error {
		return fn(ctx, newEvaluator(st, nil, logger))
	})
}

// withStore loads the configuration, sets up logging, opens the store, and
// runs fn.
func withStore(cmd *cobra.Command, opts *rootOptions, fn func(context.Context, *slog.Logger, *Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := setupLogging(cmd, cfg)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg, logger, nil)
	if err != nil {
		return oops.In("cli").Code("STORE_OPEN_FAILED").With("backend", cfg.Store.Backend).Wrap(err)
	}
	defer st.Close()
	return fn(ctx, logger, st)
}
