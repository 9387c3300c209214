// Package cli defines the useraccounts command tree.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree. Running the binary without a
// subcommand starts the server.
func NewRootCmd() *cobra.Command {
	serve := newServeCmd()

	root := &cobra.Command{
		Use:           "useraccounts",
		Short:         "User account and bearer-token authentication service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	root.AddCommand(serve, newMigrateCmd(), newCreateSuperuserCmd())
	return root
}

// Execute runs the root command and exits non-zero on failure
func Execute(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}
