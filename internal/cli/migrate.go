package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BradenHooton/useraccounts/internal/config"
	"github.com/BradenHooton/useraccounts/internal/database"
	pkglogger "github.com/BradenHooton/useraccounts/pkg/logger"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	for _, sub := range []struct{ use, short string }{
		{"up", "Apply all pending migrations"},
		{"down", "Roll back the most recent migration"},
		{"status", "Print the migration status"},
	} {
		command := sub.use
		cmd.AddCommand(&cobra.Command{
			Use:   command,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd, command)
			},
		})
	}

	return cmd
}

func runMigrate(cmd *cobra.Command, command string) error {
	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := pkglogger.New(os.Stdout, os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))

	if err := database.Migrate(cmd.Context(), dbCfg.DSN(), command, logger); err != nil {
		return err
	}
	logger.Info("migration finished", slog.String("command", command))
	return nil
}
