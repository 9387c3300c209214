package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BradenHooton/useraccounts/internal/config"
	"github.com/BradenHooton/useraccounts/internal/database"
	"github.com/BradenHooton/useraccounts/internal/repositories"
	"github.com/BradenHooton/useraccounts/internal/services"
	pkglogger "github.com/BradenHooton/useraccounts/pkg/logger"
	"github.com/spf13/cobra"
)

func newCreateSuperuserCmd() *cobra.Command {
	var email, password, fullName string

	cmd := &cobra.Command{
		Use:   "create-superuser",
		Short: "Create an active superuser unless the email is already registered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("--email and --password (or ADMIN_PASSWORD) are required")
			}

			dbCfg, err := config.LoadDatabase()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger := pkglogger.New(os.Stdout, os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))

			db, err := database.NewConnection(dbCfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			// No sessions exist for a new account, so nothing needs invalidating
			users := newUserService(db, nil, logger)
			user, created, err := users.EnsureSuperuser(cmd.Context(), email, password, fullName)
			if err != nil {
				return fmt.Errorf("create superuser: %w", err)
			}

			if created {
				logger.Info("superuser created", slog.String("user_id", user.ID), slog.String("email", pkglogger.SanitizedEmail(user.Email)))
			} else {
				logger.Info("account already exists, left unchanged", slog.String("user_id", user.ID))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "superuser email")
	cmd.Flags().StringVar(&password, "password", "", "superuser password (defaults to ADMIN_PASSWORD)")
	cmd.Flags().StringVar(&fullName, "full-name", "Administrator", "display name")
	return cmd
}

func newUserService(db *database.DB, invalidator services.SessionInvalidator, logger *slog.Logger) *services.UserService {
	repoFor := func(tx database.DBTX) services.UserRepository {
		return repositories.NewUserRepository(tx)
	}
	return services.NewUserService(db, db.Pool, repoFor, invalidator, logger)
}
