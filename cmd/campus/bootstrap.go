package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"campus/cmd/internal/app"
)

// BootstrapPasswordEnv supplies the admin password non-interactively.
// #nosec G101 -- not a credential; it's an environment variable name.
const BootstrapPasswordEnv = "CAMPUS_BOOTSTRAP_PASSWORD"

// NewBootstrapAdminCmd creates the bootstrap-admin subcommand.
func NewBootstrapAdminCmd() *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create an admin account directly in the database",
		Long: `Create an admin account. Account creation over HTTP is admin-only, so
the first admin must be created here. The password is read from
CAMPUS_BOOTSTRAP_PASSWORD or, when unset, from the first line of stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := app.LoadConfig()
			if cfg.DatabaseURL == "" {
				return oops.Code("CONFIG_INVALID").Errorf("CAMPUS_DATABASE_URL environment variable is required")
			}

			secret, err := readSecret(cmd)
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg, app.NewLogger(cfg.LogLevel, cfg.LogFormat))
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.BootstrapAdmin(cmd.Context(), name, email, secret)
			if err != nil {
				return err
			}
			cmd.Printf("Created admin %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "admin display name")
	cmd.Flags().StringVar(&email, "email", "", "admin login email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func readSecret(cmd *cobra.Command) (string, error) {
	if v, ok := os.LookupEnv(BootstrapPasswordEnv); ok && v != "" {
		return v, nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		if err != nil {
			return "", oops.Code("PASSWORD_REQUIRED").Wrap(err)
		}
		return "", oops.Code("PASSWORD_REQUIRED").Errorf("empty password")
	}
	return secret, nil
}
