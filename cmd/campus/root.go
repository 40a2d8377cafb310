package main

import (
	"github.com/spf13/cobra"

	"campus/cmd/internal/app"
)

// NewRootCmd creates the root command for the campus CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campus",
		Short: "Campus records server",
		Long: `campus serves authentication, course, attendance, fee and result
endpoints for admins, faculty and students. Configuration comes from
CAMPUS_* environment variables.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewBootstrapAdminCmd())

	return cmd
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server. Without CAMPUS_DATABASE_URL all data lives in
memory and is lost on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Serve(cmd.Context())
		},
	}
}
