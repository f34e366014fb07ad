package main

import (
	"database/sql"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the embedded schema migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd, func(rt *cliApp, db *sql.DB) error {
					return rt.app.Migrations().Up(cmd.Context(), db)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration of each module",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd, func(rt *cliApp, db *sql.DB) error {
					return rt.app.Migrations().Down(cmd.Context(), db)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd, func(rt *cliApp, db *sql.DB) error {
					statuses, err := rt.app.Migrations().Status(cmd.Context(), db)
					if err != nil {
						return err
					}
					return writeJSON(statuses)
				})
			},
		},
	)
	return cmd
}
