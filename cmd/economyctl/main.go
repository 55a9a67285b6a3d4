// economyctl is the operator CLI: schema migration control against a running
// database, outside the service process.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/capawawa/growmies-economy/internal/infra/logging"
	"github.com/capawawa/growmies-economy/internal/infra/pgutils"
	"github.com/capawawa/growmies-economy/internal/migrate"
)

func main() {
	logging.SetupText(slog.LevelInfo)

	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dsn string

	root := &cobra.Command{
		Use:           "economyctl",
		Short:         "Operator tooling for the economy service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&dsn, "dsn", os.Getenv("PG_DSN"), "postgres DSN (defaults to PG_DSN)")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Schema migration control",
	}

	migrateCmd.AddCommand(
		newMigrateUpCmd(&dsn),
		newMigrateRollbackCmd(&dsn),
		newMigrateStatusCmd(&dsn),
	)

	root.AddCommand(migrateCmd)

	return root
}

func newRunner(cmd *cobra.Command, dsn string) (*migrate.Runner, func(), error) {
	if dsn == "" {
		return nil, nil, fmt.Errorf("no DSN: pass --dsn or set PG_DSN")
	}

	db, err := pgutils.OpenDB(cmd.Context(), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}

	return migrate.NewRunner(db), func() { _ = db.Close() }, nil
}

func newMigrateUpCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, done, err := newRunner(cmd, *dsn)
			if err != nil {
				return err
			}
			defer done()

			applied, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}

			cmd.Printf("applied %d migration(s)\n", applied)

			return nil
		},
	}
}

func newMigrateRollbackCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Reverse the most recent migration (destructive)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, done, err := newRunner(cmd, *dsn)
			if err != nil {
				return err
			}
			defer done()

			name, err := runner.RollbackLast(cmd.Context())
			if err != nil {
				return err
			}

			cmd.Printf("rolled back %s\n", name)

			return nil
		},
	}
}

func newMigrateStatusCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, done, err := newRunner(cmd, *dsn)
			if err != nil {
				return err
			}
			defer done()

			applied, err := runner.History(cmd.Context())
			if err != nil {
				return err
			}

			pending, err := runner.Pending(cmd.Context())
			if err != nil {
				return err
			}

			for _, a := range applied {
				cmd.Printf("applied  %-40s %s (%s)\n", a.Name, a.ExecutedAt.Format("2006-01-02 15:04:05"), a.Duration)
			}

			for _, name := range pending {
				cmd.Printf("pending  %s\n", name)
			}

			return nil
		},
	}
}
