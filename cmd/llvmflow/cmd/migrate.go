package cmd

import (
	"errors"
	"fmt"

	"github.com/hellconnon/llvm-flow/internal/migrate"
	"github.com/hellconnon/llvm-flow/internal/store"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back schema revisions",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending schema revisions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, runner, err := openRunner()
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := runner.Up()
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		if n == 0 {
			fmt.Println("Database is up to date")
			return nil
		}

		current, err := runner.Current()
		if err != nil {
			return err
		}
		fmt.Printf("Applied %d revision(s), now at %s\n", n, current)
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent schema revision",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, runner, err := openRunner()
		if err != nil {
			return err
		}
		defer st.Close()

		rev, err := runner.Down()
		if errors.Is(err, migrate.ErrNothingToRollback) {
			fmt.Println("Nothing to roll back")
			return nil
		}
		if err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		fmt.Printf("Rolled back %s\n", rev)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current and pending schema revisions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, runner, err := openRunner()
		if err != nil {
			return err
		}
		defer st.Close()

		current, err := runner.Current()
		if err != nil {
			return err
		}
		if current == "" {
			current = "(none)"
		}
		fmt.Printf("Current revision: %s\n", current)

		pending, err := runner.Pending()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("No pending revisions")
			return nil
		}
		fmt.Printf("Pending revisions:\n")
		for _, m := range pending {
			fmt.Printf("  %s  %s\n", m.Revision, m.Name)
		}
		return nil
	},
}

func openRunner() (*store.Store, *migrate.Runner, error) {
	st, err := store.Open(GetConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	runner, err := st.Runner()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, runner, nil
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
