package cmd

import (
	"fmt"

	"github.com/hellconnon/llvm-flow/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "llvmflow",
	Short: "llvm-flow - manage the flow tracking database schema",
	Long: `llvm-flow maintains the relational schema backing the flow tracker:
identifiers (named compilation units), their source files, their recorded
compiler transform passes, and user accounts.

The migrate subcommands apply and roll back versioned schema revisions
against SQLite or PostgreSQL.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./llvmflow.yaml)")
}

func GetConfig() *config.Config {
	return cfg
}
