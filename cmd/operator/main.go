// Package main provides the operator CLI for deployment and operations tasks.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/easeaico/companion/internal/config"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "operator",
	Short: "Deployment and operations CLI for the companion service",
	Long: `operator prepares and checks the companion database and environment.

Examples:
  operator migrate                      # Enable pgvector and migrate all tables
  operator schema                       # Execute all SQL files in migrations/
  operator schema --file 001_memory_indexes.sql   # Execute one migration file
  operator validate                     # Check env vars and database connectivity`,
	Version:       version,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("companion operator v%s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// databaseURL loads config with relaxed validation; operator commands only need DATABASE_URL.
func databaseURL() (string, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL environment variable is required")
	}
	return cfg.DatabaseURL, nil
}
