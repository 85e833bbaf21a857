package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"shadowledger/internal/infrastructure/postgres"
	"shadowledger/internal/shared/config"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "admin",
		Short:         "Shadow ledger admin CLI - management commands for the ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Duration("timeout", 5*time.Minute, "Timeout for the operation (e.g., 30s, 5m)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(createAccountCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(normalizeCmd())
	rootCmd.AddCommand(genAPIKeyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openDB parses the environment and connects. Only database settings are
// required here; commands validate the rest of what they use.
func openDB() (*config.Config, *postgres.DB, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString(), postgres.PoolConfig{MaxOpenConns: 4, MaxIdleConns: 1})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Connected to database")
	return cfg, db, nil
}

func timeoutFlag(cmd *cobra.Command) time.Duration {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil || timeout <= 0 {
		return 5 * time.Minute
	}
	return timeout
}
