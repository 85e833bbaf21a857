package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"shadowledger/internal/domain/account"
	"shadowledger/internal/domain/notification"
	"shadowledger/internal/domain/paymenthash"
	"shadowledger/internal/domain/reconciliation"
	"shadowledger/internal/domain/transaction"
	"shadowledger/internal/domain/webhook"
	"shadowledger/internal/infrastructure/crypto"
	"shadowledger/internal/infrastructure/lnd"
	"shadowledger/internal/infrastructure/postgres"
	"shadowledger/internal/infrastructure/postgres/listener"
	"shadowledger/internal/infrastructure/postgres/migrations"
	"shadowledger/internal/shared/auth"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag(cmd))
			defer cancel()

			applied, err := migrations.Run(ctx, db.DB)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("Schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Printf("Applied %s\n", v)
			}
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	var signal bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation tick against the node",
		Long: `Run one reconciliation tick in-process and dispatch the resulting events.

With --signal the tick is not run here; instead a reconcile_requested
notification is sent so the running API server ticks immediately.

Examples:
  admin reconcile
  admin reconcile --signal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag(cmd))
			defer cancel()

			if signal {
				if err := listener.Signal(ctx, db.DB); err != nil {
					return err
				}
				fmt.Println("Reconcile requested")
				return nil
			}

			if err := cfg.LND.Validate(); err != nil {
				return err
			}
			encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
			if err != nil {
				return err
			}

			accountRepo := postgres.NewAccountRepository(db)
			txs := transaction.NewService(postgres.NewTransactionRepository(db))
			webhooks := webhook.NewService(postgres.NewWebhookRepository(db, encryptor), nil)

			pattern, err := account.CompilePattern(cfg.Accounts.MemoPattern)
			if err != nil {
				return fmt.Errorf("invalid account memo pattern: %w", err)
			}
			resolver, err := account.NewResolver(accountRepo, pattern, cfg.Accounts.DefaultAccountName)
			if err != nil {
				return err
			}

			node, err := lnd.NewClient(lnd.Config{
				URL:          cfg.LND.RESTURL,
				MacaroonHex:  cfg.LND.MacaroonHex,
				MacaroonPath: cfg.LND.MacaroonPath,
				TLSCertPath:  cfg.LND.TLSCertPath,
				Timeout:      cfg.LND.Timeout,
			})
			if err != nil {
				return err
			}

			poller := reconciliation.NewPoller(node, txs, resolver, cfg.Poller.InvoiceLimit)
			start := time.Now()
			result, err := poller.Tick(ctx)
			if err != nil {
				return fmt.Errorf("reconcile tick failed: %w", err)
			}

			notification.NewDispatcher(webhooks, cfg.Webhooks.Timeout).NotifyAll(ctx, result.Events)

			fmt.Printf("Fetched:  %d\n", result.Fetched)
			fmt.Printf("Created:  %d\n", result.Created)
			fmt.Printf("Updated:  %d\n", result.Updated)
			fmt.Printf("Skipped:  %d\n", result.Skipped)
			fmt.Printf("Events:   %d\n", len(result.Events))
			for _, e := range result.Errors {
				fmt.Printf("  error: %s\n", e)
			}
			log.Printf("Reconcile completed in %v", time.Since(start))

			if len(result.Errors) > 0 {
				return fmt.Errorf("%d invoice(s) failed to reconcile", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&signal, "signal", false, "Ask the running API server to reconcile instead")
	return cmd
}

func createAccountCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create-account NAME",
		Short: "Create a ledger account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag(cmd))
			defer cancel()

			var desc *string
			if description != "" {
				desc = &description
			}

			acc, err := account.NewService(postgres.NewAccountRepository(db)).CreateAccount(ctx, args[0], desc)
			if err != nil {
				return err
			}
			fmt.Printf("Created account %q with ID %s\n", acc.Name, acc.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Account description")
	return cmd
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance ACCOUNT_ID",
		Short: "Print an account's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag(cmd))
			defer cancel()

			acc, err := account.NewService(postgres.NewAccountRepository(db)).RequireAccount(ctx, args[0])
			if err != nil {
				return err
			}
			balance, err := transaction.NewService(postgres.NewTransactionRepository(db)).Balance(ctx, acc.ID)
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s): %s sat\n", acc.Name, acc.ID, balance.String())
			return nil
		},
	}
}

func normalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize VALUE",
		Short: "Print the canonical hex form of a payment hash",
		Long: `Print the canonical form of a payment hash given in hex or base64.

Examples:
  admin normalize 0A1B2C...
  admin normalize q83vEjRWeJA=`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(paymenthash.Normalize(args[0]))
			return nil
		},
	}
}

func genAPIKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-api-key",
		Short: "Generate an API key and the API_KEY_HASH to configure",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := auth.GenerateAPIKey()
			if err != nil {
				return err
			}
			hash, err := auth.HashAPIKey(key)
			if err != nil {
				return err
			}
			fmt.Printf("API key:      %s\n", key)
			fmt.Printf("API_KEY_HASH: %s\n", hash)
			return nil
		},
	}
}
