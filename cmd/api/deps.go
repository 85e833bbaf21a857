package main

import (
	"context"
	"fmt"
	"log"

	"shadowledger/internal/domain/account"
	"shadowledger/internal/domain/notification"
	"shadowledger/internal/domain/payment"
	"shadowledger/internal/domain/reconciliation"
	"shadowledger/internal/domain/transaction"
	"shadowledger/internal/domain/webhook"
	"shadowledger/internal/infrastructure/crypto"
	"shadowledger/internal/infrastructure/firebase"
	"shadowledger/internal/infrastructure/lnd"
	"shadowledger/internal/infrastructure/postgres"
	"shadowledger/internal/infrastructure/postgres/listener"
	"shadowledger/internal/infrastructure/postgres/migrations"
	httphandlers "shadowledger/internal/interfaces/http"
	"shadowledger/internal/interfaces/scheduler"
	"shadowledger/internal/shared/auth"
	"shadowledger/internal/shared/config"
	"shadowledger/internal/shared/messages"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	Handlers *httphandlers.Handlers
	Verifier *auth.APIKeyVerifier

	// Background reconciliation; nil when polling is disabled.
	Scheduler *scheduler.Scheduler
	Listener  *listener.ReconcileListener
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString(), postgres.PoolConfig{})
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	applied, err := migrations.Run(ctx, db.DB)
	if err != nil {
		db.Close()
		return nil, err
	}
	if len(applied) > 0 {
		log.Printf("Applied migrations: %v", applied)
	}

	deps, err := build(ctx, cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return deps, nil
}

func build(ctx context.Context, cfg *config.Config, db *postgres.DB) (*Dependencies, error) {
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}

	verifier, err := auth.NewAPIKeyVerifier(cfg.Auth.APIKeyHash)
	if err != nil {
		return nil, err
	}

	// Repositories
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	webhookRepo := postgres.NewWebhookRepository(db, encryptor)

	// Domain services
	accountService := account.NewService(accountRepo)
	transactionService := transaction.NewService(transactionRepo)
	webhookService := webhook.NewService(webhookRepo, func(ctx context.Context, accountID string) error {
		_, err := accountService.RequireAccount(ctx, accountID)
		return err
	})

	pattern, err := account.CompilePattern(cfg.Accounts.MemoPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid account memo pattern: %w", err)
	}
	resolver, err := account.NewResolver(accountRepo, pattern, cfg.Accounts.DefaultAccountName)
	if err != nil {
		return nil, err
	}

	node, err := lnd.NewClient(lnd.Config{
		URL:          cfg.LND.RESTURL,
		MacaroonHex:  cfg.LND.MacaroonHex,
		MacaroonPath: cfg.LND.MacaroonPath,
		TLSCertPath:  cfg.LND.TLSCertPath,
		Timeout:      cfg.LND.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var opts []notification.Option
	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Printf("Warning: Failed to initialize Firebase alerts: %v", err)
		} else {
			opts = append(opts, notification.WithAlerts(fcm, cfg.Firebase.AlertTopic))
			texts, err := messages.Load(cfg.Firebase.MessagesFile)
			if err != nil {
				return nil, err
			}
			opts = append(opts, notification.WithAlertText(texts.PaymentFailed))
			log.Printf("Failure alerts enabled on topic %q", cfg.Firebase.AlertTopic)
		}
	}
	dispatcher := notification.NewDispatcher(webhookService, cfg.Webhooks.Timeout, opts...)

	paymentService := payment.NewService(node, accountService, transactionService, dispatcher, cfg.Payments.InvoiceExpiry)
	poller := reconciliation.NewPoller(node, transactionService, resolver, cfg.Poller.InvoiceLimit)

	deps := &Dependencies{DB: db, Verifier: verifier}

	var trigger func() error
	if cfg.Poller.Enabled {
		sched, err := scheduler.NewScheduler(scheduler.SchedulerConfig{
			Interval:     cfg.Poller.Interval,
			WorkerCount:  cfg.Poller.WorkerCount,
			QueueSize:    cfg.Poller.QueueSize,
			RunOnStartup: cfg.Poller.RunOnStartup,
			JobProvider:  scheduler.ReconcileJobProvider(poller, dispatcher),
		})
		if err != nil {
			return nil, err
		}
		deps.Scheduler = sched
		deps.Listener = listener.NewReconcileListener(cfg.Database.ConnectionString(), func() {
			if err := sched.TriggerNow(); err != nil {
				log.Printf("Reconcile listener: failed to trigger tick: %v", err)
			}
		})
		trigger = sched.TriggerNow
	} else {
		log.Println("Invoice poller is disabled")
	}

	deps.Handlers = &httphandlers.Handlers{
		Health:      httphandlers.NewHealthHandler(db),
		Account:     httphandlers.NewAccountHandler(accountService, transactionService),
		Transaction: httphandlers.NewTransactionHandler(accountService, transactionService),
		Payment:     httphandlers.NewPaymentHandler(paymentService),
		Webhook:     httphandlers.NewWebhookHandler(webhookService),
		Node:        httphandlers.NewNodeHandler(node),
		Reconcile:   httphandlers.NewReconcileHandler(trigger),
	}

	return deps, nil
}

// Start launches the background reconciliation components.
func (d *Dependencies) Start(ctx context.Context) {
	if d.Scheduler != nil {
		d.Scheduler.Start()
		log.Printf("Invoice poller started, every %v", d.Scheduler.Interval())
	}
	if d.Listener != nil {
		d.Listener.Start(ctx)
	}
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
