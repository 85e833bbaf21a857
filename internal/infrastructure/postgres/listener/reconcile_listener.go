package listener

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
)

const (
	// ChannelReconcileRequested is the NOTIFY channel that asks the running
	// API process for an immediate reconciliation tick.
	ChannelReconcileRequested = "reconcile_requested"

	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// Trigger is invoked once per received notification.
type Trigger func()

// ReconcileListener listens on reconcile_requested and fires the trigger for
// every notification, reconnecting when the connection drops.
type ReconcileListener struct {
	connStr    string
	trigger    Trigger
	shutdownCh chan struct{}
	done       chan struct{}
}

// NewReconcileListener creates a new listener for reconcile requests
func NewReconcileListener(connStr string, trigger Trigger) *ReconcileListener {
	return &ReconcileListener{
		connStr:    connStr,
		trigger:    trigger,
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening for notifications in a background goroutine
func (l *ReconcileListener) Start(ctx context.Context) {
	go l.listen(ctx)
	log.Println("Reconcile listener started")
}

// Stop gracefully shuts down the listener
func (l *ReconcileListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	log.Println("Reconcile listener stopped")
}

func (l *ReconcileListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			log.Println("Reconcile listener: reconnecting to PostgreSQL...")
		}
	}
}

func (l *ReconcileListener) connectAndListen(ctx context.Context) {
	pl := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			log.Println("Reconcile listener: connected")
		case pq.ListenerEventDisconnected:
			log.Printf("Reconcile listener: disconnected: %v", err)
		case pq.ListenerEventReconnected:
			log.Println("Reconcile listener: reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			log.Printf("Reconcile listener: connection attempt failed: %v", err)
		}
	})
	defer pl.Close()

	if err := pl.Listen(ChannelReconcileRequested); err != nil {
		log.Printf("Reconcile listener: failed to listen on %s: %v", ChannelReconcileRequested, err)
		return
	}

	log.Printf("Reconcile listener: listening on channel %s", ChannelReconcileRequested)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n := <-pl.Notify:
			// pq delivers nil after a reconnect; missed notifications are
			// covered by the next scheduled tick.
			if n == nil {
				continue
			}
			l.handleNotification(n)
		case <-time.After(pingInterval):
			go func() {
				if err := pl.Ping(); err != nil {
					log.Printf("Reconcile listener: ping failed: %v", err)
				}
			}()
		}
	}
}

func (l *ReconcileListener) handleNotification(n *pq.Notification) {
	log.Printf("Reconcile listener: received notification on %s", n.Channel)
	if l.trigger != nil {
		l.trigger()
	}
}

// Signal asks any running listener to reconcile now.
func Signal(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `SELECT pg_notify($1, '')`, ChannelReconcileRequested); err != nil {
		return fmt.Errorf("failed to notify %s: %w", ChannelReconcileRequested, err)
	}
	return nil
}
