package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"shadowledger/internal/domain/webhook"
	"shadowledger/internal/shared/messages"
)

const DefaultTimeout = 10 * time.Second

var (
	dispatchMeter       = otel.Meter("shadowledger/notification")
	deliveryTotal, _    = dispatchMeter.Int64Counter("webhook.deliveries", metric.WithDescription("Webhook delivery attempts by event and outcome"))
	deliveryDuration, _ = dispatchMeter.Float64Histogram("webhook.delivery.duration", metric.WithDescription("Webhook delivery duration in seconds"), metric.WithUnit("s"))
)

// Dispatcher signs and delivers ledger events to the webhooks of the owning
// account. Delivery is best effort: every endpoint gets one attempt.
type Dispatcher struct {
	webhooks   WebhookSource
	client     *http.Client
	messenger  Messenger
	alertTopic string
	alertText  messages.MessageText
	now        func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient replaces the delivery client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithAlerts forwards payment.failed events to topic through m.
func WithAlerts(m Messenger, topic string) Option {
	return func(d *Dispatcher) {
		d.messenger = m
		d.alertTopic = topic
	}
}

// WithAlertText replaces the payment.failed alert text. Placeholders
// {hash}, {account} and {error} are substituted per event.
func WithAlertText(text messages.MessageText) Option {
	return func(d *Dispatcher) { d.alertText = text }
}

// WithClock overrides the envelope timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher whose deliveries time out after timeout.
func NewDispatcher(webhooks WebhookSource, timeout time.Duration, opts ...Option) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := &Dispatcher{
		webhooks: webhooks,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		alertText: messages.Default().PaymentFailed,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify delivers e to every enabled webhook of e.Payload.AccountID and waits
// for all deliveries. Failures are logged and never returned.
func (d *Dispatcher) Notify(ctx context.Context, e Event) {
	if e.Payload.AccountID == "" {
		log.Printf("Dispatcher: %s event without accountId, skipping", e.Type)
		return
	}

	if e.Type == EventPaymentFailed {
		d.alert(ctx, e)
	}

	hooks, err := d.webhooks.EnabledWebhooks(ctx, e.Payload.AccountID)
	if err != nil {
		log.Printf("Dispatcher: failed to load webhooks for account %s: %v", e.Payload.AccountID, err)
		return
	}
	if len(hooks) == 0 {
		return
	}

	body, err := json.Marshal(NewEnvelope(e, d.now()))
	if err != nil {
		log.Printf("Dispatcher: failed to encode %s event: %v", e.Type, err)
		return
	}

	var wg sync.WaitGroup
	for _, hook := range hooks {
		wg.Add(1)
		go func(h *webhook.Webhook) {
			defer wg.Done()
			d.deliver(ctx, h, e.Type, body)
		}(hook)
	}
	wg.Wait()
}

// NotifyAll delivers events in order.
func (d *Dispatcher) NotifyAll(ctx context.Context, events []Event) {
	for _, e := range events {
		d.Notify(ctx, e)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, h *webhook.Webhook, event EventType, body []byte) {
	start := time.Now()
	err := d.post(ctx, h, event, body)

	outcome := "success"
	if err != nil {
		outcome = "failure"
		log.Printf("Dispatcher: delivery of %s to webhook %s (%s) failed: %v", event, h.ID, h.URL, err)
	}

	attrs := metric.WithAttributes(
		attribute.String("event", string(event)),
		attribute.String("outcome", outcome),
	)
	deliveryTotal.Add(ctx, 1, attrs)
	deliveryDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

func (d *Dispatcher) post(ctx context.Context, h *webhook.Webhook, event EventType, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, string(event))
	req.Header.Set(SignatureHeader, Sign(h.Secret, body))

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("receiver returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) alert(ctx context.Context, e Event) {
	if d.messenger == nil || d.alertTopic == "" {
		return
	}

	data := map[string]string{
		"event":     string(e.Type),
		"accountId": e.Payload.AccountID,
		"hash":      e.Payload.Hash,
	}
	text := d.alertText.Render(map[string]string{
		"hash":    e.Payload.Hash,
		"account": e.Payload.AccountID,
		"error":   e.Payload.Error,
	})

	if err := d.messenger.SendToTopic(ctx, d.alertTopic, text.Title, text.Body, data); err != nil {
		log.Printf("Dispatcher: failed to send payment alert: %v", err)
	}
}
