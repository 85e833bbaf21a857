package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowledger/internal/domain/notification"
	"shadowledger/internal/domain/transaction"
	"shadowledger/internal/domain/webhook"
	"shadowledger/internal/shared/messages"
)

// MockWebhookSource is a mock implementation of notification.WebhookSource
type MockWebhookSource struct {
	EnabledWebhooksFunc func(ctx context.Context, accountID string) ([]*webhook.Webhook, error)
	calls               atomic.Int32
}

func (m *MockWebhookSource) EnabledWebhooks(ctx context.Context, accountID string) ([]*webhook.Webhook, error) {
	m.calls.Add(1)
	if m.EnabledWebhooksFunc != nil {
		return m.EnabledWebhooksFunc(ctx, accountID)
	}
	return nil, nil
}

// MockMessenger records topic alerts.
type MockMessenger struct {
	mu     sync.Mutex
	topics []string
	bodies []string
}

func (m *MockMessenger) SendToTopic(_ context.Context, topic, _, body string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = append(m.topics, topic)
	m.bodies = append(m.bodies, body)
	return nil
}

type received struct {
	body      []byte
	signature string
	event     string
}

type receiver struct {
	mu     sync.Mutex
	got    []received
	server *httptest.Server
}

func newReceiver(t *testing.T, status int) *receiver {
	t.Helper()
	r := &receiver{}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.got = append(r.got, received{
			body:      body,
			signature: req.Header.Get(notification.SignatureHeader),
			event:     req.Header.Get(notification.EventHeader),
		})
		r.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(r.server.Close)
	return r
}

func (r *receiver) deliveries() []received {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]received(nil), r.got...)
}

func sampleEvent(accountID string) notification.Event {
	memo := "coffee"
	return notification.TransactionEvent(notification.EventInvoiceCreated, &transaction.Transaction{
		ID:        "tx-1",
		AccountID: accountID,
		Hash:      "ab12",
		Amount:    decimal.NewFromInt(2100),
		Direction: transaction.DirectionIncoming,
		Status:    transaction.StatusComplete,
		Memo:      &memo,
	})
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestSignAndVerify(t *testing.T) {
	body := []byte(`{"event":"invoice.created","data":{"accountId":"a"}}`)
	secret := "0123456789abcdef0123456789abcdef"

	sig := notification.Sign(secret, body)
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, notification.Sign(secret, body))
	assert.True(t, notification.VerifySignature(secret, body, sig))

	tampered := []byte(`{"event":"invoice.created","data":{"accountId":"b"}}`)
	assert.False(t, notification.VerifySignature(secret, tampered, sig))
	assert.False(t, notification.VerifySignature("another-secret-value", body, sig))
	assert.False(t, notification.VerifySignature(secret, body, "not-hex"))
}

func TestNotify_DeliversSignedEnvelope(t *testing.T) {
	recv := newReceiver(t, http.StatusOK)
	secret := "a-very-secret-webhook-key"
	source := &MockWebhookSource{
		EnabledWebhooksFunc: func(_ context.Context, accountID string) ([]*webhook.Webhook, error) {
			assert.Equal(t, "acc-1", accountID)
			return []*webhook.Webhook{{ID: "wh-1", AccountID: accountID, URL: recv.server.URL, Secret: secret, Enabled: true}}, nil
		},
	}

	d := notification.NewDispatcher(source, time.Second, notification.WithClock(fixedClock))
	d.Notify(context.Background(), sampleEvent("acc-1"))

	got := recv.deliveries()
	require.Len(t, got, 1)
	assert.Equal(t, "invoice.created", got[0].event)
	assert.True(t, notification.VerifySignature(secret, got[0].body, got[0].signature))

	var env map[string]any
	require.NoError(t, json.Unmarshal(got[0].body, &env))
	assert.Equal(t, "invoice.created", env["event"])
	assert.Equal(t, "2024-03-01T12:00:00Z", env["timestamp"])
	data := env["data"].(map[string]any)
	assert.Equal(t, "acc-1", data["accountId"])
	assert.Equal(t, "ab12", data["hash"])
	assert.Equal(t, "2100", data["amount"])
	assert.Equal(t, "COMPLETE", data["status"])
}

func TestNotify_MissingAccountIDIsNoop(t *testing.T) {
	source := &MockWebhookSource{}
	d := notification.NewDispatcher(source, time.Second)

	d.Notify(context.Background(), notification.Event{Type: notification.EventInvoiceUpdated})

	assert.Equal(t, int32(0), source.calls.Load())
}

func TestNotify_FailingEndpointDoesNotAffectOthers(t *testing.T) {
	ok1 := newReceiver(t, http.StatusOK)
	failing := newReceiver(t, http.StatusInternalServerError)
	ok2 := newReceiver(t, http.StatusAccepted)
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	source := &MockWebhookSource{
		EnabledWebhooksFunc: func(_ context.Context, accountID string) ([]*webhook.Webhook, error) {
			return []*webhook.Webhook{
				{ID: "1", AccountID: accountID, URL: ok1.server.URL, Secret: "secret-one-secret-one"},
				{ID: "2", AccountID: accountID, URL: failing.server.URL, Secret: "secret-two-secret-two"},
				{ID: "3", AccountID: accountID, URL: closedURL, Secret: "secret-three-secret"},
				{ID: "4", AccountID: accountID, URL: ok2.server.URL, Secret: "secret-four-secret-four"},
			}, nil
		},
	}

	d := notification.NewDispatcher(source, time.Second)
	d.Notify(context.Background(), sampleEvent("acc-1"))

	assert.Len(t, ok1.deliveries(), 1)
	assert.Len(t, failing.deliveries(), 1, "failed deliveries are not retried")
	assert.Len(t, ok2.deliveries(), 1)
}

func TestNotify_SourceErrorIsSwallowed(t *testing.T) {
	source := &MockWebhookSource{
		EnabledWebhooksFunc: func(context.Context, string) ([]*webhook.Webhook, error) {
			return nil, errors.New("database unavailable")
		},
	}
	d := notification.NewDispatcher(source, time.Second)

	assert.NotPanics(t, func() {
		d.Notify(context.Background(), sampleEvent("acc-1"))
	})
}

func TestNotify_PaymentFailedAlert(t *testing.T) {
	messenger := &MockMessenger{}
	d := notification.NewDispatcher(&MockWebhookSource{}, time.Second, notification.WithAlerts(messenger, "ops"))

	e := sampleEvent("acc-1")
	d.Notify(context.Background(), e)

	e.Type = notification.EventPaymentFailed
	e.Payload.Error = "no route"
	d.Notify(context.Background(), e)

	require.Len(t, messenger.topics, 1)
	assert.Equal(t, "ops", messenger.topics[0])
	assert.Contains(t, messenger.bodies[0], "no route")
}

func TestNotify_CustomAlertText(t *testing.T) {
	messenger := &MockMessenger{}
	d := notification.NewDispatcher(&MockWebhookSource{}, time.Second,
		notification.WithAlerts(messenger, "ops"),
		notification.WithAlertText(messages.MessageText{Title: "Falha", Body: "{account}: {error}"}),
	)

	e := sampleEvent("acc-1")
	e.Type = notification.EventPaymentFailed
	e.Payload.Error = "no route"
	d.Notify(context.Background(), e)

	require.Len(t, messenger.bodies, 1)
	assert.Equal(t, "acc-1: no route", messenger.bodies[0])
}

func TestNotifyAll_PreservesOrder(t *testing.T) {
	recv := newReceiver(t, http.StatusOK)
	source := &MockWebhookSource{
		EnabledWebhooksFunc: func(_ context.Context, accountID string) ([]*webhook.Webhook, error) {
			return []*webhook.Webhook{{ID: "1", AccountID: accountID, URL: recv.server.URL, Secret: "secret-secret-secret"}}, nil
		},
	}
	d := notification.NewDispatcher(source, time.Second)

	created := sampleEvent("acc-1")
	updated := sampleEvent("acc-1")
	updated.Type = notification.EventInvoiceUpdated

	d.NotifyAll(context.Background(), []notification.Event{created, updated})

	got := recv.deliveries()
	require.Len(t, got, 2)
	assert.Equal(t, "invoice.created", got[0].event)
	assert.Equal(t, "invoice.updated", got[1].event)
}
