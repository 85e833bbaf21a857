package payment_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowledger/internal/domain/account"
	"shadowledger/internal/domain/notification"
	"shadowledger/internal/domain/payment"
	"shadowledger/internal/domain/transaction"
	"shadowledger/internal/infrastructure/lnd"
	"shadowledger/internal/shared/apperr"
	"shadowledger/internal/testutil"
)

// MockNode is a mock implementation of payment.Node
type MockNode struct {
	DecodeFunc        func(ctx context.Context, pr string) (*lnd.PayReq, error)
	SendFunc          func(ctx context.Context, pr string) (*lnd.SendResult, error)
	CreateInvoiceFunc func(ctx context.Context, amount decimal.Decimal, memo string, expiry int64) (*lnd.AddInvoiceResult, error)

	mu        sync.Mutex
	sendCalls int
}

func (m *MockNode) DecodePaymentRequest(ctx context.Context, pr string) (*lnd.PayReq, error) {
	if m.DecodeFunc != nil {
		return m.DecodeFunc(ctx, pr)
	}
	return nil, errors.New("not configured")
}

func (m *MockNode) SendPayment(ctx context.Context, pr string) (*lnd.SendResult, error) {
	m.mu.Lock()
	m.sendCalls++
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, pr)
	}
	return &lnd.SendResult{}, nil
}

func (m *MockNode) CreateInvoice(ctx context.Context, amount decimal.Decimal, memo string, expiry int64) (*lnd.AddInvoiceResult, error) {
	if m.CreateInvoiceFunc != nil {
		return m.CreateInvoiceFunc(ctx, amount, memo, expiry)
	}
	return nil, errors.New("not configured")
}

func (m *MockNode) SendCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendCalls
}

// recordingNotifier captures notified events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (r *recordingNotifier) Notify(_ context.Context, e notification.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func decodeTo(hash string, amount int64) func(context.Context, string) (*lnd.PayReq, error) {
	return func(context.Context, string) (*lnd.PayReq, error) {
		return &lnd.PayReq{
			Destination: "02abc",
			PaymentHash: hash,
			NumSatoshis: decimal.NewFromInt(amount),
			Description: "coffee",
		}, nil
	}
}

type fixture struct {
	store    *testutil.Store
	node     *MockNode
	notifier *recordingNotifier
	svc      *payment.Service
	txs      *transaction.Service
}

func newFixture() *fixture {
	store := testutil.NewStore()
	node := &MockNode{}
	notifier := &recordingNotifier{}
	txs := transaction.NewService(store.Transactions())
	svc := payment.NewService(node, account.NewService(store.Accounts()), txs, notifier, 0)
	return &fixture{store: store, node: node, notifier: notifier, svc: svc, txs: txs}
}

func TestSendPayment_InsufficientBalance(t *testing.T) {
	f := newFixture()
	acc := testutil.SeedAccount(t, f.store, "alice")
	testutil.SeedTransaction(t, f.store, acc.ID, testutil.HexHash(1), 100, transaction.DirectionIncoming, transaction.StatusComplete)
	f.node.DecodeFunc = decodeTo(testutil.HexHash(2), 500)

	_, err := f.svc.SendPaymentFromAccount(context.Background(), acc.ID, "lnbc5u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, transaction.ErrInsufficientBalance)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Equal(t, 0, f.node.SendCalls())
	assert.Equal(t, 1, f.store.TransactionCount())
	assert.Empty(t, f.notifier.events)
}

func TestSendPayment_Success(t *testing.T) {
	f := newFixture()
	acc := testutil.SeedAccount(t, f.store, "alice")
	testutil.SeedTransaction(t, f.store, acc.ID, testutil.HexHash(1), 1000, transaction.DirectionIncoming, transaction.StatusComplete)
	f.node.DecodeFunc = decodeTo("ABCDEF0123", 400)

	tx, err := f.svc.SendPaymentFromAccount(context.Background(), acc.ID, "lnbc4u1")
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123", tx.Hash)
	assert.Equal(t, transaction.StatusComplete, tx.Status)
	assert.Equal(t, transaction.DirectionOutgoing, tx.Direction)
	assert.Equal(t, 1, f.node.SendCalls())

	balance, err := f.txs.Balance(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(600)))

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, notification.EventPaymentCompleted, f.notifier.events[0].Type)
	assert.Equal(t, acc.ID, f.notifier.events[0].Payload.AccountID)
}

func TestSendPayment_NodeFailure(t *testing.T) {
	tests := []struct {
		name string
		send func(context.Context, string) (*lnd.SendResult, error)
	}{
		{
			name: "Transport error",
			send: func(context.Context, string) (*lnd.SendResult, error) {
				return nil, apperr.ErrUpstreamUnavailable
			},
		},
		{
			name: "Routing error",
			send: func(context.Context, string) (*lnd.SendResult, error) {
				return &lnd.SendResult{PaymentError: "no route"}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			acc := testutil.SeedAccount(t, f.store, "alice")
			testutil.SeedTransaction(t, f.store, acc.ID, testutil.HexHash(1), 1000, transaction.DirectionIncoming, transaction.StatusComplete)
			f.node.DecodeFunc = decodeTo(testutil.HexHash(2), 400)
			f.node.SendFunc = tt.send

			_, err := f.svc.SendPaymentFromAccount(context.Background(), acc.ID, "lnbc4u1")
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
			assert.Equal(t, 1, f.node.SendCalls())

			tx, err := f.txs.GetByHash(context.Background(), testutil.HexHash(2))
			require.NoError(t, err)
			require.NotNil(t, tx)
			assert.Equal(t, transaction.StatusFailed, tx.Status)

			require.Len(t, f.notifier.events, 1)
			assert.Equal(t, notification.EventPaymentFailed, f.notifier.events[0].Type)
			assert.NotEmpty(t, f.notifier.events[0].Payload.Error)

			// Failed sends do not reduce the balance.
			balance, err := f.txs.Balance(context.Background(), acc.ID)
			require.NoError(t, err)
			assert.True(t, balance.Equal(decimal.NewFromInt(1000)))
		})
	}
}

func TestSendPayment_Validation(t *testing.T) {
	f := newFixture()
	acc := testutil.SeedAccount(t, f.store, "alice")

	_, err := f.svc.SendPaymentFromAccount(context.Background(), "missing", "lnbc1")
	assert.ErrorIs(t, err, account.ErrAccountNotFound)

	f.node.DecodeFunc = decodeTo(testutil.HexHash(2), 0)
	_, err = f.svc.SendPaymentFromAccount(context.Background(), acc.ID, "lnbc1")
	assert.ErrorIs(t, err, payment.ErrZeroAmount)

	f.node.DecodeFunc = func(context.Context, string) (*lnd.PayReq, error) {
		return nil, apperr.ErrUpstreamUnavailable
	}
	_, err = f.svc.SendPaymentFromAccount(context.Background(), acc.ID, "lnbc1")
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)

	assert.Equal(t, 0, f.node.SendCalls())
	assert.Equal(t, 0, f.store.TransactionCount())
}

func TestCreateInvoice(t *testing.T) {
	f := newFixture()
	acc := testutil.SeedAccount(t, f.store, "alice")
	f.node.CreateInvoiceFunc = func(_ context.Context, amount decimal.Decimal, memo string, expiry int64) (*lnd.AddInvoiceResult, error) {
		assert.True(t, amount.Equal(decimal.NewFromInt(2100)))
		assert.Equal(t, "userid:alice", memo)
		assert.Equal(t, payment.DefaultInvoiceExpiry, expiry)
		return &lnd.AddInvoiceResult{RHash: "q83vEjRWeJA=", PaymentRequest: "lnbc21u1"}, nil
	}

	tx, err := f.svc.CreateInvoice(context.Background(), acc.ID, decimal.NewFromInt(2100), "userid:alice", 0)
	require.NoError(t, err)
	assert.Equal(t, "abcdef1234567890", tx.Hash)
	assert.Equal(t, transaction.StatusPending, tx.Status)
	assert.Equal(t, transaction.DirectionIncoming, tx.Direction)
	require.NotNil(t, tx.PaymentRequest)
	assert.Equal(t, "lnbc21u1", *tx.PaymentRequest)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, notification.EventInvoiceCreated, f.notifier.events[0].Type)

	_, err = f.svc.CreateInvoice(context.Background(), acc.ID, decimal.Zero, "", 0)
	assert.ErrorIs(t, err, payment.ErrInvalidAmount)

	_, err = f.svc.CreateInvoice(context.Background(), "missing", decimal.NewFromInt(1), "", 0)
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}
