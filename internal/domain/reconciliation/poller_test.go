package reconciliation_test

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowledger/internal/domain/account"
	"shadowledger/internal/domain/notification"
	"shadowledger/internal/domain/reconciliation"
	"shadowledger/internal/domain/transaction"
	"shadowledger/internal/infrastructure/lnd"
	"shadowledger/internal/testutil"
)

// MockInvoiceSource is a mock implementation of reconciliation.InvoiceSource
type MockInvoiceSource struct {
	ListInvoicesFunc func(ctx context.Context, maxCount int) ([]lnd.Invoice, error)
}

func (m *MockInvoiceSource) ListInvoices(ctx context.Context, maxCount int) ([]lnd.Invoice, error) {
	if m.ListInvoicesFunc != nil {
		return m.ListInvoicesFunc(ctx, maxCount)
	}
	return nil, nil
}

func staticInvoices(invoices ...lnd.Invoice) *MockInvoiceSource {
	return &MockInvoiceSource{
		ListInvoicesFunc: func(context.Context, int) ([]lnd.Invoice, error) {
			return invoices, nil
		},
	}
}

// failingLookupRepo fails GetByHash for one hash.
type failingLookupRepo struct {
	*testutil.TransactionRepo
	failHash string
}

func (r *failingLookupRepo) GetByHash(ctx context.Context, hash string) (*transaction.Transaction, error) {
	if hash == r.failHash {
		return nil, errors.New("connection reset by peer")
	}
	return r.TransactionRepo.GetByHash(ctx, hash)
}

// b64Hash returns the base64 form the REST gateway uses for testutil.HexHash(b).
func b64Hash(b byte) string {
	raw, _ := hex.DecodeString(testutil.HexHash(b))
	return base64.StdEncoding.EncodeToString(raw)
}

type fixture struct {
	store    *testutil.Store
	txs      *transaction.Service
	resolver *account.Resolver
}

func newFixture(t *testing.T, repo transaction.Repository) *fixture {
	t.Helper()
	store := testutil.NewStore()
	if repo == nil {
		repo = store.Transactions()
	}
	resolver, err := account.NewResolver(store.Accounts(), regexp.MustCompile(`userid:([a-zA-Z0-9]+)`), "")
	require.NoError(t, err)
	return &fixture{store: store, txs: transaction.NewService(repo), resolver: resolver}
}

func TestTick_CreatesAttributedInvoices(t *testing.T) {
	f := newFixture(t, nil)
	alice := testutil.SeedAccount(t, f.store, "alice")
	bob := testutil.SeedAccount(t, f.store, "bob")

	source := staticInvoices(
		lnd.Invoice{Memo: "payment userid:alice for bob", RHash: b64Hash(1), Value: decimal.NewFromInt(500), Settled: true, State: lnd.InvoiceSettled, PaymentRequest: "lnbc1"},
		lnd.Invoice{Memo: "Lunch with BOB", RHash: b64Hash(2), Value: decimal.NewFromInt(700), State: lnd.InvoiceOpen},
		lnd.Invoice{Memo: "", RHash: b64Hash(3), Value: decimal.NewFromInt(900), Settled: true, State: lnd.InvoiceSettled},
	)

	poller := reconciliation.NewPoller(source, f.txs, f.resolver, 0)
	result, err := poller.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Errors)

	first, err := f.txs.GetByHash(context.Background(), testutil.HexHash(1))
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, alice.ID, first.AccountID)
	assert.Equal(t, transaction.StatusComplete, first.Status)
	assert.Equal(t, transaction.DirectionIncoming, first.Direction)
	require.NotNil(t, first.PaymentRequest)
	assert.Equal(t, "lnbc1", *first.PaymentRequest)

	second, err := f.txs.GetByHash(context.Background(), testutil.HexHash(2))
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, bob.ID, second.AccountID)
	assert.Equal(t, transaction.StatusPending, second.Status)

	untracked, err := f.txs.GetByHash(context.Background(), testutil.HexHash(3))
	require.NoError(t, err)
	assert.Nil(t, untracked)

	require.Len(t, result.Events, 2)
	for _, e := range result.Events {
		assert.Equal(t, notification.EventInvoiceCreated, e.Type)
	}
	assert.Equal(t, alice.ID, result.Events[0].Payload.AccountID)
}

func TestTick_UpdatesTrackedInvoices(t *testing.T) {
	f := newFixture(t, nil)
	alice := testutil.SeedAccount(t, f.store, "alice")
	testutil.SeedTransaction(t, f.store, alice.ID, testutil.HexHash(1), 500, transaction.DirectionIncoming, transaction.StatusPending)
	testutil.SeedTransaction(t, f.store, alice.ID, testutil.HexHash(2), 600, transaction.DirectionIncoming, transaction.StatusPending)
	testutil.SeedTransaction(t, f.store, alice.ID, testutil.HexHash(3), 700, transaction.DirectionIncoming, transaction.StatusPending)

	source := staticInvoices(
		lnd.Invoice{Memo: "x", RHash: b64Hash(1), Value: decimal.NewFromInt(500), Settled: true, State: lnd.InvoiceSettled},
		lnd.Invoice{Memo: "x", RHash: b64Hash(2), Value: decimal.NewFromInt(600), State: lnd.InvoiceCanceled},
		lnd.Invoice{Memo: "x", RHash: b64Hash(3), Value: decimal.NewFromInt(700), State: lnd.InvoiceOpen},
	)

	poller := reconciliation.NewPoller(source, f.txs, f.resolver, 10)
	result, err := poller.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Created)
	require.Len(t, result.Events, 2)
	assert.Equal(t, notification.EventInvoiceUpdated, result.Events[0].Type)
	assert.Equal(t, transaction.StatusComplete, result.Events[0].Payload.Status)
	assert.Equal(t, transaction.StatusPending, result.Events[0].Payload.PreviousStatus)
	assert.Equal(t, transaction.StatusFailed, result.Events[1].Payload.Status)

	// A second pass over the same node state changes nothing.
	again, err := poller.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Updated)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 3, again.Skipped)
	assert.Empty(t, again.Events)
	assert.Equal(t, 3, f.store.TransactionCount())
}

func TestTick_InvoiceFailureIsIsolated(t *testing.T) {
	store := testutil.NewStore()
	repo := &failingLookupRepo{TransactionRepo: store.Transactions(), failHash: testutil.HexHash(2)}
	resolver, err := account.NewResolver(store.Accounts(), nil, "")
	require.NoError(t, err)
	txs := transaction.NewService(repo)

	alice := testutil.SeedAccount(t, store, "alice")
	testutil.SeedTransaction(t, store, alice.ID, testutil.HexHash(3), 300, transaction.DirectionIncoming, transaction.StatusPending)

	source := staticInvoices(
		lnd.Invoice{Memo: "for alice", RHash: b64Hash(1), Value: decimal.NewFromInt(100), Settled: true, State: lnd.InvoiceSettled},
		lnd.Invoice{Memo: "for alice", RHash: b64Hash(2), Value: decimal.NewFromInt(200), Settled: true, State: lnd.InvoiceSettled},
		lnd.Invoice{Memo: "for alice", RHash: b64Hash(3), Value: decimal.NewFromInt(300), Settled: true, State: lnd.InvoiceSettled},
	)

	poller := reconciliation.NewPoller(source, txs, resolver, 10)
	result, err := poller.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "connection reset by peer")

	created, err := store.Transactions().GetByHash(context.Background(), testutil.HexHash(1))
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, transaction.StatusComplete, created.Status)

	updated, err := store.Transactions().GetByHash(context.Background(), testutil.HexHash(3))
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusComplete, updated.Status)

	missing, err := store.Transactions().GetByHash(context.Background(), testutil.HexHash(2))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTick_TerminalViolationIsReported(t *testing.T) {
	f := newFixture(t, nil)
	alice := testutil.SeedAccount(t, f.store, "alice")
	testutil.SeedTransaction(t, f.store, alice.ID, testutil.HexHash(1), 500, transaction.DirectionIncoming, transaction.StatusComplete)

	source := staticInvoices(
		lnd.Invoice{Memo: "x", RHash: b64Hash(1), Value: decimal.NewFromInt(500), State: lnd.InvoiceCanceled},
	)

	result, err := reconciliation.NewPoller(source, f.txs, f.resolver, 10).Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "terminal")

	tx, err := f.txs.GetByHash(context.Background(), testutil.HexHash(1))
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusComplete, tx.Status)
}

func TestTick_FetchErrorAbortsTick(t *testing.T) {
	f := newFixture(t, nil)
	source := &MockInvoiceSource{
		ListInvoicesFunc: func(context.Context, int) ([]lnd.Invoice, error) {
			return nil, errors.New("node unreachable")
		},
	}

	result, err := reconciliation.NewPoller(source, f.txs, f.resolver, 10).Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node unreachable")
	assert.Equal(t, 0, result.Fetched)
}

func TestTick_UnmatchedMemoUsesDefaultAccount(t *testing.T) {
	f := newFixture(t, nil)
	testutil.SeedAccount(t, f.store, "alice")

	source := staticInvoices(
		lnd.Invoice{Memo: "tip jar", RHash: b64Hash(1), Value: decimal.NewFromInt(21), Settled: true, State: lnd.InvoiceSettled},
		lnd.Invoice{Memo: "donation", RHash: b64Hash(2), Value: decimal.Zero, AmtPaidSat: decimal.NewFromInt(42), Settled: true, State: lnd.InvoiceSettled},
	)

	result, err := reconciliation.NewPoller(source, f.txs, f.resolver, 10).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)

	def, err := f.store.Accounts().GetByName(context.Background(), account.DefaultAccountName)
	require.NoError(t, err)
	require.NotNil(t, def)

	tx, err := f.txs.GetByHash(context.Background(), testutil.HexHash(2))
	require.NoError(t, err)
	assert.Equal(t, def.ID, tx.AccountID)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(42)))

	count, err := f.store.Accounts().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMapInvoiceState(t *testing.T) {
	tests := []struct {
		inv  lnd.Invoice
		want transaction.Status
	}{
		{lnd.Invoice{State: lnd.InvoiceSettled}, transaction.StatusComplete},
		{lnd.Invoice{Settled: true}, transaction.StatusComplete},
		{lnd.Invoice{State: lnd.InvoiceCanceled}, transaction.StatusFailed},
		{lnd.Invoice{State: lnd.InvoiceOpen}, transaction.StatusPending},
		{lnd.Invoice{State: lnd.InvoiceAccepted}, transaction.StatusPending},
	}

	for _, tt := range tests {
		t.Run(string(tt.inv.State), func(t *testing.T) {
			assert.Equal(t, tt.want, reconciliation.MapInvoiceState(tt.inv))
		})
	}
}
