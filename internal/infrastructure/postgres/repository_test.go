package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowledger/internal/domain/account"
	"shadowledger/internal/domain/transaction"
	"shadowledger/internal/domain/webhook"
	"shadowledger/internal/infrastructure/crypto"
	"shadowledger/internal/infrastructure/postgres/migrations"
	"shadowledger/internal/shared/apperr"
)

// openTestDB connects to TEST_DATABASE_URL, migrates it and empties the
// ledger tables. Tests are skipped when the variable is unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := New(dsn, PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = migrations.Run(context.Background(), db.DB)
	require.NoError(t, err)

	// The delete guard blocks row deletes; TRUNCATE does not fire row triggers.
	_, err = db.ExecContext(context.Background(), `TRUNCATE webhooks, transactions, accounts`)
	require.NoError(t, err)
	return db
}

func seedAccount(t *testing.T, repo *AccountRepository, name string) *account.Account {
	t.Helper()
	acc, err := repo.Create(context.Background(), account.CreateParams{ID: uuid.NewString(), Name: name})
	require.NoError(t, err)
	return acc
}

func txParams(accountID, hash string, amount int64, dir transaction.Direction, status transaction.Status) transaction.CreateParams {
	return transaction.CreateParams{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Hash:      hash,
		Amount:    decimal.NewFromInt(amount),
		Direction: dir,
		Status:    status,
	}
}

func TestAccountRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewAccountRepository(db)

	alice := seedAccount(t, repo, "alice")
	seedAccount(t, repo, "bob")

	_, err := repo.Create(ctx, account.CreateParams{ID: uuid.NewString(), Name: "alice"})
	assert.ErrorIs(t, err, account.ErrNameTaken)

	got, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)

	missing, err := repo.GetByID(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].Name)

	page, err := repo.List(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "bob", page[0].Name)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestTransactionRepository_UniqueHashUnderConcurrency(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	acc := seedAccount(t, NewAccountRepository(db), "alice")
	repo := NewTransactionRepository(db)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Create(ctx, txParams(acc.ID, "aa11", 10, transaction.DirectionIncoming, transaction.StatusPending))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrConflict)
	}
	assert.Equal(t, 1, successes)

	_, err := repo.Create(ctx, txParams(uuid.NewString(), "bb22", 10, transaction.DirectionIncoming, transaction.StatusPending))
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}

func TestTransactionRepository_StatusAndBalance(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	acc := seedAccount(t, NewAccountRepository(db), "alice")
	repo := NewTransactionRepository(db)

	for _, p := range []transaction.CreateParams{
		txParams(acc.ID, "01", 500, transaction.DirectionIncoming, transaction.StatusComplete),
		txParams(acc.ID, "02", 200, transaction.DirectionOutgoing, transaction.StatusComplete),
		txParams(acc.ID, "03", 1000, transaction.DirectionIncoming, transaction.StatusPending),
	} {
		_, err := repo.Create(ctx, p)
		require.NoError(t, err)
	}

	balance, err := repo.ComputeBalance(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(300)), "got %s", balance)

	_, err = repo.UpdateStatus(ctx, "01", transaction.StatusFailed)
	assert.ErrorIs(t, err, transaction.ErrTerminalState)

	same, err := repo.UpdateStatus(ctx, "01", transaction.StatusComplete)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusComplete, same.Status)

	_, err = repo.UpdateStatus(ctx, "ffff", transaction.StatusComplete)
	assert.ErrorIs(t, err, transaction.ErrTransactionNotFound)

	// The trigger rejects writers that bypass the repository.
	_, err = db.ExecContext(ctx, `UPDATE transactions SET status = 'PENDING' WHERE hash = '01'`)
	assert.True(t, isCheckViolation(err))
}

func TestTransactionRepository_CreatePendingOutgoing(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	acc := seedAccount(t, NewAccountRepository(db), "alice")
	repo := NewTransactionRepository(db)

	_, err := repo.Create(ctx, txParams(acc.ID, "01", 100, transaction.DirectionIncoming, transaction.StatusComplete))
	require.NoError(t, err)

	_, err = repo.CreatePendingOutgoing(ctx, txParams(acc.ID, "02", 500, transaction.DirectionOutgoing, transaction.StatusPending))
	assert.ErrorIs(t, err, transaction.ErrInsufficientBalance)

	// Two concurrent 60-sat sends against 100: the lock admits only one.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, hash := range []string{"03", "04"} {
		wg.Add(1)
		go func(i int, hash string) {
			defer wg.Done()
			_, errs[i] = repo.CreatePendingOutgoing(ctx, txParams(acc.ID, hash, 60, transaction.DirectionOutgoing, transaction.StatusPending))
		}(i, hash)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if errors.Is(err, transaction.ErrInsufficientBalance) {
			failures++
		} else {
			assert.NoError(t, err)
		}
	}
	assert.Equal(t, 1, failures)
}

func TestWebhookRepository_EncryptsSecret(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	acc := seedAccount(t, NewAccountRepository(db), "alice")

	enc, err := crypto.NewEncryptor("01234567890123456789012345678901")
	require.NoError(t, err)
	repo := NewWebhookRepository(db, enc)

	created, err := repo.Create(ctx, webhook.CreateParams{
		ID:        uuid.NewString(),
		AccountID: acc.ID,
		URL:       "https://example.com/hook",
		Secret:    "super-secret-value-123",
		Enabled:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "super-secret-value-123", created.Secret)

	var stored string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT secret_encrypted FROM webhooks WHERE id = $1`, created.ID).Scan(&stored))
	assert.NotEqual(t, "super-secret-value-123", stored)

	off := false
	_, err = repo.Update(ctx, created.ID, webhook.UpdateParams{Enabled: &off})
	require.NoError(t, err)

	enabled, err := repo.ListByAccountID(ctx, acc.ID, true)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	all, err := repo.ListByAccountID(ctx, acc.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "super-secret-value-123", all[0].Secret)

	require.NoError(t, repo.Delete(ctx, created.ID))
	assert.ErrorIs(t, repo.Delete(ctx, created.ID), webhook.ErrWebhookNotFound)
}
