package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shadowledger/internal/domain/account"
	"shadowledger/internal/domain/transaction"
)

// SeedAccount creates an account with the given name and returns it.
func SeedAccount(t *testing.T, s *Store, name string) *account.Account {
	t.Helper()

	acc, err := s.Accounts().Create(context.Background(), account.CreateParams{
		ID:   uuid.NewString(),
		Name: name,
	})
	if err != nil {
		t.Fatalf("Failed to seed account %q: %v", name, err)
	}
	return acc
}

// SeedTransaction stores a transaction directly, bypassing any service logic.
func SeedTransaction(t *testing.T, s *Store, accountID, hash string, amount int64, dir transaction.Direction, status transaction.Status) *transaction.Transaction {
	t.Helper()

	tx, err := s.Transactions().Create(context.Background(), transaction.CreateParams{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Hash:      hash,
		Amount:    decimal.NewFromInt(amount),
		Direction: dir,
		Status:    status,
	})
	if err != nil {
		t.Fatalf("Failed to seed transaction %q: %v", hash, err)
	}
	return tx
}

// HexHash returns a deterministic 64-character lowercase hex hash built from b.
func HexHash(b byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 64)
	for i := range out {
		if i%2 == 0 {
			out[i] = digits[b>>4]
		} else {
			out[i] = digits[b&0x0f]
		}
	}
	return string(out)
}
