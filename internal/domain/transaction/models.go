package transaction

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"shadowledger/internal/shared/apperr"
)

// Direction tells whether funds entered or left the node on behalf of an account.
type Direction string

const (
	DirectionIncoming Direction = "INCOMING"
	DirectionOutgoing Direction = "OUTGOING"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusComplete Status = "COMPLETE"
	StatusFailed   Status = "FAILED"
)

// Domain errors
var (
	ErrTransactionNotFound = fmt.Errorf("transaction not found: %w", apperr.ErrNotFound)
	ErrDuplicateHash       = fmt.Errorf("transaction with this payment hash already exists: %w", apperr.ErrConflict)
	ErrTerminalState       = fmt.Errorf("transaction is in a terminal state: %w", apperr.ErrInvariant)
	ErrInvalidAmount       = fmt.Errorf("amount must be a non-negative integer: %w", apperr.ErrValidation)
	ErrInvalidDirection    = fmt.Errorf("invalid transaction direction: %w", apperr.ErrValidation)
	ErrInvalidStatus       = fmt.Errorf("invalid transaction status: %w", apperr.ErrValidation)
	ErrMissingHash         = fmt.Errorf("payment hash is required: %w", apperr.ErrValidation)
	ErrInsufficientBalance = fmt.Errorf("insufficient balance: %w", apperr.ErrValidation)
)

// Transaction is one node-level payment attributed to an account.
// Hash is the canonical lowercase hex payment hash and is globally unique.
type Transaction struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"accountId"`
	Hash           string          `json:"hash"`
	Amount         decimal.Decimal `json:"amount"`
	Direction      Direction       `json:"direction"`
	Status         Status          `json:"status"`
	Memo           *string         `json:"memo,omitempty"`
	PaymentRequest *string         `json:"paymentRequest,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// CreateParams contains parameters for recording a transaction
type CreateParams struct {
	ID             string
	AccountID      string
	Hash           string
	Amount         decimal.Decimal
	Direction      Direction
	Status         Status
	Memo           *string
	PaymentRequest *string
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("transaction ID is required: %w", apperr.ErrValidation)
	}
	if p.AccountID == "" {
		return fmt.Errorf("account ID is required: %w", apperr.ErrValidation)
	}
	if p.Hash == "" {
		return ErrMissingHash
	}
	if !IsValidAmount(p.Amount) {
		return ErrInvalidAmount
	}
	if !p.Direction.IsValid() {
		return ErrInvalidDirection
	}
	if !p.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// IsValid reports whether d is a known direction.
func (d Direction) IsValid() bool {
	return d == DirectionIncoming || d == DirectionOutgoing
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusComplete || s == StatusFailed
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// CheckTransition validates moving from one status to another.
// Equal statuses are allowed and mean "no change".
func CheckTransition(from, to Status) error {
	if !to.IsValid() {
		return ErrInvalidStatus
	}
	if from == to {
		return nil
	}
	if from.IsTerminal() {
		return fmt.Errorf("cannot move from %s to %s: %w", from, to, ErrTerminalState)
	}
	return nil
}

// IsValidAmount reports whether amount is a non-negative whole number of the smallest unit.
func IsValidAmount(amount decimal.Decimal) bool {
	return !amount.IsNegative() && amount.Equal(amount.Truncate(0))
}

// Balance applies the canonical balance formula: incoming minus outgoing,
// counting COMPLETE transactions only.
func Balance(txs []*Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Status != StatusComplete {
			continue
		}
		switch tx.Direction {
		case DirectionIncoming:
			total = total.Add(tx.Amount)
		case DirectionOutgoing:
			total = total.Sub(tx.Amount)
		}
	}
	return total
}
