package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"shadowledger/internal/domain/account"
	"shadowledger/internal/domain/transaction"
)

const transactionColumns = `id, account_id, hash, amount, direction, status, memo, payment_request, created_at, updated_at`

// TransactionRepository implements transaction.Repository. Uniqueness of the
// hash and the terminal-state guard are enforced by the schema; this type
// translates those violations into domain errors.
type TransactionRepository struct {
	db *DB
}

var _ transaction.Repository = (*TransactionRepository)(nil)

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func scanTransaction(r row) (*transaction.Transaction, error) {
	var tx transaction.Transaction
	var memo, paymentRequest sql.NullString

	err := r.Scan(
		&tx.ID, &tx.AccountID, &tx.Hash, &tx.Amount, &tx.Direction, &tx.Status,
		&memo, &paymentRequest, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if memo.Valid {
		tx.Memo = &memo.String
	}
	if paymentRequest.Valid {
		tx.PaymentRequest = &paymentRequest.String
	}
	return &tx, nil
}

const insertTransaction = `
	INSERT INTO transactions (id, account_id, hash, amount, direction, status, memo, payment_request)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING ` + transactionColumns

func insertArgs(p transaction.CreateParams) []any {
	return []any{p.ID, p.AccountID, p.Hash, p.Amount, p.Direction, p.Status, p.Memo, p.PaymentRequest}
}

func mapInsertError(err error) error {
	switch {
	case isUniqueViolation(err):
		return transaction.ErrDuplicateHash
	case isForeignKeyViolation(err), isInvalidText(err):
		return account.ErrAccountNotFound
	case isCheckViolation(err):
		return fmt.Errorf("rejected by schema: %v: %w", err, transaction.ErrInvalidAmount)
	default:
		return fmt.Errorf("failed to create transaction: %w", err)
	}
}

// Create records a transaction; a second insert of the same hash fails.
func (r *TransactionRepository) Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, insertTransaction, insertArgs(params)...))
	if err != nil {
		return nil, mapInsertError(err)
	}
	return tx, nil
}

// CreatePendingOutgoing locks the account row, checks the spendable balance
// and inserts the PENDING OUTGOING row in one transaction. Concurrent sends
// from the same account serialize on the lock.
func (r *TransactionRepository) CreatePendingOutgoing(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	var created *transaction.Transaction

	err := r.db.WithTx(ctx, "create_pending_outgoing", func(sqlTx *sql.Tx) error {
		var locked string
		err := sqlTx.QueryRowContext(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, params.AccountID).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return account.ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock account: %w", err)
		}

		var spendable decimal.Decimal
		err = sqlTx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(CASE
				WHEN direction = 'INCOMING' AND status = 'COMPLETE' THEN amount
				WHEN direction = 'OUTGOING' AND status IN ('COMPLETE', 'PENDING') THEN -amount
				ELSE 0
			END), 0)
			FROM transactions
			WHERE account_id = $1
		`, params.AccountID).Scan(&spendable)
		if err != nil {
			return fmt.Errorf("failed to compute spendable balance: %w", err)
		}

		if spendable.LessThan(params.Amount) {
			return fmt.Errorf("spendable %s, requested %s: %w", spendable, params.Amount, transaction.ErrInsufficientBalance)
		}

		created, err = scanTransaction(sqlTx.QueryRowContext(ctx, insertTransaction, insertArgs(params)...))
		if err != nil {
			return mapInsertError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByHash retrieves a transaction by canonical hash
func (r *TransactionRepository) GetByHash(ctx context.Context, hash string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE hash = $1`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// UpdateStatus moves a transaction to status under a row lock.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, hash string, status transaction.Status) (*transaction.Transaction, error) {
	var result *transaction.Transaction

	err := r.db.WithTx(ctx, "update_transaction_status", func(sqlTx *sql.Tx) error {
		current, err := scanTransaction(sqlTx.QueryRowContext(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE hash = $1 FOR UPDATE`, hash))
		if errors.Is(err, sql.ErrNoRows) {
			return transaction.ErrTransactionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock transaction: %w", err)
		}

		if err := transaction.CheckTransition(current.Status, status); err != nil {
			return err
		}
		if current.Status == status {
			result = current
			return nil
		}

		result, err = scanTransaction(sqlTx.QueryRowContext(ctx, `
			UPDATE transactions SET status = $2
			WHERE hash = $1
			RETURNING `+transactionColumns, hash, status))
		if isCheckViolation(err) {
			return fmt.Errorf("%v: %w", err, transaction.ErrTerminalState)
		}
		if err != nil {
			return fmt.Errorf("failed to update transaction status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ComputeBalance sums COMPLETE incoming minus COMPLETE outgoing amounts.
func (r *TransactionRepository) ComputeBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'INCOMING' THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE account_id = $1 AND status = 'COMPLETE'
	`, accountID).Scan(&balance)
	if isInvalidText(err) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute balance: %w", err)
	}
	return balance, nil
}

// ListByAccountID returns an account's transactions, newest first
func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, limit, offset)
	if isInvalidText(err) {
		return []*transaction.Transaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txs := []*transaction.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}
