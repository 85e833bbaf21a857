// Package testutil provides in-memory stores and fixtures shared by domain tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"shadowledger/internal/domain/account"
	"shadowledger/internal/domain/transaction"
	"shadowledger/internal/domain/webhook"
)

// Store is an in-memory ledger that enforces the same storage guarantees as
// the postgres repositories: unique account names, unique payment hashes and
// no transitions out of terminal states. All methods are safe for concurrent use.
type Store struct {
	mu           sync.Mutex
	accounts     map[string]*account.Account
	accountOrder []string
	txs          map[string]*transaction.Transaction
	txOrder      []string
	webhooks     map[string]*webhook.Webhook
	webhookOrder []string
	seq          int64

	// BeforeCreateTx, when set, runs before every transaction insert. A non-nil
	// error is returned to the caller and nothing is stored.
	BeforeCreateTx func(params transaction.CreateParams) error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*account.Account),
		txs:      make(map[string]*transaction.Transaction),
		webhooks: make(map[string]*webhook.Webhook),
	}
}

// Accounts returns the store as an account.Repository.
func (s *Store) Accounts() *AccountRepo { return &AccountRepo{s: s} }

// Transactions returns the store as a transaction.Repository.
func (s *Store) Transactions() *TransactionRepo { return &TransactionRepo{s: s} }

// Webhooks returns the store as a webhook.Repository.
func (s *Store) Webhooks() *WebhookRepo { return &WebhookRepo{s: s} }

// now returns strictly increasing timestamps so ordering is deterministic.
func (s *Store) now() time.Time {
	s.seq++
	return time.Unix(1_700_000_000, 0).UTC().Add(time.Duration(s.seq) * time.Millisecond)
}

// TransactionCount returns how many transactions are stored.
func (s *Store) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

// AccountRepo implements account.Repository.
type AccountRepo struct{ s *Store }

var _ account.Repository = (*AccountRepo)(nil)

func (r *AccountRepo) Create(_ context.Context, params account.CreateParams) (*account.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, acc := range r.s.accounts {
		if acc.Name == params.Name {
			return nil, account.ErrNameTaken
		}
	}

	now := r.s.now()
	acc := &account.Account{
		ID:          params.ID,
		Name:        params.Name,
		Description: params.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.s.accounts[acc.ID] = acc
	r.s.accountOrder = append(r.s.accountOrder, acc.ID)
	return copyAccount(acc), nil
}

func (r *AccountRepo) GetByID(_ context.Context, id string) (*account.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if acc, ok := r.s.accounts[id]; ok {
		return copyAccount(acc), nil
	}
	return nil, nil
}

func (r *AccountRepo) GetByName(_ context.Context, name string) (*account.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, acc := range r.s.accounts {
		if acc.Name == name {
			return copyAccount(acc), nil
		}
	}
	return nil, nil
}

func (r *AccountRepo) List(_ context.Context, limit, offset int) ([]*account.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := make([]*account.Account, 0, len(r.s.accountOrder))
	for i := len(r.s.accountOrder) - 1; i >= 0; i-- {
		result = append(result, copyAccount(r.s.accounts[r.s.accountOrder[i]]))
	}
	return page(result, limit, offset), nil
}

func (r *AccountRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.accounts)), nil
}

func (r *AccountRepo) ListAll(_ context.Context) ([]*account.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := make([]*account.Account, 0, len(r.s.accountOrder))
	for _, id := range r.s.accountOrder {
		result = append(result, copyAccount(r.s.accounts[id]))
	}
	return result, nil
}

// TransactionRepo implements transaction.Repository.
type TransactionRepo struct{ s *Store }

var _ transaction.Repository = (*TransactionRepo)(nil)

func (r *TransactionRepo) Create(_ context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.insertLocked(params)
}

func (r *TransactionRepo) insertLocked(params transaction.CreateParams) (*transaction.Transaction, error) {
	if r.s.BeforeCreateTx != nil {
		if err := r.s.BeforeCreateTx(params); err != nil {
			return nil, err
		}
	}
	if _, ok := r.s.accounts[params.AccountID]; !ok {
		return nil, account.ErrAccountNotFound
	}
	if _, ok := r.s.txs[params.Hash]; ok {
		return nil, transaction.ErrDuplicateHash
	}

	now := r.s.now()
	tx := &transaction.Transaction{
		ID:             params.ID,
		AccountID:      params.AccountID,
		Hash:           params.Hash,
		Amount:         params.Amount,
		Direction:      params.Direction,
		Status:         params.Status,
		Memo:           params.Memo,
		PaymentRequest: params.PaymentRequest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.s.txs[tx.Hash] = tx
	r.s.txOrder = append(r.s.txOrder, tx.Hash)
	return copyTx(tx), nil
}

func (r *TransactionRepo) CreatePendingOutgoing(_ context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.accounts[params.AccountID]; !ok {
		return nil, account.ErrAccountNotFound
	}

	spendable := decimal.Zero
	for _, tx := range r.s.txs {
		if tx.AccountID != params.AccountID {
			continue
		}
		switch {
		case tx.Status == transaction.StatusComplete && tx.Direction == transaction.DirectionIncoming:
			spendable = spendable.Add(tx.Amount)
		case tx.Direction == transaction.DirectionOutgoing && tx.Status != transaction.StatusFailed:
			spendable = spendable.Sub(tx.Amount)
		}
	}
	if spendable.LessThan(params.Amount) {
		return nil, transaction.ErrInsufficientBalance
	}

	return r.insertLocked(params)
}

func (r *TransactionRepo) GetByHash(_ context.Context, hash string) (*transaction.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if tx, ok := r.s.txs[hash]; ok {
		return copyTx(tx), nil
	}
	return nil, nil
}

func (r *TransactionRepo) UpdateStatus(_ context.Context, hash string, status transaction.Status) (*transaction.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tx, ok := r.s.txs[hash]
	if !ok {
		return nil, transaction.ErrTransactionNotFound
	}
	if err := transaction.CheckTransition(tx.Status, status); err != nil {
		return nil, err
	}
	if tx.Status != status {
		tx.Status = status
		tx.UpdatedAt = r.s.now()
	}
	return copyTx(tx), nil
}

func (r *TransactionRepo) ComputeBalance(_ context.Context, accountID string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var owned []*transaction.Transaction
	for _, tx := range r.s.txs {
		if tx.AccountID == accountID {
			owned = append(owned, tx)
		}
	}
	return transaction.Balance(owned), nil
}

func (r *TransactionRepo) ListByAccountID(_ context.Context, accountID string, limit, offset int) ([]*transaction.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []*transaction.Transaction
	for i := len(r.s.txOrder) - 1; i >= 0; i-- {
		tx := r.s.txs[r.s.txOrder[i]]
		if tx.AccountID == accountID {
			result = append(result, copyTx(tx))
		}
	}
	return page(result, limit, offset), nil
}

// WebhookRepo implements webhook.Repository.
type WebhookRepo struct{ s *Store }

var _ webhook.Repository = (*WebhookRepo)(nil)

func (r *WebhookRepo) Create(_ context.Context, params webhook.CreateParams) (*webhook.Webhook, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.accounts[params.AccountID]; !ok {
		return nil, account.ErrAccountNotFound
	}

	now := r.s.now()
	wh := &webhook.Webhook{
		ID:        params.ID,
		AccountID: params.AccountID,
		URL:       params.URL,
		Secret:    params.Secret,
		Enabled:   params.Enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.webhooks[wh.ID] = wh
	r.s.webhookOrder = append(r.s.webhookOrder, wh.ID)
	c := *wh
	return &c, nil
}

func (r *WebhookRepo) GetByID(_ context.Context, id string) (*webhook.Webhook, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if wh, ok := r.s.webhooks[id]; ok {
		c := *wh
		return &c, nil
	}
	return nil, nil
}

func (r *WebhookRepo) ListByAccountID(_ context.Context, accountID string, enabledOnly bool) ([]*webhook.Webhook, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []*webhook.Webhook
	for _, id := range r.s.webhookOrder {
		wh, ok := r.s.webhooks[id]
		if !ok || wh.AccountID != accountID || (enabledOnly && !wh.Enabled) {
			continue
		}
		c := *wh
		result = append(result, &c)
	}
	return result, nil
}

func (r *WebhookRepo) Update(_ context.Context, id string, params webhook.UpdateParams) (*webhook.Webhook, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	wh, ok := r.s.webhooks[id]
	if !ok {
		return nil, webhook.ErrWebhookNotFound
	}
	if params.URL != nil {
		wh.URL = *params.URL
	}
	if params.Secret != nil {
		wh.Secret = *params.Secret
	}
	if params.Enabled != nil {
		wh.Enabled = *params.Enabled
	}
	wh.UpdatedAt = r.s.now()
	c := *wh
	return &c, nil
}

func (r *WebhookRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.webhooks[id]; !ok {
		return webhook.ErrWebhookNotFound
	}
	delete(r.s.webhooks, id)
	return nil
}

func copyAccount(a *account.Account) *account.Account {
	c := *a
	return &c
}

func copyTx(t *transaction.Transaction) *transaction.Transaction {
	c := *t
	return &c
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// SortedHashes returns every stored hash in lexical order.
func (s *Store) SortedHashes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	hashes := make([]string, 0, len(s.txs))
	for h := range s.txs {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	return hashes
}
