package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"shadowledger/internal/domain/account"
	"shadowledger/internal/domain/transaction"
)

// AccountHandler serves the account resources
type AccountHandler struct {
	accounts *account.Service
	txs      *transaction.Service
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts *account.Service, txs *transaction.Service) *AccountHandler {
	return &AccountHandler{accounts: accounts, txs: txs}
}

// CreateAccountRequest is the body of POST /api/accounts
type CreateAccountRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// AccountResponse is an account with its derived balance.
type AccountResponse struct {
	*account.Account
	Balance decimal.Decimal `json:"balance"`
}

// ListAccountsResponse is the body of GET /api/accounts
type ListAccountsResponse struct {
	Accounts   []*account.Account `json:"accounts"`
	Pagination account.PageInfo   `json:"pagination"`
}

// BalanceResponse is the body of GET /api/accounts/{id}/balance
type BalanceResponse struct {
	AccountID string          `json:"accountId"`
	Balance   decimal.Decimal `json:"balance"`
}

// HandleCreateAccount creates an account; 409 when the name is taken.
func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	acc, err := h.accounts.CreateAccount(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, AccountResponse{Account: acc, Balance: decimal.Zero})
}

// HandleListAccounts returns one page of accounts, newest first.
func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", account.DefaultPageLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}

	accounts, info, err := h.accounts.ListAccounts(r.Context(), limit, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []*account.Account{}
	}

	writeJSON(w, http.StatusOK, ListAccountsResponse{Accounts: accounts, Pagination: info})
}

// HandleGetAccount returns an account and its balance.
func (h *AccountHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.RequireAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	balance, err := h.txs.Balance(r.Context(), acc.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AccountResponse{Account: acc, Balance: balance})
}

// HandleGetBalance returns the balance over COMPLETE transactions.
func (h *AccountHandler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.RequireAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	balance, err := h.txs.Balance(r.Context(), acc.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{AccountID: acc.ID, Balance: balance})
}
