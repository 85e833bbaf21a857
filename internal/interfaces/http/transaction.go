package http

import (
	"net/http"

	"shadowledger/internal/domain/account"
	"shadowledger/internal/domain/transaction"
)

type TransactionHandler struct {
	accounts *account.Service
	txs      *transaction.Service
}

func NewTransactionHandler(accounts *account.Service, txs *transaction.Service) *TransactionHandler {
	return &TransactionHandler{accounts: accounts, txs: txs}
}

// ListTransactionsResponse is the body of GET /api/accounts/{id}/transactions
type ListTransactionsResponse struct {
	Transactions []*transaction.Transaction `json:"transactions"`
	Limit        int                        `json:"limit"`
	Offset       int                        `json:"offset"`
}

// HandleListByAccount returns an account's transactions, newest first.
func (h *TransactionHandler) HandleListByAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.RequireAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	txs, err := h.txs.ListByAccount(r.Context(), acc.ID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []*transaction.Transaction{}
	}

	writeJSON(w, http.StatusOK, ListTransactionsResponse{Transactions: txs, Limit: limit, Offset: offset})
}

// HandleGetByHash looks a transaction up by payment hash in hex or base64.
func (h *TransactionHandler) HandleGetByHash(w http.ResponseWriter, r *http.Request) {
	tx, err := h.txs.GetByHash(r.Context(), r.PathValue("hash"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tx == nil {
		writeError(w, r, transaction.ErrTransactionNotFound)
		return
	}

	writeJSON(w, http.StatusOK, tx)
}
