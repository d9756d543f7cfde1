package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"budget-tracker/internal/auth"
	"budget-tracker/internal/ledger"
	"budget-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// DashboardViewModel is the data passed to the dashboard template.
type DashboardViewModel struct {
	Page
	Accounts []ledger.AccountBalance
	Total    decimal.Decimal
}

// Dashboard renders the user's accounts with their balances.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request, s auth.Session) {
	accounts, err := h.ledger.Dashboard(r.Context(), s.UserID)
	if err != nil {
		h.serverError(w, r, "dashboard failed", err)
		return
	}

	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}

	h.render(w, r, http.StatusOK, "dashboard.html", DashboardViewModel{
		Page:     Page{Username: s.Username, Flash: popFlash(w, r)},
		Accounts: accounts,
		Total:    total,
	})
}

// TransactionRow is a transaction as shown in the history table.
type TransactionRow struct {
	models.Transaction
	When         string
	AccountName  string
	CategoryName string
}

// TransactionsViewModel is the data passed to the transactions template.
type TransactionsViewModel struct {
	Page
	Transactions []TransactionRow
	Accounts     []models.Account
	Categories   []models.Category
	Now          string
}

// ListTransactions renders the transaction history and the entry forms.
func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request, s auth.Session) {
	h.renderTransactions(w, r, s, http.StatusOK, "")
}

func (h *Handlers) renderTransactions(w http.ResponseWriter, r *http.Request, s auth.Session, status int, errMsg string) {
	overview, err := h.ledger.Overview(r.Context(), s.UserID)
	if err != nil {
		h.serverError(w, r, "list transactions failed", err)
		return
	}

	accountNames := make(map[int64]string, len(overview.Accounts))
	for _, a := range overview.Accounts {
		accountNames[a.ID] = a.Name
	}
	categoryNames := make(map[int64]string, len(overview.Categories))
	for _, c := range overview.Categories {
		categoryNames[c.ID] = c.Name
	}

	rows := make([]TransactionRow, 0, len(overview.Transactions))
	for _, t := range overview.Transactions {
		rows = append(rows, TransactionRow{
			Transaction:  t,
			When:         t.Timestamp.Local().Format("2006-01-02 15:04"),
			AccountName:  accountNames[t.AccountID],
			CategoryName: categoryNames[t.CategoryID],
		})
	}

	var flash *Flash
	if errMsg == "" {
		flash = popFlash(w, r)
	}
	h.render(w, r, status, "transactions.html", TransactionsViewModel{
		Page:         Page{Username: s.Username, Flash: flash, Error: errMsg},
		Transactions: rows,
		Accounts:     overview.Accounts,
		Categories:   overview.Categories,
		Now:          time.Now().Format(ledger.TimestampLayout),
	})
}

// CreateTransaction validates the transaction form and appends the transaction.
func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request, s auth.Session) {
	in, err := h.parseTransaction(r)
	if err != nil {
		h.renderTransactions(w, r, s, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if _, err := h.ledger.AddTransaction(r.Context(), s.UserID, in); err != nil {
		h.handleLedgerError(w, r, s, err)
		return
	}

	setFlash(w, "success", "Transaction added!")
	http.Redirect(w, r, "/transactions", http.StatusFound)
}

func (h *Handlers) parseTransaction(r *http.Request) (ledger.TransactionInput, error) {
	var form transactionForm
	if err := h.bindForm(r, &form); err != nil {
		return ledger.TransactionInput{}, err
	}

	amount, err := ledger.ParseAmount(form.Amount)
	if err != nil {
		return ledger.TransactionInput{}, err
	}
	categoryID, err := strconv.ParseInt(form.Category, 10, 64)
	if err != nil {
		return ledger.TransactionInput{}, &ledger.ValidationError{Field: "category", Msg: "is invalid"}
	}
	accountID, err := strconv.ParseInt(form.Account, 10, 64)
	if err != nil {
		return ledger.TransactionInput{}, &ledger.ValidationError{Field: "account", Msg: "is invalid"}
	}
	timestamp, err := ledger.ParseTimestamp(form.Timestamp)
	if err != nil {
		return ledger.TransactionInput{}, err
	}
	txType, err := ledger.ParseTransactionType(form.TransactionType)
	if err != nil {
		return ledger.TransactionInput{}, err
	}

	return ledger.TransactionInput{
		Amount:      amount,
		CategoryID:  categoryID,
		AccountID:   accountID,
		Description: form.Description,
		Timestamp:   timestamp,
		Type:        txType,
	}, nil
}

// ManageAccounts adds an account.
func (h *Handlers) ManageAccounts(w http.ResponseWriter, r *http.Request, s auth.Session) {
	var form accountForm
	if err := h.bindForm(r, &form); err != nil {
		h.renderTransactions(w, r, s, http.StatusUnprocessableEntity, err.Error())
		return
	}
	balance, err := ledger.ParseBalance(form.InitialBalance)
	if err != nil {
		h.renderTransactions(w, r, s, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if _, err := h.ledger.AddAccount(r.Context(), s.UserID, form.Name, balance); err != nil {
		h.handleLedgerError(w, r, s, err)
		return
	}

	setFlash(w, "success", "Account added!")
	http.Redirect(w, r, "/transactions", http.StatusFound)
}

// ManageCategories adds a category.
func (h *Handlers) ManageCategories(w http.ResponseWriter, r *http.Request, s auth.Session) {
	var form categoryForm
	if err := h.bindForm(r, &form); err != nil {
		h.renderTransactions(w, r, s, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if _, err := h.ledger.AddCategory(r.Context(), s.UserID, form.Name, models.TransactionType(form.CategoryType)); err != nil {
		h.handleLedgerError(w, r, s, err)
		return
	}

	setFlash(w, "success", "Category added!")
	http.Redirect(w, r, "/transactions", http.StatusFound)
}

func (h *Handlers) handleLedgerError(w http.ResponseWriter, r *http.Request, s auth.Session, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		h.renderTransactions(w, r, s, http.StatusUnprocessableEntity, verr.Error())
	case errors.Is(err, ledger.ErrNotOwned):
		h.renderTransactions(w, r, s, http.StatusUnprocessableEntity, "Unknown account or category")
	default:
		h.serverError(w, r, "ledger update failed", err)
	}
}
