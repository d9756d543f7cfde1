// Package ledger keeps each user's accounts, categories and transactions
// and derives account balances from the transaction history.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"budget-tracker/internal/models"
	"budget-tracker/internal/storage"

	"github.com/shopspring/decimal"
)

// Defaults created for every new user.
var (
	DefaultIncomeCategories  = []string{"Salary", "Freelance", "Investments"}
	DefaultExpenseCategories = []string{"Food", "Transport", "Utilities", "Shopping"}
	DefaultAccounts          = []string{"Cash", "Savings Account", "Card"}
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 200
)

// ErrNotOwned is returned when a transaction references an account or
// category that belongs to someone else or does not exist.
var ErrNotOwned = errors.New("account or category not found")

// Service implements the ledger operations. Every call runs in its own
// datastore transaction.
type Service struct {
	db *storage.DB
}

// NewService creates a ledger backed by db.
func NewService(db *storage.DB) *Service {
	return &Service{db: db}
}

// SeedDefaults creates the default categories and zero-balance accounts for
// userID inside tx. Rows the user already has are left alone, so calling it
// again does not duplicate anything.
func SeedDefaults(ctx context.Context, tx *storage.Tx, userID int64) error {
	for _, name := range DefaultIncomeCategories {
		if _, err := tx.EnsureCategory(ctx, userID, name, models.Income); err != nil {
			return err
		}
	}
	for _, name := range DefaultExpenseCategories {
		if _, err := tx.EnsureCategory(ctx, userID, name, models.Expense); err != nil {
			return err
		}
	}
	for _, name := range DefaultAccounts {
		if _, err := tx.EnsureAccount(ctx, userID, name, decimal.Zero); err != nil {
			return err
		}
	}
	return nil
}

// SeedDefaults runs the package-level SeedDefaults in its own transaction.
func (s *Service) SeedDefaults(ctx context.Context, userID int64) error {
	return s.db.WithTx(ctx, func(tx *storage.Tx) error {
		return SeedDefaults(ctx, tx, userID)
	})
}

// AddAccount creates an account. The initial balance may be negative.
func (s *Service) AddAccount(ctx context.Context, userID int64, name string, initialBalance decimal.Decimal) (*models.Account, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if err := checkMagnitude("initial_balance", initialBalance); err != nil {
		return nil, err
	}

	var account *models.Account
	err = s.db.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		account, err = tx.CreateAccount(ctx, userID, name, initialBalance)
		return err
	})
	return account, err
}

// AddCategory creates a category of the given type.
func (s *Service) AddCategory(ctx context.Context, userID int64, name string, categoryType models.TransactionType) (*models.Category, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if !categoryType.Valid() {
		return nil, &ValidationError{Field: "category_type", Msg: "must be income or expense"}
	}

	var category *models.Category
	err = s.db.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		category, err = tx.CreateCategory(ctx, userID, name, categoryType)
		return err
	})
	return category, err
}

// AddTransaction appends a transaction after checking that the referenced
// account and category belong to userID.
func (s *Service) AddTransaction(ctx context.Context, userID int64, in TransactionInput) (*models.Transaction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		UserID:          userID,
		Amount:          in.Amount,
		CategoryID:      in.CategoryID,
		AccountID:       in.AccountID,
		Description:     strings.TrimSpace(in.Description),
		Timestamp:       in.Timestamp,
		TransactionType: in.Type,
	}

	err := s.db.WithTx(ctx, func(tx *storage.Tx) error {
		account, err := tx.GetAccount(ctx, in.AccountID)
		if err := owned(err, account != nil && account.UserID == userID); err != nil {
			return err
		}
		category, err := tx.GetCategory(ctx, in.CategoryID)
		if err := owned(err, category != nil && category.UserID == userID); err != nil {
			return err
		}
		return tx.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func owned(lookupErr error, ok bool) error {
	switch {
	case errors.Is(lookupErr, storage.ErrNotFound):
		return ErrNotOwned
	case lookupErr != nil:
		return lookupErr
	case !ok:
		return ErrNotOwned
	}
	return nil
}

// ComputeBalance returns the account's initial balance plus its income minus
// its expenses. It does not check who owns the account; callers must.
func (s *Service) ComputeBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		balance, err = computeBalance(ctx, tx, accountID)
		return err
	})
	return balance, err
}

func computeBalance(ctx context.Context, tx *storage.Tx, accountID int64) (decimal.Decimal, error) {
	account, err := tx.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get account %d: %w", accountID, err)
	}
	txns, err := tx.ListAccountTransactions(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list transactions of account %d: %w", accountID, err)
	}
	return Balance(account.InitialBalance, txns), nil
}

// Balance replays txns on top of initial. Transactions of an unknown type
// contribute nothing.
func Balance(initial decimal.Decimal, txns []models.Transaction) decimal.Decimal {
	balance := initial
	for _, t := range txns {
		switch t.TransactionType {
		case models.Income:
			balance = balance.Add(t.Amount)
		case models.Expense:
			balance = balance.Sub(t.Amount)
		}
	}
	return balance
}

// AccountBalance is an account together with its derived balance.
type AccountBalance struct {
	models.Account
	Balance decimal.Decimal
}

// Dashboard lists userID's accounts with their balances.
func (s *Service) Dashboard(ctx context.Context, userID int64) ([]AccountBalance, error) {
	var result []AccountBalance
	err := s.db.WithTx(ctx, func(tx *storage.Tx) error {
		accounts, err := tx.ListAccounts(ctx, userID)
		if err != nil {
			return err
		}
		result = make([]AccountBalance, 0, len(accounts))
		for _, a := range accounts {
			balance, err := computeBalance(ctx, tx, a.ID)
			if err != nil {
				return err
			}
			result = append(result, AccountBalance{Account: a, Balance: balance})
		}
		return nil
	})
	return result, err
}

// ListTransactions returns userID's transactions, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := s.db.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		txns, err = tx.ListTransactions(ctx, userID)
		return err
	})
	return txns, err
}

// ListAccounts returns userID's accounts.
func (s *Service) ListAccounts(ctx context.Context, userID int64) ([]models.Account, error) {
	var accounts []models.Account
	err := s.db.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, userID)
		return err
	})
	return accounts, err
}

// ListCategories returns userID's categories.
func (s *Service) ListCategories(ctx context.Context, userID int64) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		categories, err = tx.ListCategories(ctx, userID)
		return err
	})
	return categories, err
}

// Overview is everything the transactions page shows, read from one snapshot.
type Overview struct {
	Transactions []models.Transaction
	Accounts     []models.Account
	Categories   []models.Category
}

// Overview reads userID's transactions, accounts and categories together.
func (s *Service) Overview(ctx context.Context, userID int64) (*Overview, error) {
	var o Overview
	err := s.db.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		if o.Transactions, err = tx.ListTransactions(ctx, userID); err != nil {
			return err
		}
		if o.Accounts, err = tx.ListAccounts(ctx, userID); err != nil {
			return err
		}
		o.Categories, err = tx.ListCategories(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: "name", Msg: "is required"}
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", &ValidationError{Field: "name", Msg: fmt.Sprintf("must be at most %d characters", maxNameLength)}
	}
	return name, nil
}
