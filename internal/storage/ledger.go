package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"budget-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// CreateAccount inserts an account owned by userID.
func (tx *Tx) CreateAccount(ctx context.Context, userID int64, name string, initialBalance decimal.Decimal) (*models.Account, error) {
	result, err := tx.q.ExecContext(ctx,
		"INSERT INTO accounts (user_id, name, initial_balance) VALUES (?, ?, ?)",
		userID, name, initialBalance.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Account{ID: id, UserID: userID, Name: name, InitialBalance: initialBalance}, nil
}

// EnsureAccount inserts the account unless userID already owns one with
// the same name. It reports whether a row was created.
func (tx *Tx) EnsureAccount(ctx context.Context, userID int64, name string, initialBalance decimal.Decimal) (bool, error) {
	result, err := tx.q.ExecContext(ctx, `
		INSERT INTO accounts (user_id, name, initial_balance)
		SELECT ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM accounts WHERE user_id = ? AND name = ?)`,
		userID, name, initialBalance.String(), userID, name,
	)
	if err != nil {
		return false, fmt.Errorf("ensure account: %w", err)
	}
	return affected(result)
}

// GetAccount retrieves an account by ID regardless of owner.
func (tx *Tx) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	row := tx.q.QueryRowContext(ctx,
		"SELECT id, user_id, name, initial_balance FROM accounts WHERE id = ?",
		id,
	)

	var a models.Account
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.InitialBalance); err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// ListAccounts returns the accounts owned by userID in creation order.
func (tx *Tx) ListAccounts(ctx context.Context, userID int64) ([]models.Account, error) {
	rows, err := tx.q.QueryContext(ctx,
		"SELECT id, user_id, name, initial_balance FROM accounts WHERE user_id = ? ORDER BY id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.InitialBalance); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CreateCategory inserts a category owned by userID.
func (tx *Tx) CreateCategory(ctx context.Context, userID int64, name string, categoryType models.TransactionType) (*models.Category, error) {
	result, err := tx.q.ExecContext(ctx,
		"INSERT INTO categories (user_id, name, category_type) VALUES (?, ?, ?)",
		userID, name, string(categoryType),
	)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Category{ID: id, UserID: userID, Name: name, CategoryType: categoryType}, nil
}

// EnsureCategory inserts the category unless userID already owns one with
// the same name and type. It reports whether a row was created.
func (tx *Tx) EnsureCategory(ctx context.Context, userID int64, name string, categoryType models.TransactionType) (bool, error) {
	result, err := tx.q.ExecContext(ctx, `
		INSERT INTO categories (user_id, name, category_type)
		SELECT ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM categories WHERE user_id = ? AND name = ? AND category_type = ?
		)`,
		userID, name, string(categoryType), userID, name, string(categoryType),
	)
	if err != nil {
		return false, fmt.Errorf("ensure category: %w", err)
	}
	return affected(result)
}

// GetCategory retrieves a category by ID regardless of owner.
func (tx *Tx) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	row := tx.q.QueryRowContext(ctx,
		"SELECT id, user_id, name, category_type FROM categories WHERE id = ?",
		id,
	)

	var c models.Category
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.CategoryType); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListCategories returns the categories owned by userID in creation order.
func (tx *Tx) ListCategories(ctx context.Context, userID int64) ([]models.Category, error) {
	rows, err := tx.q.QueryContext(ctx,
		"SELECT id, user_id, name, category_type FROM categories WHERE user_id = ? ORDER BY id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.CategoryType); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateTransaction appends a ledger entry and sets t.ID.
// A zero timestamp is replaced by the current time.
func (tx *Tx) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	t.Timestamp = t.Timestamp.UTC()

	result, err := tx.q.ExecContext(ctx, `
		INSERT INTO transactions
			(user_id, amount, category_id, account_id, description, timestamp, transaction_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Amount.String(), t.CategoryID, t.AccountID, t.Description, t.Timestamp, string(t.TransactionType),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

const transactionColumns = "id, user_id, amount, category_id, account_id, description, timestamp, transaction_type"

// ListTransactions returns the transactions owned by userID, newest first.
// Equal timestamps keep insertion order.
func (tx *Tx) ListTransactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	return tx.queryTransactions(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = ? ORDER BY timestamp DESC, id ASC",
		userID,
	)
}

// ListAccountTransactions returns every transaction booked on accountID,
// whoever owns it, in insertion order.
func (tx *Tx) ListAccountTransactions(ctx context.Context, accountID int64) ([]models.Transaction, error) {
	return tx.queryTransactions(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE account_id = ? ORDER BY id",
		accountID,
	)
}

func (tx *Tx) queryTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := tx.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.CategoryID, &t.AccountID,
			&t.Description, &t.Timestamp, &t.TransactionType); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
