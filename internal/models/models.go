package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType distinguishes money flowing into an account from money flowing out.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// User represents a registered user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account is a place money is kept, such as cash or a card.
type Account struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	Name           string          `json:"name"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// Category labels transactions. CategoryType uses the same values as TransactionType.
type Category struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Name         string          `json:"name"`
	CategoryType TransactionType `json:"category_type"`
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	CategoryID      int64           `json:"category_id"`
	AccountID       int64           `json:"account_id"`
	Description     string          `json:"description"`
	Timestamp       time.Time       `json:"timestamp"`
	TransactionType TransactionType `json:"transaction_type"`
}
