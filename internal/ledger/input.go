package ledger

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"budget-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// Bounds on user-supplied amounts. Values are kept well inside what the
// datastore text column and decimal arithmetic handle cheaply.
const (
	maxNumberLength  = 32
	maxIntegerDigits = 15
	maxDecimalPlaces = 8
)

// TimestampLayout is the format of user-supplied transaction timestamps,
// matching an HTML datetime-local input.
const TimestampLayout = "2006-01-02T15:04"

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Msg
}

// TransactionInput holds the fields of a new transaction. A zero Timestamp
// means "now".
type TransactionInput struct {
	Amount      decimal.Decimal
	CategoryID  int64
	AccountID   int64
	Description string
	Timestamp   time.Time
	Type        models.TransactionType
}

func (in TransactionInput) validate() error {
	if in.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Msg: "must not be negative"}
	}
	if err := checkMagnitude("amount", in.Amount); err != nil {
		return err
	}
	if !in.Type.Valid() {
		return &ValidationError{Field: "transaction_type", Msg: "must be income or expense"}
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLength {
		return &ValidationError{Field: "description", Msg: fmt.Sprintf("must be at most %d characters", maxDescriptionLength)}
	}
	return nil
}

// ParseAmount parses a non-negative transaction amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := parseDecimal("amount", s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, &ValidationError{Field: "amount", Msg: "must not be negative"}
	}
	return d, nil
}

// ParseBalance parses an initial account balance, which may be negative.
func ParseBalance(s string) (decimal.Decimal, error) {
	return parseDecimal("initial_balance", s)
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &ValidationError{Field: field, Msg: "is required"}
	}
	// Exponent notation would let a short string stand for an enormous value.
	if len(s) > maxNumberLength || strings.ContainsAny(s, "eE") {
		return decimal.Zero, &ValidationError{Field: field, Msg: "must be a number"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Msg: "must be a number"}
	}
	if err := checkMagnitude(field, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// checkMagnitude rejects values with more than maxIntegerDigits digits before
// the point or maxDecimalPlaces after it. It reads only the coefficient and
// exponent, so it stays cheap for any input.
func checkMagnitude(field string, d decimal.Decimal) error {
	if d.IsZero() {
		return nil
	}
	exp := int64(d.Exponent())
	if exp < -maxDecimalPlaces {
		return &ValidationError{Field: field, Msg: fmt.Sprintf("must have at most %d decimal places", maxDecimalPlaces)}
	}
	if int64(d.NumDigits())+exp > maxIntegerDigits {
		return &ValidationError{Field: field, Msg: "is too large"}
	}
	return nil
}

// ParseTimestamp parses s in TimestampLayout as local time. An empty string
// yields the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "timestamp", Msg: "must look like 2006-01-02T15:04"}
	}
	return t, nil
}

// ParseTransactionType parses "income" or "expense".
func ParseTransactionType(s string) (models.TransactionType, error) {
	t := models.TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &ValidationError{Field: "transaction_type", Msg: "must be income or expense"}
	}
	return t, nil
}
