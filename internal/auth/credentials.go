package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"budget-tracker/internal/models"
	"budget-tracker/internal/storage"
)

var (
	// ErrDuplicateUsername is returned by Register when the username is taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrAuthFailure covers both unknown usernames and wrong passwords.
	ErrAuthFailure = errors.New("invalid credentials")
	// ErrMissingCredentials is returned when username or password is empty.
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrUsernameTooLong is returned when the username exceeds MaxUsernameLength characters.
	ErrUsernameTooLong = fmt.Errorf("username must be at most %d characters", MaxUsernameLength)
	// ErrPasswordTooLong is returned when the password exceeds MaxPasswordBytes bytes.
	ErrPasswordTooLong = fmt.Errorf("password must be at most %d bytes", MaxPasswordBytes)
)

const (
	// MaxUsernameLength is the longest accepted username, in characters.
	MaxUsernameLength = 100
	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = 72
)

// SeedFunc populates data for a freshly registered user inside the
// registration transaction.
type SeedFunc func(ctx context.Context, tx *storage.Tx, userID int64) error

// Credentials stores usernames and password hashes.
type Credentials struct {
	db *storage.DB
}

// NewCredentials creates a credential store backed by db.
func NewCredentials(db *storage.DB) *Credentials {
	return &Credentials{db: db}
}

// Register creates a user. When seed is non-nil it runs in the same
// transaction, so either both the user and its seeded rows exist or neither.
func (c *Credentials) Register(ctx context.Context, username, password string, seed SeedFunc) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return nil, ErrUsernameTooLong
	}
	if len(password) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var user *models.User
	err = c.db.WithTx(ctx, func(tx *storage.Tx) error {
		if _, err := tx.GetUserByUsername(ctx, username); err == nil {
			return ErrDuplicateUsername
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("lookup user: %w", err)
		}

		created, err := tx.CreateUser(ctx, username, hash)
		if errors.Is(err, storage.ErrDuplicate) {
			return ErrDuplicateUsername
		}
		if err != nil {
			return err
		}
		user = created

		if seed != nil {
			if err := seed(ctx, tx, user.ID); err != nil {
				return fmt.Errorf("seed user data: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate returns the user whose username and password match.
func (c *Credentials) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)

	var user *models.User
	err := c.db.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		user, err = tx.GetUserByUsername(ctx, username)
		return err
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		burnCompare(password)
		return nil, ErrAuthFailure
	case err != nil:
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !CheckPassword(password, user.PasswordHash) {
		return nil, ErrAuthFailure
	}
	return user, nil
}
