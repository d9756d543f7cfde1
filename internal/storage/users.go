package storage

import (
	"context"
	"fmt"

	"budget-tracker/internal/models"
)

// CreateUser creates a new user with the given username and password hash.
// It returns ErrDuplicate when the username is taken.
func (tx *Tx) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	result, err := tx.q.ExecContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
		username, passwordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return tx.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (tx *Tx) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := tx.q.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE id = ?",
		id,
	)

	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetUserByUsername retrieves a user by exact, case-sensitive username.
func (tx *Tx) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := tx.q.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?",
		username,
	)

	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UserCount returns the number of users in the database.
func (tx *Tx) UserCount(ctx context.Context) (int, error) {
	var count int
	err := tx.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}
