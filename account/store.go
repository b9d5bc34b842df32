package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/seoulsafe/sinkhole-api/database"
)

// Store errors.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Store persists users.
type Store interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// SQLStore keeps users in the users table.
type SQLStore struct {
	db *database.SQLClient
}

// NewSQLStore creates a store over an already migrated database.
func NewSQLStore(db *database.SQLClient) *SQLStore {
	return &SQLStore{db: db}
}

// Create inserts a user. A taken email yields ErrDuplicateEmail.
func (s *SQLStore) Create(ctx context.Context, user *User) error {
	_, err := s.db.ExecWithRetry(ctx,
		`INSERT INTO users (id, email, name, password_hash, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.IsActive, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByEmail looks a user up by exact email.
func (s *SQLStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	var (
		user      User
		createdAt database.Timestamp
	)
	err := s.db.QueryRowWithRetry(ctx,
		`SELECT id, email, name, password_hash, is_active, created_at
		 FROM users WHERE email = ?`,
		email,
	).Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.IsActive, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	user.CreatedAt = createdAt.Time
	return &user, nil
}

// SetActive enables or disables login for an account.
func (s *SQLStore) SetActive(ctx context.Context, email string, active bool) error {
	res, err := s.db.ExecWithRetry(ctx, "UPDATE users SET is_active = ? WHERE email = ?", active, email)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		// 2627: unique constraint, 2601: unique index.
		return msErr.Number == 2627 || msErr.Number == 2601
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
