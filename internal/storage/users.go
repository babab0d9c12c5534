package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"financier/internal/core"
)

// CreateUser inserts a new user. It returns false, not an error, when the
// username is already taken; duplicate creation is an expected outcome on
// every first-contact message.
func (s *LedgerStore) CreateUser(ctx context.Context, username, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE username = ?", username).Scan(&one)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("check user existence: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (username, email, created_at) VALUES (?, ?, ?)",
		username,
		sql.NullString{String: email, Valid: email != ""},
		s.formatTime(s.now()),
	)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "username", username)
	return true, nil
}

// GetUser returns nil when the username is unknown.
func (s *LedgerStore) GetUser(ctx context.Context, username string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT username, email, created_at FROM users WHERE username = ?", username)

	u, err := s.scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *LedgerStore) ListUsers(ctx context.Context) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT username, email, created_at FROM users")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := s.scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *LedgerStore) scanUser(row rowScanner) (*core.User, error) {
	var (
		u       core.User
		email   sql.NullString
		created string
	)
	if err := row.Scan(&u.Username, &email, &created); err != nil {
		return nil, err
	}
	u.Email = email.String

	createdAt, err := s.parseTime(created)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = createdAt
	return &u, nil
}
