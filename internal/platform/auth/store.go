package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Account struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, a *Account) error
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) AccountStore {
	return &Store{db: db}
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*Account, error) {
	const q = `
SELECT user_id, full_name, email, password_hash, role, created_at
FROM users
WHERE email = ?
LIMIT 1
`
	var a Account
	err := s.db.QueryRowContext(ctx, q, email).Scan(
		&a.ID,
		&a.FullName,
		&a.Email,
		&a.PasswordHash,
		&a.Role,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) Create(ctx context.Context, a *Account) error {
	const q = `
INSERT INTO users (user_id, full_name, email, password_hash, role, created_at)
VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
`
	_, err := s.db.ExecContext(ctx, q, a.ID, a.FullName, a.Email, a.PasswordHash, a.Role)
	return err
}
