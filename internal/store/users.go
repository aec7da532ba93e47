package store

import (
	"database/sql"
	"fmt"
	"time"
)

// User holds a reputation balance. Accounts are issued by the identity
// provider; the engine only seeds and mutates balances.
type User struct {
	ID                string
	ReputationBalance float64
	NaturalFrequency  float64
	CreatedAt         int64
}

// SeedUser creates a user with an initial reputation balance. If the user
// already exists it is returned unchanged — seeding is idempotent and never
// resets a live balance.
func (db *DB) SeedUser(id string, balance, naturalFrequency float64) (*User, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: user id required", ErrValidation)
	}
	if balance < 0 {
		return nil, fmt.Errorf("%w: initial balance must be >= 0", ErrValidation)
	}

	existing, err := db.GetUser(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO users (id, reputation_balance, natural_frequency, created_at)
		VALUES (?, ?, ?, ?)
	`, id, balance, naturalFrequency, now)
	if err != nil {
		return nil, fmt.Errorf("seed user: %w", err)
	}
	return &User{ID: id, ReputationBalance: balance, NaturalFrequency: naturalFrequency, CreatedAt: now}, nil
}

// GetUser returns a user by id, or nil if not found.
func (db *DB) GetUser(id string) (*User, error) {
	var u User
	err := db.QueryRow(`
		SELECT id, reputation_balance, natural_frequency, created_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.ReputationBalance, &u.NaturalFrequency, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
