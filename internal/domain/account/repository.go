package account

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrAccountNotFound = errors.New("account not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	var a Account
	err := r.db.GetContext(ctx, &a, `
		SELECT id, email, role, COALESCE(phone, '') AS phone, phone_verified, created_at
		FROM accounts WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Exists reports whether the account id refers to a real account
func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id)
	return exists, err
}

// Phone returns the account's registered phone number, empty if none
func (r *Repository) Phone(ctx context.Context, id uuid.UUID) (string, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return a.Phone, nil
}
