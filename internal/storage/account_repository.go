package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/reward-service/internal/models"
	"github.com/reward-service/internal/types"
)

// ErrNotFound is returned by repositories when a row does not exist.
// Callers use errors.Is to distinguish absence from infrastructure failure.
var ErrNotFound = errors.New("not found")

// AccountRepository handles account persistence
type AccountRepository struct {
	db *PostgresDB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *PostgresDB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByID retrieves an account by id
func (r *AccountRepository) GetByID(ctx context.Context, id types.AccountID) (*models.Account, error) {
	query := `
		SELECT id, user_id, status, level, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	var account models.Account
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.UserID,
		&account.Status,
		&account.Level,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}
