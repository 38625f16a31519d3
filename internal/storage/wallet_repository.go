package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/reward-service/internal/models"
	"github.com/reward-service/internal/types"
)

// WalletRepository handles wallet persistence
type WalletRepository struct {
	db *PostgresDB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *PostgresDB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetByID retrieves a wallet by id
func (r *WalletRepository) GetByID(ctx context.Context, id types.WalletID) (*models.Wallet, error) {
	query := `
		SELECT id, account_id, currency, created_at
		FROM wallets
		WHERE id = $1
	`

	var wallet models.Wallet
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&wallet.ID,
		&wallet.AccountID,
		&wallet.Currency,
		&wallet.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("wallet %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &wallet, nil
}

// ListByAccount retrieves every wallet belonging to an account
func (r *WalletRepository) ListByAccount(ctx context.Context, accountID types.AccountID) ([]*models.Wallet, error) {
	query := `
		SELECT id, account_id, currency, created_at
		FROM wallets
		WHERE account_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Pool().Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*models.Wallet
	for rows.Next() {
		var wallet models.Wallet
		if err := rows.Scan(
			&wallet.ID,
			&wallet.AccountID,
			&wallet.Currency,
			&wallet.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, &wallet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wallets: %w", err)
	}

	return wallets, nil
}
