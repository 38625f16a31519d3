package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/reward-service/internal/models"
	"github.com/reward-service/internal/types"
)

// AccountIPRepository handles the append-only account IP history
type AccountIPRepository struct {
	db *PostgresDB
}

// NewAccountIPRepository creates a new account IP repository
func NewAccountIPRepository(db *PostgresDB) *AccountIPRepository {
	return &AccountIPRepository{db: db}
}

// Record appends one IP observation for an account
func (r *AccountIPRepository) Record(ctx context.Context, accountID types.AccountID, metadata *models.IPMetadata) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal ip metadata: %w", err)
	}

	query := `
		INSERT INTO account_ips (account_id, metadata, seen_at)
		VALUES ($1, $2, $3)
	`

	if _, err := r.db.Pool().Exec(ctx, query, accountID, metadataJSON, time.Now()); err != nil {
		return fmt.Errorf("failed to record account ip: %w", err)
	}

	return nil
}

// FindLastByAccount retrieves the most recently observed IP metadata for an
// account. The eligibility pipeline consumes only this entry, never the
// full history.
func (r *AccountIPRepository) FindLastByAccount(ctx context.Context, accountID types.AccountID) (*models.AccountIP, error) {
	query := `
		SELECT account_id, metadata, seen_at
		FROM account_ips
		WHERE account_id = $1
		ORDER BY seen_at DESC
		LIMIT 1
	`

	var accountIP models.AccountIP
	var metadataJSON []byte

	err := r.db.Pool().QueryRow(ctx, query, accountID).Scan(
		&accountIP.AccountID,
		&metadataJSON,
		&accountIP.SeenAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ip history for account %s: %w", accountID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account ip: %w", err)
	}

	if err := json.Unmarshal(metadataJSON, &accountIP.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ip metadata: %w", err)
	}

	return &accountIP, nil
}
