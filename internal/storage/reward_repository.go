package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/reward-service/internal/models"
	"github.com/reward-service/internal/types"
)

// RewardRepository is the grant ledger. Rows are write-once per
// (account_id, reward_id) key and never deleted.
type RewardRepository struct {
	db *PostgresDB
}

// NewRewardRepository creates a new reward repository
func NewRewardRepository(db *PostgresDB) *RewardRepository {
	return &RewardRepository{db: db}
}

// TryGrant atomically records a grant for (accountID, rewardID). The insert
// is a compare-and-set at the storage layer: under concurrent duplicate
// calls exactly one caller observes alreadyGranted=false.
func (r *RewardRepository) TryGrant(ctx context.Context, accountID types.AccountID, rewardID types.RewardID, amount int64) (alreadyGranted bool, err error) {
	query := `
		INSERT INTO reward_grants (account_id, reward_id, amount, settled, created_at)
		VALUES ($1, $2, $3, false, $4)
		ON CONFLICT (account_id, reward_id) DO NOTHING
	`

	tag, err := r.db.Pool().Exec(ctx, query, accountID, rewardID, amount, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to record grant: %w", err)
	}

	return tag.RowsAffected() == 0, nil
}

// MarkSettled flips the settled flag after the payout transfer confirmed.
// Settling an already-settled grant is a no-op.
func (r *RewardRepository) MarkSettled(ctx context.Context, accountID types.AccountID, rewardID types.RewardID) error {
	query := `
		UPDATE reward_grants
		SET settled = true, settled_at = $3
		WHERE account_id = $1 AND reward_id = $2 AND NOT settled
	`

	if _, err := r.db.Pool().Exec(ctx, query, accountID, rewardID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark grant settled: %w", err)
	}

	return nil
}

// FindUnsettled returns grants recorded before the cutoff whose payout has
// not been confirmed. Used by the reconciliation worker.
func (r *RewardRepository) FindUnsettled(ctx context.Context, olderThan time.Time, limit int) ([]*models.RewardGrant, error) {
	query := `
		SELECT account_id, reward_id, amount, settled, settled_at, created_at
		FROM reward_grants
		WHERE NOT settled AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find unsettled grants: %w", err)
	}
	defer rows.Close()

	var grants []*models.RewardGrant
	for rows.Next() {
		var grant models.RewardGrant
		if err := rows.Scan(
			&grant.AccountID,
			&grant.RewardID,
			&grant.Amount,
			&grant.Settled,
			&grant.SettledAt,
			&grant.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, &grant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate grants: %w", err)
	}

	return grants, nil
}

// ListByAccount returns every grant recorded for an account
func (r *RewardRepository) ListByAccount(ctx context.Context, accountID types.AccountID) ([]*models.RewardGrant, error) {
	query := `
		SELECT account_id, reward_id, amount, settled, settled_at, created_at
		FROM reward_grants
		WHERE account_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Pool().Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []*models.RewardGrant
	for rows.Next() {
		var grant models.RewardGrant
		if err := rows.Scan(
			&grant.AccountID,
			&grant.RewardID,
			&grant.Amount,
			&grant.Settled,
			&grant.SettledAt,
			&grant.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, &grant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate grants: %w", err)
	}

	return grants, nil
}
