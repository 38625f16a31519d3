package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/reward-service/internal/models"
)

// AuditRepository writes policy authorization decisions to ClickHouse for
// offline analysis and alerting. Writes are best-effort from the caller's
// point of view; a failed audit write never fails a claim.
type AuditRepository struct {
	db *ClickHouseDB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *ClickHouseDB) *AuditRepository {
	return &AuditRepository{db: db}
}

// RecordDecision inserts one authorization decision
func (r *AuditRepository) RecordDecision(ctx context.Context, event *models.AuditEvent) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO authorization_decisions
			(account_id, reward_id, signal, outcome, rule, country, asn, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.db.Exec(ctx, query,
		string(event.AccountID),
		string(event.RewardID),
		string(event.Signal),
		string(event.Outcome),
		event.Rule,
		event.Country,
		event.ASN,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record authorization decision: %w", err)
	}

	return nil
}
