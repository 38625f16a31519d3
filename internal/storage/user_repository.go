package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/reward-service/internal/models"
	"github.com/reward-service/internal/types"
)

// UserRepository handles user profile persistence
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id types.UserID) (*models.User, error) {
	query := `
		SELECT id, phone, phone_metadata, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user models.User
	var phoneMetadataJSON []byte

	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Phone,
		&phoneMetadataJSON,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if len(phoneMetadataJSON) > 0 {
		var meta models.PhoneMetadata
		if err := json.Unmarshal(phoneMetadataJSON, &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal phone metadata: %w", err)
		}
		user.PhoneMetadata = &meta
	}

	return &user, nil
}
