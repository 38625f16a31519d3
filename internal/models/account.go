// Package models provides data models for the reward service.
package models

import (
	"time"

	"github.com/reward-service/internal/types"
)

// Account represents a wallet-holding account
type Account struct {
	ID        types.AccountID     `json:"id" db:"id"`
	UserID    types.UserID        `json:"userId" db:"user_id"`
	Status    types.AccountStatus `json:"status" db:"status"`
	Level     int                 `json:"level" db:"level"`
	CreatedAt time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time           `json:"updatedAt" db:"updated_at"`
}
