package models

import (
	"time"

	"github.com/reward-service/internal/types"
)

// Wallet represents a single-currency wallet belonging to an account
type Wallet struct {
	ID        types.WalletID       `json:"id" db:"id"`
	AccountID types.AccountID      `json:"accountId" db:"account_id"`
	Currency  types.WalletCurrency `json:"currency" db:"currency"`
	CreatedAt time.Time            `json:"createdAt" db:"created_at"`
}
