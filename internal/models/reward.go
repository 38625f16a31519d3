package models

import (
	"time"

	"github.com/reward-service/internal/types"
)

// RewardGrant represents a write-once grant ledger row keyed by
// (account, reward). Settled flips to true after the payout transfer
// is confirmed; the row itself is never deleted or un-granted.
type RewardGrant struct {
	AccountID types.AccountID `json:"accountId" db:"account_id"`
	RewardID  types.RewardID  `json:"rewardId" db:"reward_id"`
	Amount    int64           `json:"amount" db:"amount"`
	Settled   bool            `json:"settled" db:"settled"`
	SettledAt *time.Time      `json:"settledAt,omitempty" db:"settled_at"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

// RewardReceipt is returned to the caller after a successful claim
type RewardReceipt struct {
	RewardID       types.RewardID `json:"rewardId"`
	Amount         int64          `json:"amount"`
	AlreadyGranted bool           `json:"alreadyGranted"`
}

// RewardStatus describes one catalog entry from an account's perspective
type RewardStatus struct {
	RewardID  types.RewardID `json:"rewardId"`
	Amount    int64          `json:"amount"`
	Completed bool           `json:"completed"`
}

// AuditEvent records a single policy authorization decision for offline
// analysis. Rule is empty unless the outcome is a denial.
type AuditEvent struct {
	AccountID types.AccountID            `json:"accountId"`
	RewardID  types.RewardID             `json:"rewardId"`
	Signal    types.SignalType           `json:"signal"`
	Outcome   types.AuthorizationOutcome `json:"outcome"`
	Rule      string                     `json:"rule,omitempty"`
	Country   string                     `json:"country,omitempty"`
	ASN       string                     `json:"asn,omitempty"`
	CreatedAt time.Time                  `json:"createdAt"`
}
