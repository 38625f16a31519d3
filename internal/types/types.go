// Package types provides common type definitions for the reward service.
package types

// AccountID identifies a wallet-holding account.
type AccountID string

// UserID identifies the user profile linked to an account.
type UserID string

// WalletID identifies a single wallet belonging to an account.
type WalletID string

// RewardID identifies an entry in the reward catalog.
type RewardID string

// WalletCurrency represents the settlement currency of a wallet.
type WalletCurrency string

const (
	// CurrencyBtc represents a wallet denominated in satoshis
	CurrencyBtc WalletCurrency = "BTC"
	// CurrencyUsd represents a wallet denominated in USD cents
	CurrencyUsd WalletCurrency = "USD"
)

// AccountStatus represents the lifecycle state of an account
type AccountStatus string

const (
	// AccountStatusActive represents an account in good standing
	AccountStatusActive AccountStatus = "active"
	// AccountStatusLocked represents an account frozen by operations
	AccountStatusLocked AccountStatus = "locked"
)

// AuthorizationOutcome represents the result of a policy evaluation
type AuthorizationOutcome string

const (
	// OutcomeAuthorized represents a signal that passed every policy rule
	OutcomeAuthorized AuthorizationOutcome = "authorized"
	// OutcomeDenied represents a signal rejected by a policy rule
	OutcomeDenied AuthorizationOutcome = "denied"
	// OutcomeMissing represents an absent or unusable signal
	OutcomeMissing AuthorizationOutcome = "missing"
)

// SignalType identifies which metadata source a policy evaluated
type SignalType string

const (
	// SignalPhone represents phone carrier metadata
	SignalPhone SignalType = "phone"
	// SignalIP represents IP geolocation/network metadata
	SignalIP SignalType = "ip"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
