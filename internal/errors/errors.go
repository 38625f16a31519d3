// Package errors provides the categorized error taxonomy used across the
// reward service. Every failure is a value carrying a machine-readable
// category and code so callers can branch behavior by kind.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/reward-service/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryInput represents caller-caused input errors (4xx)
	CategoryInput ErrorCategory = "input"
	// CategoryNotFound represents missing resource errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryAuthorization represents policy/metadata authorization errors
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryRepository represents storage layer errors
	CategoryRepository ErrorCategory = "repository"
	// CategorySettlement represents payment trigger errors
	CategorySettlement ErrorCategory = "settlement"
	// CategoryOperational represents deployment/configuration faults
	CategoryOperational ErrorCategory = "operational"
	// CategoryRateLimit represents rate limit errors on the HTTP surface
	CategoryRateLimit ErrorCategory = "rate_limit"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to the wire-level ServiceError shape
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Input errors

// NewInvalidAccountIDError creates an invalid account id error
func NewInvalidAccountIDError(raw string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ACCOUNT_ID",
		Message:    fmt.Sprintf("invalid account id: %s", raw),
		Details: map[string]interface{}{
			"accountId": raw,
		},
	}
}

// NewInvalidRewardIDError creates an unknown reward id error
func NewInvalidRewardIDError(rewardID types.RewardID) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_REWARD_ID",
		Message:    fmt.Sprintf("unknown reward id: %s", rewardID),
		Details: map[string]interface{}{
			"rewardId": string(rewardID),
		},
	}
}

// Not-found errors

// NewNotFoundError creates a not found error for a named resource
func NewNotFoundError(code, resource, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       code,
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewNoWalletForCurrencyError creates an error for an account missing a
// wallet in the reward settlement currency
func NewNoWalletForCurrencyError(accountID types.AccountID, currency types.WalletCurrency) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NO_WALLET_FOR_CURRENCY",
		Message:    fmt.Sprintf("account %s has no %s wallet", accountID, currency),
		Details: map[string]interface{}{
			"accountId": string(accountID),
			"currency":  string(currency),
		},
	}
}

// Authorization errors

// NewInvalidPhoneForRewardError creates an error for a phone signal rejected
// by the phone policy, preserving the inner failure as the cause
func NewInvalidPhoneForRewardError(cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusForbidden,
		Code:       "INVALID_PHONE_FOR_REWARD",
		Message:    "phone number is not eligible for rewards",
		Cause:      cause,
	}
}

// NewInvalidIPMetadataError creates an error for an absent or unusable IP
// signal, preserving the inner failure as the cause
func NewInvalidIPMetadataError(cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusForbidden,
		Code:       "INVALID_IP_METADATA",
		Message:    "ip metadata is missing or invalid",
		Cause:      cause,
	}
}

// NewPolicyDeniedError creates an error for a policy rule denial. The rule
// tag is kept in Details for audit logging; the message stays generic so
// policy internals are not leaked to the end user.
func NewPolicyDeniedError(signal types.SignalType, rule string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusForbidden,
		Code:       "POLICY_DENIED",
		Message:    "request denied by policy",
		Cause:      cause,
		Details: map[string]interface{}{
			"signal": string(signal),
			"rule":   rule,
		},
	}
}

// Repository errors

// NewRepositoryError creates a storage layer error. The caller must treat
// grant state as unknown and must not retry blindly.
func NewRepositoryError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRepository,
		StatusCode: http.StatusInternalServerError,
		Code:       "REPOSITORY_ERROR",
		Message:    fmt.Sprintf("repository error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Settlement errors

// NewSettlementError creates an error for a failed payout transfer. Granted
// marks whether a grant was already recorded, meaning the account is in a
// granted-but-unpaid state that reconciliation has to resolve.
func NewSettlementError(cause error, granted bool) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySettlement,
		StatusCode: http.StatusBadGateway,
		Code:       "SETTLEMENT_ERROR",
		Message:    "reward settlement failed",
		Cause:      cause,
		Details: map[string]interface{}{
			"granted": granted,
		},
	}
}

// Operational errors

// NewFunderMisconfiguredError creates an error for missing or broken funding
// wallet configuration. This is a deployment fault, not a user one.
func NewFunderMisconfiguredError(detail string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryOperational,
		StatusCode: http.StatusInternalServerError,
		Code:       "FUNDER_MISCONFIGURED",
		Message:    fmt.Sprintf("funding wallet misconfigured: %s", detail),
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "rate limit exceeded",
	}
}

// Categorize categorizes an arbitrary error, passing categorized errors
// through unchanged and defaulting everything else to a repository error.
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr
	}

	return NewRepositoryError("unknown", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsCategory reports whether err belongs to the given category
func IsCategory(err error, category ErrorCategory) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Category == category
}

// IsUserError determines if an error is caller-caused (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsAlertable determines if an error should page operations rather than be
// attributed to the caller: misconfiguration and granted-but-unpaid states.
func IsAlertable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	if catErr.Category == CategoryOperational {
		return true
	}
	if catErr.Category == CategorySettlement {
		granted, _ := catErr.Details["granted"].(bool)
		return granted
	}
	return false
}
