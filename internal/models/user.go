package models

import (
	"time"

	"github.com/reward-service/internal/types"
)

// User represents the identity profile linked to an account
type User struct {
	ID            types.UserID   `json:"id" db:"id"`
	Phone         string         `json:"phone,omitempty" db:"phone"`
	PhoneMetadata *PhoneMetadata `json:"phoneMetadata,omitempty" db:"phone_metadata"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time      `json:"updatedAt" db:"updated_at"`
}

// PhoneMetadata represents carrier attributes of a registered phone number.
// CountryCode is an ISO 3166-1 alpha-2 code (e.g. "US").
type PhoneMetadata struct {
	CountryCode string `json:"countryCode"`
	Carrier     string `json:"carrier,omitempty"`
	LineType    string `json:"lineType,omitempty"`
}
