package models

import (
	"time"

	"github.com/reward-service/internal/types"
)

// IPMetadata represents geolocation and network attributes of an observed
// IP address. Country is an ISO 3166-1 alpha-2 code; ASN carries the "AS"
// prefix (e.g. "AS1234").
type IPMetadata struct {
	IP      string `json:"ip"`
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
	ASN     string `json:"asn,omitempty"`
	ASNOrg  string `json:"asnOrg,omitempty"`
	Proxy   bool   `json:"proxy"`
}

// AccountIP represents one observation of account activity from an IP.
// Rows are append-only; eligibility checks consume only the most recent one.
type AccountIP struct {
	AccountID types.AccountID `json:"accountId" db:"account_id"`
	Metadata  IPMetadata      `json:"metadata" db:"metadata"`
	SeenAt    time.Time       `json:"seenAt" db:"seen_at"`
}
