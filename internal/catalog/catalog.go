// Package catalog provides the static reward catalog: an immutable mapping
// from reward id to a fixed payout amount in the settlement currency's base
// unit. The catalog is loaded once at process start and never mutated.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/reward-service/internal/types"
)

// defaultEntries is the built-in onboarding quiz catalog. Amounts are sats.
var defaultEntries = map[types.RewardID]int64{
	"walletDownloaded":          1,
	"walletActivated":           1,
	"whatIsBitcoin":             1,
	"sat":                       2,
	"whereBitcoinExist":         5,
	"whoControlsBitcoin":        5,
	"copyBitcoin":               5,
	"moneyImportantGovernement": 10,
	"moneyIsImportant":          10,
	"whyStonesShellGold":        10,
	"moneyEvolution":            10,
	"coincidenceOfWants":        10,
	"moneySocialAggrement":      10,
	"WhatIsFiat":                10,
	"whyCareAboutFiatMoney":     10,
	"GovernementCanPrintMoney":  10,
	"FiatLosesValueOverTime":    10,
	"OtherIssues":               10,
	"LimitedSupply":             20,
	"Decentralized":             20,
	"NoCounterfeitMoney":        20,
	"HighlyDivisible":           20,
	"securePartOne":             20,
	"securePartTwo":             20,
}

// Catalog is an immutable reward id to payout amount mapping
type Catalog struct {
	entries map[types.RewardID]int64
}

// NewDefault returns the built-in onboarding catalog
func NewDefault() *Catalog {
	return New(defaultEntries)
}

// New builds a catalog from explicit entries. Entries with non-positive
// amounts are rejected at load time rather than at claim time.
func New(entries map[types.RewardID]int64) *Catalog {
	copied := make(map[types.RewardID]int64, len(entries))
	for id, amount := range entries {
		copied[id] = amount
	}
	return &Catalog{entries: copied}
}

// LoadFromFile builds a catalog from a JSON file of {"rewardId": amount}
// entries, replacing the built-in catalog entirely.
func LoadFromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from deployment config
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var entries map[types.RewardID]int64
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	for id, amount := range entries {
		if amount <= 0 {
			return nil, fmt.Errorf("catalog entry %s has non-positive amount %d", id, amount)
		}
	}

	return New(entries), nil
}

// Load returns the catalog from a file when configured, otherwise the
// built-in default.
func Load(catalogFile string) (*Catalog, error) {
	if catalogFile == "" {
		return NewDefault(), nil
	}
	return LoadFromFile(catalogFile)
}

// Amount returns the payout amount for a reward id. A reward absent from
// the catalog is never payable.
func (c *Catalog) Amount(rewardID types.RewardID) (int64, bool) {
	amount, ok := c.entries[rewardID]
	return amount, ok
}

// Contains reports whether the catalog knows a reward id
func (c *Catalog) Contains(rewardID types.RewardID) bool {
	_, ok := c.entries[rewardID]
	return ok
}

// IDs returns every reward id in stable sorted order, for listings
func (c *Catalog) IDs() []types.RewardID {
	ids := make([]types.RewardID, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of catalog entries
func (c *Catalog) Len() int {
	return len(c.entries)
}
