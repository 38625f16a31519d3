// Package authz implements the configuration-driven policy authorizer used
// by the reward eligibility pipeline. One evaluator handles both phone and
// IP signals; the two instances differ only in their configured rule sets.
package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reward-service/internal/config"
	"github.com/reward-service/internal/models"
)

// Rule tags identify which policy rule rejected a signal. They are recorded
// in audit logs but never shown to end users.
const (
	RuleProxyDenied       = "proxy_denied"
	RuleCountryDenied     = "country_denied"
	RuleCountryNotAllowed = "country_not_allowed"
	RuleASNDenied         = "asn_denied"
	RuleASNNotAllowed     = "asn_not_allowed"
)

// ErrMissingMetadata is returned when a signal is absent or carries no
// usable country token. Callers decide whether this is fatal or mapped to
// a softer outcome.
var ErrMissingMetadata = errors.New("metadata is missing")

// DeniedError reports a policy rule rejection
type DeniedError struct {
	Rule  string
	Token string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("policy denied: %s (%s)", e.Rule, e.Token)
}

// Signal is the projection of phone or IP metadata the policy evaluates
type Signal struct {
	Country string
	ASN     string
	Proxy   bool
}

// PhoneSignal projects phone carrier metadata onto a policy signal
func PhoneSignal(meta *models.PhoneMetadata) *Signal {
	if meta == nil {
		return nil
	}
	return &Signal{Country: meta.CountryCode}
}

// IPSignal projects IP network metadata onto a policy signal
func IPSignal(meta *models.IPMetadata) *Signal {
	if meta == nil {
		return nil
	}
	return &Signal{
		Country: meta.Country,
		ASN:     meta.ASN,
		Proxy:   meta.Proxy,
	}
}

// Authorizer evaluates signals against one allow/deny policy. It is
// stateless after construction and safe for concurrent reuse.
type Authorizer struct {
	denyCountries  map[string]struct{}
	allowCountries map[string]struct{}
	denyASNs       map[string]struct{}
	allowASNs      map[string]struct{}
	rejectProxies  bool
}

// NewAuthorizer builds an authorizer from one policy rule set. Tokens are
// case-normalized once here so per-request evaluation is pure lookups.
func NewAuthorizer(settings config.PolicySettings) *Authorizer {
	return &Authorizer{
		denyCountries:  normalizeSet(settings.DenyCountries),
		allowCountries: normalizeSet(settings.AllowCountries),
		denyASNs:       normalizeSet(settings.DenyASNs),
		allowASNs:      normalizeSet(settings.AllowASNs),
		rejectProxies:  settings.RejectProxies,
	}
}

// Authorize evaluates a signal against the policy. Deny rules run before
// allow rules and the first failing rule short-circuits; this ordering is
// part of the policy contract and must not be reordered.
func (a *Authorizer) Authorize(sig *Signal) error {
	if sig == nil || sig.Country == "" {
		return ErrMissingMetadata
	}

	country := normalizeToken(sig.Country)
	asn := normalizeToken(sig.ASN)

	if a.rejectProxies && sig.Proxy {
		return &DeniedError{Rule: RuleProxyDenied, Token: country}
	}

	if _, denied := a.denyCountries[country]; denied {
		return &DeniedError{Rule: RuleCountryDenied, Token: country}
	}

	if len(a.allowCountries) > 0 {
		if _, allowed := a.allowCountries[country]; !allowed {
			return &DeniedError{Rule: RuleCountryNotAllowed, Token: country}
		}
	}

	// ASN rules only apply to signals that carry one
	if asn != "" {
		if _, denied := a.denyASNs[asn]; denied {
			return &DeniedError{Rule: RuleASNDenied, Token: asn}
		}

		if len(a.allowASNs) > 0 {
			if _, allowed := a.allowASNs[asn]; !allowed {
				return &DeniedError{Rule: RuleASNNotAllowed, Token: asn}
			}
		}
	}

	return nil
}

func normalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

func normalizeSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		normalized := normalizeToken(token)
		if normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return set
}
