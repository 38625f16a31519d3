package authz

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/reward-service/internal/config"
)

var (
	genCountry = gen.OneConstOf("US", "CA", "MX", "DE", "FR", "BR", "NG", "KP", "IR", "JP")
	genASN     = gen.OneConstOf("AS1234", "AS42", "AS3320", "AS15169", "AS714", "AS8075")
)

func genCountryList() gopter.Gen {
	return gen.SliceOf(genCountry)
}

func genASNList() gopter.Gen {
	return gen.SliceOf(genASN)
}

// Property: a policy with empty allow and deny lists authorizes any
// well-formed signal.
func TestProperty_EmptyPolicyAuthorizesEverything(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("empty policy authorizes any signal", prop.ForAll(
		func(country, asn string) bool {
			authorizer := NewAuthorizer(config.PolicySettings{})
			return authorizer.Authorize(&Signal{Country: country, ASN: asn}) == nil
		},
		genCountry,
		genASN,
	))

	properties.TestingRun(t)
}

// Property: a country present in the deny list is rejected regardless of
// allow list contents.
func TestProperty_DenyListWinsOverAllowList(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("denied country always fails", prop.ForAll(
		func(country string, allowCountries []string) bool {
			authorizer := NewAuthorizer(config.PolicySettings{
				DenyCountries:  []string{country},
				AllowCountries: allowCountries,
			})

			err := authorizer.Authorize(&Signal{Country: country})
			var denied *DeniedError
			return errors.As(err, &denied) && denied.Rule == RuleCountryDenied
		},
		genCountry,
		genCountryList(),
	))

	properties.TestingRun(t)
}

// Property: a country absent from a non-empty allow list is rejected even
// when no deny list mentions it.
func TestProperty_NonEmptyAllowListExcludesAbsentCountries(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("country outside allow list fails", prop.ForAll(
		func(country string, allowCountries []string) bool {
			if len(allowCountries) == 0 {
				return true
			}
			for _, allowed := range allowCountries {
				if allowed == country {
					return true
				}
			}

			authorizer := NewAuthorizer(config.PolicySettings{
				AllowCountries: allowCountries,
			})

			err := authorizer.Authorize(&Signal{Country: country})
			var denied *DeniedError
			return errors.As(err, &denied) && denied.Rule == RuleCountryNotAllowed
		},
		genCountry,
		genCountryList(),
	))

	properties.TestingRun(t)
}

// Property: evaluation is deterministic and reuse-safe; the same authorizer
// yields the same outcome for the same signal every time.
func TestProperty_EvaluationIsDeterministic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("repeated evaluation agrees", prop.ForAll(
		func(country, asn string, denyCountries, denyASNs []string) bool {
			authorizer := NewAuthorizer(config.PolicySettings{
				DenyCountries: denyCountries,
				DenyASNs:      denyASNs,
			})

			sig := &Signal{Country: country, ASN: asn}
			first := authorizer.Authorize(sig)
			second := authorizer.Authorize(sig)

			if (first == nil) != (second == nil) {
				return false
			}
			if first == nil {
				return true
			}
			return first.Error() == second.Error()
		},
		genCountry,
		genASN,
		genCountryList(),
		genASNList(),
	))

	properties.TestingRun(t)
}
