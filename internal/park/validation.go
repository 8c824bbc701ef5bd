package park

import (
	"regexp"
	"strings"

	"github.com/i474232898/parks-context/internal/common"
	"github.com/i474232898/parks-context/internal/resilience"
)

var parkCodePattern = regexp.MustCompile(`^[A-Za-z]{4,10}$`)

// ValidateParkCode checks a park code before any network attempt.
func ValidateParkCode(provider, code string) *resilience.Error {
	if strings.TrimSpace(code) == "" {
		return resilience.NewError(resilience.KindValidation, provider, "parkCode is required")
	}
	if !parkCodePattern.MatchString(code) {
		return resilience.NewError(resilience.KindValidation, provider, "invalid parkCode %q", code)
	}
	return nil
}

// ParseParkCodes splits a comma-separated park code list and validates
// every entry. An empty list is not an error.
func ParseParkCodes(provider, raw string) ([]string, *resilience.Error) {
	codes := common.SplitTrim(raw)
	for _, code := range codes {
		if err := ValidateParkCode(provider, code); err != nil {
			return nil, err
		}
	}
	return codes, nil
}

// StateCodes lists the codes the Parks API accepts: the states, DC and the
// territories.
var StateCodes = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA",
	"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
	"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
	"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
	"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
	"DC", "AS", "GU", "MP", "PR", "VI",
}

var stateCodeSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(StateCodes))
	for _, c := range StateCodes {
		m[c] = struct{}{}
	}
	return m
}()

// InvalidStateCodes returns the entries of codes that are not known state codes.
func InvalidStateCodes(codes []string) []string {
	var invalid []string
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if _, ok := stateCodeSet[c]; !ok {
			invalid = append(invalid, c)
		}
	}
	return invalid
}
