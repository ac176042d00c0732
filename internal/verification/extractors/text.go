package extractors

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	dErrors "github.com/tise-genene/verifyreceipt/pkg/domain-errors"
)

var alphanumeric = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// ValidateReference trims ref and rejects anything that is not purely alphanumeric,
// since the value is interpolated into a bank URL.
func ValidateReference(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if !alphanumeric.MatchString(ref) {
		return "", dErrors.New(dErrors.CodeValidation, "reference must be alphanumeric")
	}
	return ref, nil
}

// CleanText applies NFKC normalisation and collapses all whitespace runs to one space.
func CleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// ParseDecimal parses a number that may carry thousands separators.
func ParseDecimal(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return nil
	}
	return &d
}

// FirstMatch returns the first capture group of the first pattern that matches text.
func FirstMatch(text string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
