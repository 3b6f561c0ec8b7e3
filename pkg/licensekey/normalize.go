package licensekey

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeEmail trims and case-folds an email address.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// NormalizeKey trims and uppercases a license key.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
