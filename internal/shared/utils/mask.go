package utils

import "strings"

// MaskEmail masks an email address for safe logging.
// Example: "user@example.com" -> "u***@example.com"
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if len(local) <= 1 {
		return local + "***@" + domain
	}
	return local[:1] + "***@" + domain
}

// MaskLicenseKey keeps the prefix and last segment of a key.
// Example: "FLACO-0123ABCD-89ABCDEF-00C0FFEE" -> "FLACO-****-00C0FFEE"
func MaskLicenseKey(key string) string {
	first := strings.Index(key, "-")
	last := strings.LastIndex(key, "-")
	if first < 0 || first == last {
		return "****"
	}
	return key[:first] + "-****" + key[last:]
}
