package gateway

import "strings"

const countryCode = "55"

// NormalizePhone strips non-digits and prefixes the country code to national numbers
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if len(digits) <= 11 && !strings.HasPrefix(digits, countryCode) {
		return countryCode + digits
	}
	return digits
}
