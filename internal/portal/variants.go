package portal

import (
	"strings"
	"time"
)

// PhoneVariants returns the candidate phone spellings to try upstream: the
// number as given and, for a bare 10-digit number, a variant with the
// national country code prepended. Upstream indexes some purchases with the
// prefix and some without.
func PhoneVariants(phone, countryCode string) []string {
	cleaned := strings.TrimSpace(phone)
	if cleaned == "" {
		return nil
	}
	variants := []string{cleaned}
	if countryCode != "" && len(cleaned) == 10 && isDigits(cleaned) && !strings.HasPrefix(cleaned, countryCode) {
		variants = append(variants, countryCode+cleaned)
	}
	return variants
}

// BackoffDelay returns the linear backoff before retry n (1-based): one step
// after the first failure, two after the second.
func BackoffDelay(attempt int, step time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * step
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
