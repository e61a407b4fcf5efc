package enums

import (
	"fmt"
	"strings"
)

// PassCategory partitions passes (and the events they unlock) into the
// on-campus cohort and the external-visitor cohort.
type PassCategory string

const (
	PassCategoryPrimary   PassCategory = "primary"
	PassCategorySecondary PassCategory = "secondary"
)

var validPassCategories = []PassCategory{
	PassCategoryPrimary,
	PassCategorySecondary,
}

// categorySpellings collects the labels upstream documents have used for each
// cohort. Adding a new upstream spelling is a one-line change here.
var categorySpellings = map[string]PassCategory{
	"primary":   PassCategoryPrimary,
	"internal":  PassCategoryPrimary,
	"student":   PassCategoryPrimary,
	"campus":    PassCategoryPrimary,
	"secondary": PassCategorySecondary,
	"external":  PassCategorySecondary,
	"visitor":   PassCategorySecondary,
	"guest":     PassCategorySecondary,
}

// String implements fmt.Stringer.
func (p PassCategory) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PassCategory.
func (p PassCategory) IsValid() bool {
	for _, candidate := range validPassCategories {
		if candidate == p {
			return true
		}
	}
	return false
}

// Complement returns the other cohort.
func (p PassCategory) Complement() PassCategory {
	if p == PassCategoryPrimary {
		return PassCategorySecondary
	}
	return PassCategoryPrimary
}

// ParsePassCategory converts raw input into a PassCategory.
func ParsePassCategory(value string) (PassCategory, error) {
	for _, candidate := range validPassCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pass category %q", value)
}

// NormalizePassCategory maps an upstream-declared cohort label to a known
// category, tolerating the historical spellings. The second return is false
// when the label is empty or unrecognized.
func NormalizePassCategory(raw string) (PassCategory, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return "", false
	}
	category, ok := categorySpellings[cleaned]
	return category, ok
}
