package enums

import "fmt"

// OwnershipSource records how a pass ownership came to exist.
type OwnershipSource string

const (
	// OwnershipSourceSync is a grant produced by reconciling a payment log.
	OwnershipSourceSync OwnershipSource = "payment_sync"
	// OwnershipSourceBackfill is a grant produced by re-resolving an older
	// log that predated its mapping row.
	OwnershipSourceBackfill OwnershipSource = "backfill"
	// OwnershipSourceDerived is a grant produced as a side effect of another
	// grant, without a payment log of its own.
	OwnershipSourceDerived OwnershipSource = "derived"
)

var validOwnershipSources = []OwnershipSource{
	OwnershipSourceSync,
	OwnershipSourceBackfill,
	OwnershipSourceDerived,
}

// String implements fmt.Stringer.
func (o OwnershipSource) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OwnershipSource.
func (o OwnershipSource) IsValid() bool {
	for _, candidate := range validOwnershipSources {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOwnershipSource converts raw input into an OwnershipSource.
func ParseOwnershipSource(value string) (OwnershipSource, error) {
	for _, candidate := range validOwnershipSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ownership source %q", value)
}
