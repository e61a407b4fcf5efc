package enums

import "strings"

// PaymentStatus is the canonical status stored on a payment log. Upstream has
// shipped many spellings of "success" over the years; everything in the
// accepted set collapses to PaymentStatusSuccess before persistence.
type PaymentStatus string

const PaymentStatusSuccess PaymentStatus = "Success"

var acceptedSuccessStatuses = map[string]struct{}{
	"success":             {},
	"succes":              {},
	"successful":          {},
	"successfull":         {},
	"success payment":     {},
	"successful payment":  {},
	"successfull payment": {},
	"payment success":     {},
	"paid":                {},
	"captured":            {},
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// AcceptedSuccessSpellings returns every raw spelling that normalizes to
// PaymentStatusSuccess, for bulk status-repair queries.
func AcceptedSuccessSpellings() []string {
	spellings := make([]string, 0, len(acceptedSuccessStatuses))
	for s := range acceptedSuccessStatuses {
		spellings = append(spellings, s)
	}
	return spellings
}

// NormalizeSuccessStatus reports whether raw is one of the accepted success
// spellings, returning the canonical status when it is.
func NormalizeSuccessStatus(raw string) (PaymentStatus, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := acceptedSuccessStatuses[cleaned]; ok {
		return PaymentStatusSuccess, true
	}
	return "", false
}
